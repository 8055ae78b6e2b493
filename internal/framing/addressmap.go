// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package framing

// AddressMap translates between physical offsets (reported by the inner
// stream, headers present) and logical offsets (presented to the consumer,
// headers absent).
//
// The map is parametrised by the framing header size and by zero, the
// physical position of the first header. The identities assume the address
// falls within the payload of the given record, i.e. that every preceding
// record contributed exactly one header of skipped framing plus its full
// payload.
//
// AddressMap is a pure value; all arithmetic is 64-bit signed.
type AddressMap struct {
	headerSize int64
	zero       int64
}

// NewAddressMap returns an AddressMap for headers of headerSize bytes, with
// the first header at physical offset zero.
func NewAddressMap(headerSize int, zero int64) AddressMap {
	return AddressMap{headerSize: int64(headerSize), zero: zero}
}

// Logical returns the logical equivalent of the physical address addr inside
// record (0-based).
func (m AddressMap) Logical(addr int64, record int) int64 {
	return addr - m.headerSize*(int64(record)+1) - m.zero
}

// Physical returns the physical equivalent of the logical address addr inside
// record (0-based).
func (m AddressMap) Physical(addr int64, record int) int64 {
	return addr + m.headerSize*(int64(record)+1) + m.zero
}

// Base returns zero, the first possible physical address of the map. It is
// usually, but not necessarily, 0.
func (m AddressMap) Base() int64 { return m.zero }

// HeaderSize returns the on-disk framing header size in bytes.
func (m AddressMap) HeaderSize() int64 { return m.headerSize }
