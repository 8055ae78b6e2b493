// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package framing

import (
	"sort"

	"github.com/danjacques/wellstream/stream"
)

// Record describes one framed record whose header has been parsed from disk.
type Record struct {
	// Base is the physical offset of the record's first header byte.
	Base int64

	// Length is the total record extent in bytes, header included. The
	// invariant over consecutive records is next.Base == Base + Length.
	Length int64

	// Tag is the format-specific marker type. The tape image format stores
	// its header type here (0 = record, 1 = file mark); rp66 leaves it 0.
	Tag uint32

	// Prev is the tape image back-pointer as held in memory, which may have
	// been patched during recovery. rp66 leaves it 0.
	Prev uint32
}

// End returns the physical offset one past the record's last byte.
func (r Record) End() int64 { return r.Base + r.Length }

// Index is the ordered, append-only catalogue of the records parsed so far.
//
// Position 0 is the first real record; the ghost sentinel prepended at
// construction lives at position -1 and is excluded from Size and Contains.
// The sentinel's extent ends exactly at the address map's base, so neighbour
// arithmetic needs no special case for the first real record.
type Index struct {
	addr AddressMap
	recs []Record
}

// NewIndex returns an empty Index over the given address map, holding only
// the ghost sentinel.
func NewIndex(addr AddressMap) *Index {
	ghost := Record{
		Base:   addr.Base() - addr.HeaderSize(),
		Length: addr.HeaderSize(),
	}
	return &Index{
		addr: addr,
		recs: []Record{ghost},
	}
}

// Size returns the number of real (non-ghost) records indexed.
func (x *Index) Size() int { return len(x.recs) - 1 }

// Empty reports whether no real record has been indexed yet.
func (x *Index) Empty() bool { return x.Size() == 0 }

// Record returns the record at position pos. Position -1 is the ghost
// sentinel.
func (x *Index) Record(pos int) Record { return x.recs[pos+1] }

// Last returns the position of the most recently indexed record, or -1 (the
// ghost) when the index is empty.
func (x *Index) Last() int { return x.Size() - 1 }

// Append adds a record to the end of the index. Records must be appended in
// file order; the index is never shrunk or reordered.
func (x *Index) Append(r Record) { x.recs = append(x.recs, r) }

// Contains reports whether the logical offset n falls within a record that
// has already been indexed. When it does, Find is defined for n.
//
// The bound is conservative by one header: offsets in the last headerSize
// bytes of the indexed payload report false even though their record is
// indexed.
func (x *Index) Contains(n int64) bool {
	last := x.Record(x.Last())
	return n < x.addr.Logical(last.End(), x.Size())
}

// Find returns the position of the record whose payload contains the logical
// offset n. n must be non-negative and below the logical end of the last
// indexed record; Contains(n) guarantees this.
//
// The hint is always checked first: a real world usage pattern is many small
// reads and seeks within the current record, and those must not pay for an
// index search.
func (x *Index) Find(n int64, hint int) (int, error) {
	if x.inHint(n, hint) {
		return hint, nil
	}

	// Phase 1: an approximating binary search that pretends logical and
	// physical offsets are equal. A record's physical end is always >= its
	// logical end, so the hit is the correct record or an earlier one.
	//
	// The approximation is what makes binary search possible at all: an
	// exact comparison needs the record's position to account for the
	// header contribution, and the midpoint comparison does not know it.
	size := x.Size()
	lower := sort.Search(size, func(i int) bool {
		return n < x.addr.Logical(x.Record(i).End(), 0)
	})

	// Phase 2: a position-aware linear scan from the phase 1 hit. The first
	// record whose logical end exceeds n is the match; with reasonable
	// record sizes this is only a few hops.
	for pos := lower; pos < size; pos++ {
		if n < x.addr.Logical(x.Record(pos).End(), pos) {
			return pos, nil
		}
	}

	last := x.Record(x.Last())
	return 0, stream.Errorf(stream.KindUnhandledException,
		"find: offset %d not in index, indexed area ends at physical offset %d",
		n, last.End())
}

func (x *Index) inHint(n int64, hint int) bool {
	if hint < 0 || hint >= x.Size() {
		return false
	}

	end := x.addr.Logical(x.Record(hint).End(), hint)
	if hint == 0 {
		return n < end
	}

	begin := x.addr.Logical(x.Record(hint-1).End(), hint-1)
	return n >= begin && n < end
}
