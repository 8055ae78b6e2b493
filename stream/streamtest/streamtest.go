// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package streamtest contains shared fixtures for stream tests: byte image
// builders for the framing formats, and stream wrappers with contrived
// behaviour.
//
// The builders emit well-formed framing; tests exercising corruption patch
// the returned bytes at the deterministic header offsets.
package streamtest

import (
	"encoding/binary"

	"github.com/danjacques/wellstream/stream"
)

// TapeHeaderSize is the on-disk size of a tape image record header.
const TapeHeaderSize = 12

// VisibleHeaderSize is the on-disk size of a visible record header.
const VisibleHeaderSize = 4

// TapeRecord returns a tape image record header followed by payload.
//
// base is the absolute offset of this header within the file; prev is the
// absolute offset of the preceding header (0 if none).
func TapeRecord(typ, base, prev uint32, payload []byte) []byte {
	out := make([]byte, TapeHeaderSize, TapeHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:], typ)
	binary.LittleEndian.PutUint32(out[4:], prev)
	binary.LittleEndian.PutUint32(out[8:], base+TapeHeaderSize+uint32(len(payload)))
	return append(out, payload...)
}

// TapeImage assembles a complete tape image stream starting at absolute
// offset base: one record per payload, terminated by a tape mark.
func TapeImage(base uint32, payloads ...[]byte) []byte {
	out, _ := TapeImageRecords(base, payloads...)
	// The mark's "previous header" is the last record header, or 0 when the
	// stream is empty.
	prev := uint32(0)
	if len(payloads) > 0 {
		last := payloads[len(payloads)-1]
		prev = base + uint32(len(out)) - TapeHeaderSize - uint32(len(last))
	}
	return append(out, TapeRecord(1, base+uint32(len(out)), prev, nil)...)
}

// TapeImageRecords assembles tape image records without a trailing mark. It
// returns the bytes and the absolute offset of each header, for tests that
// patch headers afterwards.
func TapeImageRecords(base uint32, payloads ...[]byte) ([]byte, []uint32) {
	var out []byte
	offsets := make([]uint32, 0, len(payloads))

	prev := uint32(0)
	cur := base
	for _, p := range payloads {
		offsets = append(offsets, cur)
		out = append(out, TapeRecord(0, cur, prev, p)...)
		prev = cur
		cur += TapeHeaderSize + uint32(len(p))
	}
	return out, offsets
}

// VisibleRecord returns one well-formed visible record framing payload.
func VisibleRecord(payload []byte) []byte {
	out := make([]byte, VisibleHeaderSize, VisibleHeaderSize+len(payload))
	binary.BigEndian.PutUint16(out[0:], uint16(VisibleHeaderSize+len(payload)))
	out[2] = 0xFF
	out[3] = 0x01
	return append(out, payload...)
}

// VisibleEnvelope concatenates well-formed visible records, one per payload.
func VisibleEnvelope(payloads ...[]byte) []byte {
	var out []byte
	for _, p := range payloads {
		out = append(out, VisibleRecord(p)...)
	}
	return out
}

// Chunked wraps a stream and serves at most Chunk bytes per ReadInto call,
// reporting Incomplete whenever it clips a request. It simulates an inner
// stream that is temporarily exhausted, like a pipe that has not been filled
// yet.
type Chunked struct {
	S     stream.Stream
	Chunk int
}

var _ stream.Stream = (*Chunked)(nil)

// ReadInto reads through to the wrapped stream, clipped to Chunk bytes.
func (c *Chunked) ReadInto(dst []byte) (int64, stream.Status, error) {
	if len(dst) <= c.Chunk {
		return c.S.ReadInto(dst)
	}

	n, st, err := c.S.ReadInto(dst[:c.Chunk])
	if err != nil {
		return n, st, err
	}
	if st == stream.Ok {
		st = stream.Incomplete
	}
	return n, st, err
}

// Seek forwards to the wrapped stream.
func (c *Chunked) Seek(n int64) error { return c.S.Seek(n) }

// Tell forwards to the wrapped stream.
func (c *Chunked) Tell() (int64, error) { return c.S.Tell() }

// Ptell forwards to the wrapped stream.
func (c *Chunked) Ptell() (int64, error) { return c.S.Ptell() }

// Eof forwards to the wrapped stream.
func (c *Chunked) Eof() bool { return c.S.Eof() }

// Close closes the wrapped stream.
func (c *Chunked) Close() error { return c.S.Close() }

// Peel fails; the wrapper is not a framing layer.
func (c *Chunked) Peel() (stream.Stream, error) {
	return nil, stream.NewError(stream.KindLeafProtocol,
		"peel: not supported for leaf stream")
}

// Peek fails; the wrapper is not a framing layer.
func (c *Chunked) Peek() (stream.Stream, error) {
	return nil, stream.NewError(stream.KindLeafProtocol,
		"peek: not supported for leaf stream")
}

// LastError forwards to the wrapped stream.
func (c *Chunked) LastError() string { return c.S.LastError() }
