// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package source

import (
	"github.com/danjacques/wellstream/stream"
)

// Memory is a fixed-size stream served from an in-memory byte buffer.
//
// It is largely intended for testing and for files that have already been
// slurped into memory, but nothing restricts it to that.
type Memory struct {
	stream.Errmsg

	buf []byte
	pos int64
}

var _ stream.Stream = (*Memory)(nil)

// NewMemory returns an empty Memory stream.
func NewMemory() *Memory { return &Memory{} }

// NewMemoryWith returns a Memory stream serving buf.
//
// The buffer is borrowed, not copied; it must not be mutated while the
// stream is in use.
func NewMemoryWith(buf []byte) *Memory { return &Memory{buf: buf} }

// ReadInto copies up to len(dst) bytes from the buffer. The status is Ok
// when the request was fully satisfied and EOF otherwise.
func (m *Memory) ReadInto(dst []byte) (int64, stream.Status, error) {
	n := copy(dst, m.buf[m.pos:])
	m.pos += int64(n)

	if n < len(dst) {
		return int64(n), stream.EOF, nil
	}
	return int64(n), stream.Ok, nil
}

// Seek sets the position to n.
//
// The offset must satisfy 0 <= n < len(buffer): positioning exactly at
// end-of-buffer is rejected. Callers that want to drain the stream should
// seek to the last byte and read it.
func (m *Memory) Seek(n int64) error {
	if n < 0 {
		return m.Record(stream.NewError(stream.KindInvalidArgs,
			"memory: seek offset n < 0"))
	}
	if n >= int64(len(m.buf)) {
		return m.Record(stream.Errorf(stream.KindInvalidArgs,
			"memory: seek: offset (= %d) >= file size (= %d)", n, len(m.buf)))
	}

	m.pos = n
	return nil
}

// Tell returns the current position.
func (m *Memory) Tell() (int64, error) { return m.pos, nil }

// Ptell returns the current position. For a leaf, logical and physical
// positions coincide.
func (m *Memory) Ptell() (int64, error) { return m.pos, nil }

// Eof reports whether the buffer is exhausted.
func (m *Memory) Eof() bool { return m.pos == int64(len(m.buf)) }

// Close releases the stream. It never fails.
func (m *Memory) Close() error { return nil }

// Peel fails: a leaf has no inner stream.
func (m *Memory) Peel() (stream.Stream, error) {
	return nil, m.Record(stream.NewError(stream.KindLeafProtocol,
		"peel: not supported for leaf stream"))
}

// Peek fails: a leaf has no inner stream.
func (m *Memory) Peek() (stream.Stream, error) {
	return nil, m.Record(stream.NewError(stream.KindLeafProtocol,
		"peek: not supported for leaf stream"))
}
