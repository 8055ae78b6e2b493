// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package framing

import (
	"github.com/danjacques/wellstream/stream"
)

// ReadHead is the cursor of a framing decoder: the record it currently sits
// in, and the number of payload bytes left in that record.
//
// The record is named by its index position, so an Append to the index never
// invalidates a ReadHead. MoveTo is still the only way to reposition onto a
// record; it rereads every field it needs from the index at relocation time.
type ReadHead struct {
	index     *Index
	pos       int
	remaining int64
}

// Ghost returns a ReadHead sitting exhausted on the index's ghost sentinel.
// This is the decoder's state at open: the first read must parse the first
// real header.
func Ghost(x *Index) ReadHead {
	return ReadHead{index: x, pos: -1}
}

// Position returns the index position of the current record. The ghost
// sentinel is position -1.
func (h ReadHead) Position() int { return h.pos }

// Exhausted reports whether the current record has no payload bytes left.
func (h ReadHead) Exhausted() bool { return h.remaining == 0 }

// BytesLeft returns the number of payload bytes left in the current record.
func (h ReadHead) BytesLeft() int64 { return h.remaining }

// AtLast reports whether the head sits on the most recently indexed record.
func (h ReadHead) AtLast() bool { return h.pos == h.index.Last() }

// Tell returns the physical position of the read head. It corresponds to the
// offset reported by the inner stream.
func (h ReadHead) Tell() int64 {
	rec := h.index.Record(h.pos)
	return rec.End() - h.remaining
}

// Move consumes n payload bytes within the current record.
func (h *ReadHead) Move(n int64) error {
	if n > h.remaining {
		return stream.Errorf(stream.KindInvalidArgs,
			"read head: advancing %d bytes past end-of-record (%d left)",
			n, h.remaining)
	}
	h.remaining -= n
	return nil
}

// MoveTo repositions the head to the start of the payload of the record at
// index position pos.
func (h *ReadHead) MoveTo(pos int) {
	rec := h.index.Record(pos)
	h.pos = pos
	h.remaining = rec.Length - h.index.addr.HeaderSize()
}

// Skip exhausts the current record. After Skip, Exhausted is true and Tell
// sits on the record's end boundary.
func (h *ReadHead) Skip() { h.remaining = 0 }

// NextRecord returns a head positioned at the payload start of the record
// after the current one. The next record must already be indexed.
func (h ReadHead) NextRecord() ReadHead {
	next := h
	next.MoveTo(h.pos + 1)
	return next
}
