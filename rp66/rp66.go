// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rp66

import (
	"bytes"
	"math"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/danjacques/wellstream/internal/framing"
	"github.com/danjacques/wellstream/stream"
)

// headerSize is the visible envelope part of a visible record: the record
// length and the format version.
const headerSize = 4

const (
	formatByte   = 0xFF
	majorVersion = 1
)

// header is the on-disk visible record header. struc's default byte order is
// big-endian, which is what the format prescribes.
type header struct {
	Length uint16
	Format uint8
	Major  uint8
}

// Stream is a visible envelope framing decoder over an inner stream.
//
// Stream must be instantiated using New.
type Stream struct {
	stream.Errmsg

	inner stream.Stream

	addr    framing.AddressMap
	index   *framing.Index
	current framing.ReadHead
}

var _ stream.Stream = (*Stream)(nil)

// New returns a visible envelope decoder reading its payload from inner.
//
// The inner stream's current position becomes the decoder's zero; if the
// inner stream cannot tell, zero is 0. No header is parsed until the first
// read or seek. The decoder owns inner.
func New(inner stream.Stream) (*Stream, error) {
	if inner == nil {
		return nil, stream.NewError(stream.KindInvalidArgs,
			"rp66: nil inner stream")
	}

	zero, err := inner.Tell()
	if err != nil {
		zero = 0
	}

	s := Stream{
		inner: inner,
		addr:  framing.NewAddressMap(headerSize, zero),
	}
	s.index = framing.NewIndex(s.addr)
	s.current = framing.Ghost(s.index)
	return &s, nil
}

// ReadInto reads up to len(dst) payload bytes, parsing and indexing visible
// record headers as boundaries are crossed.
func (s *Stream) ReadInto(dst []byte) (int64, stream.Status, error) {
	if len(dst) == 0 {
		return 0, stream.Ok, nil
	}

	var total int64
	defer func() { bytesRead.Add(float64(total)) }()

	for {
		n, st, err := s.read(dst[total:])
		total += n
		if err != nil {
			return total, 0, s.Record(err)
		}

		if total == int64(len(dst)) {
			return total, stream.Ok, nil
		}

		if s.Eof() {
			if s.current.Exhausted() {
				return total, stream.EOF, nil
			}
			return total, 0, s.Record(stream.Errorf(stream.KindUnexpectedEOF,
				"rp66: unexpected EOF when reading record "+
					"- got %d bytes, expected there to be %d more",
				total, s.current.BytesLeft()))
		}

		if st == stream.Incomplete || n == 0 {
			// The inner stream is temporarily exhausted; report what was
			// produced so far.
			return total, stream.Incomplete, nil
		}
	}
}

// read produces at most one contiguous chunk of payload, advancing to the
// next visible record first if the current one is exhausted.
func (s *Stream) read(dst []byte) (int64, stream.Status, error) {
	for s.current.Exhausted() {
		if s.Eof() {
			return 0, stream.Ok, nil
		}

		if s.current.AtLast() {
			before := s.index.Size()
			if err := s.readHeader(); err != nil {
				return 0, 0, err
			}
			if s.index.Size() == before {
				// The last record ended exactly at end-of-stream.
				return 0, stream.Ok, nil
			}
			s.current.MoveTo(s.index.Last())
		} else {
			next := s.current.NextRecord()
			if err := s.inner.Seek(next.Tell()); err != nil {
				return 0, 0, errors.Wrap(err, "rp66: seeking next record")
			}
			s.current = next
		}

		// Might be EOF, or even an empty record, so re-check.
	}

	toRead := int64(len(dst))
	if left := s.current.BytesLeft(); left < toRead {
		toRead = left
	}

	n, st, err := s.inner.ReadInto(dst[:toRead])
	if err != nil {
		return n, st, errors.Wrap(err, "rp66: reading record")
	}
	return n, st, s.current.Move(n)
}

// readHeader parses the next 4-byte visible record header from the inner
// stream's current position, validates it, and appends it to the index.
//
// The end of the last visible record aligns perfectly with end-of-stream, so
// a 0-byte read at the boundary appends nothing and is not an error.
func (s *Stream) readHeader() error {
	var buf [headerSize]byte
	n, st, err := s.inner.ReadInto(buf[:])
	if err != nil {
		return errors.Wrap(err, "rp66: reading header")
	}

	switch st {
	case stream.Ok:
	case stream.Incomplete:
		return stream.NewError(stream.KindIOError,
			"rp66: incomplete read of visible record header, "+
				"recovery not implemented")
	case stream.EOF:
		if n == 0 {
			return nil
		}
		return stream.Errorf(stream.KindUnexpectedEOF,
			"rp66: unexpected EOF when reading header - got %d bytes", n)
	default:
		return stream.NewError(stream.KindNotImplemented,
			"rp66: unhandled status in readHeader")
	}

	var head header
	if err := struc.Unpack(bytes.NewReader(buf[:]), &head); err != nil {
		return stream.WrapError(stream.KindIOError, err,
			"rp66: decoding header")
	}

	if head.Format != formatByte || head.Major != majorVersion {
		return stream.Errorf(stream.KindProtocolFatal,
			"rp66: incorrect format version in visible record %d",
			s.index.Size()+1)
	}

	if int64(head.Length) < headerSize {
		return stream.Errorf(stream.KindProtocolFatal,
			"rp66: visible record %d length (= %d) shorter than its header",
			s.index.Size()+1, head.Length)
	}

	base := s.addr.Base()
	if !s.index.Empty() {
		base = s.index.Record(s.index.Last()).End()
	}
	s.index.Append(framing.Record{
		Base:   base,
		Length: int64(head.Length),
	})
	headersParsed.Inc()
	return nil
}

// Seek positions the stream at the logical offset n, indexing forward from
// the last parsed header if n has not been visited yet.
func (s *Stream) Seek(n int64) error {
	if n < 0 {
		return s.Record(stream.Errorf(stream.KindInvalidArgs,
			"rp66: seek offset (= %d) < 0", n))
	}
	if n > math.MaxUint32 {
		return s.Record(stream.NewError(stream.KindInvalidArgs,
			"rp66: too big seek offset. Visible envelope format "+
				"does not support files larger than 4GB"))
	}

	if s.index.Contains(n) {
		return s.Record(s.seekIndexed(n))
	}
	return s.Record(s.seekBeyondIndex(n))
}

func (s *Stream) seekIndexed(n int64) error {
	pos, err := s.index.Find(n, s.current.Position())
	if err != nil {
		return err
	}
	target := s.addr.Physical(n, pos)
	rec := s.index.Record(pos)

	if pos != 0 && target == rec.Base+headerSize {
		// n names the first payload byte of this record. Sit on the end of
		// the preceding record instead, so that a seek-then-read and a
		// read-then-read leave the leaf at the same physical position.
		if err := s.inner.Seek(rec.Base); err != nil {
			return errors.Wrap(err, "rp66: seek")
		}
		s.current.MoveTo(pos - 1)
		s.current.Skip()
		return nil
	}

	if err := s.inner.Seek(target); err != nil {
		return errors.Wrap(err, "rp66: seek")
	}
	s.current.MoveTo(pos)
	return s.current.Move(target - s.current.Tell())
}

func (s *Stream) seekBeyondIndex(n int64) error {
	s.current.MoveTo(s.index.Last())

	for {
		pos := s.index.Last()
		target := s.addr.Physical(n, pos)
		end := s.index.Record(pos).End()

		if target < end {
			// n landed within the indexed area after all; Contains is
			// conservative by one header near the end of the index. Let the
			// index search position the head.
			return s.seekIndexed(n)
		}

		if target == end {
			if err := s.inner.Seek(end); err != nil {
				return errors.Wrap(err, "rp66: seek")
			}
			s.current.MoveTo(pos)
			s.current.Skip()
			return nil
		}

		if err := s.inner.Seek(end); err != nil {
			return errors.Wrap(err, "rp66: seek")
		}
		s.current.MoveTo(pos)
		s.current.Skip()

		before := s.index.Size()
		if err := s.readHeader(); err != nil {
			return err
		}
		if s.index.Size() != before {
			s.current.MoveTo(s.index.Last())
		}

		if s.Eof() {
			if s.index.Size() == before {
				// The data ended somewhere inside the last record. Without
				// an explicit read there is no knowing whether that record
				// is complete; the seek itself succeeds.
				return nil
			}
			// A valid header was parsed, but the stream ends after it.
			// Advance within the final record as far as it goes.
			pos = s.index.Last()
			target = s.addr.Physical(n, pos)
			skip := target - s.current.Tell()
			if left := s.current.BytesLeft(); left < skip {
				skip = left
			}
			return s.current.Move(skip)
		}
	}
}

// Tell returns the current logical position.
func (s *Stream) Tell() (int64, error) {
	return s.addr.Logical(s.current.Tell(), s.current.Position()), nil
}

// Ptell returns the physical position of the ultimate leaf source.
func (s *Stream) Ptell() (int64, error) { return s.inner.Ptell() }

// Eof forwards the inner stream's eof: there is no trailing marker, so the
// end of the last visible record coincides with the end of the inner stream.
func (s *Stream) Eof() bool { return s.inner.Eof() }

// Close closes the decoder and the inner stream it owns. After a Peel, Close
// is a no-op.
func (s *Stream) Close() error {
	if s.inner == nil {
		return nil
	}

	inner := s.inner
	s.inner = nil
	return s.Record(inner.Close())
}

// Peel transfers ownership of the inner stream to the caller.
func (s *Stream) Peel() (stream.Stream, error) {
	if s.inner == nil {
		return nil, s.Record(stream.NewError(stream.KindRuntimeError,
			"rp66: inner stream already released"))
	}

	inner := s.inner
	s.inner = nil
	return inner, nil
}

// Peek borrows the inner stream. The returned handle is only valid until the
// next mutating call on the decoder.
func (s *Stream) Peek() (stream.Stream, error) {
	if s.inner == nil {
		return nil, s.Record(stream.NewError(stream.KindRuntimeError,
			"rp66: inner stream already released"))
	}
	return s.inner, nil
}
