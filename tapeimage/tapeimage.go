// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package tapeimage

import (
	"bytes"
	"math"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/danjacques/wellstream/internal/framing"
	"github.com/danjacques/wellstream/stream"
	"github.com/danjacques/wellstream/support/fmtutil"
	"github.com/danjacques/wellstream/support/logging"
)

// Header type values.
const (
	typeRecord = 0
	typeFile   = 1
)

// headerSize is the fixed on-disk size of a tape mark.
const headerSize = 12

// header is the on-disk tri-word record header.
type header struct {
	Type uint32 `struc:",little"`
	Prev uint32 `struc:",little"`
	Next uint32 `struc:",little"`
}

// Stream is a tape image framing decoder over an inner stream.
//
// Stream must be instantiated using New. After instantiation, Stream can be
// modified to control its behavior.
type Stream struct {
	stream.Errmsg

	// Logger, if not nil, receives warnings about framing anomalies the
	// decoder recovered from. It may only be set before the first operation.
	Logger logging.L

	inner stream.Stream

	addr    framing.AddressMap
	index   *framing.Index
	current framing.ReadHead

	// recovery is sticky: once a framing anomaly has been patched, every
	// subsequent successful read reports TryRecovery, and a second anomaly
	// fails for good.
	recovery bool

	// atEnd is set when the inner stream ended cleanly at a header boundary.
	// A well-formed file terminates with a tape mark instead, but files
	// truncated at a record boundary are accepted.
	atEnd bool
}

var _ stream.Stream = (*Stream)(nil)

// New returns a tape image decoder reading its payload from inner.
//
// The inner stream's current position becomes the decoder's zero: all
// logical offsets are relative to it. If the inner stream cannot tell, zero
// is 0. No header is parsed until the first read or seek.
//
// The decoder owns inner; closing the decoder closes it.
func New(inner stream.Stream) (*Stream, error) {
	if inner == nil {
		return nil, stream.NewError(stream.KindInvalidArgs,
			"tapeimage: nil inner stream")
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

// ReadInto reads up to len(dst) payload bytes, parsing and indexing headers
// as record boundaries are crossed.
func (s *Stream) ReadInto(dst []byte) (int64, stream.Status, error) {
	if len(dst) == 0 {
		return 0, s.status(stream.Ok), nil
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
			return total, s.status(stream.Ok), nil
		}

		if s.Eof() {
			return total, s.status(stream.EOF), nil
		}

		if st == stream.Incomplete || n == 0 {
			// The inner stream is temporarily exhausted; report what was
			// produced so far.
			return total, s.status(stream.Incomplete), nil
		}
	}
}

// status substitutes TryRecovery for successful outcomes on a handle in
// recovery mode.
func (s *Stream) status(st stream.Status) stream.Status {
	if s.recovery {
		return stream.TryRecovery
	}
	return st
}

// read produces at most one contiguous chunk of payload, advancing to the
// next record first if the current one is exhausted. The returned Status is
// the inner stream's, for payload reads.
func (s *Stream) read(dst []byte) (int64, stream.Status, error) {
	for s.current.Exhausted() {
		if s.Eof() {
			return 0, stream.Ok, nil
		}

		if s.current.AtLast() {
			// The next record has not been indexed yet; parse its header
			// from disk.
			before := s.index.Size()
			if err := s.readHeader(); err != nil {
				return 0, 0, err
			}
			if s.index.Size() == before {
				// Nothing was appended: the stream ended at the boundary.
				return 0, stream.Ok, nil
			}
			s.current.MoveTo(s.index.Last())
		} else {
			// The record is already indexed; reposition the inner stream at
			// its payload.
			next := s.current.NextRecord()
			if err := s.inner.Seek(next.Tell()); err != nil {
				return 0, 0, errors.Wrap(err, "tapeimage: seeking next record")
			}
			s.current = next
		}

		// Might be a tape mark, or an empty record, so re-check.
	}

	toRead := int64(len(dst))
	if left := s.current.BytesLeft(); left < toRead {
		toRead = left
	}

	n, st, err := s.inner.ReadInto(dst[:toRead])
	if err != nil {
		return n, st, errors.Wrap(err, "tapeimage: reading record")
	}
	if err := s.current.Move(n); err != nil {
		return n, st, err
	}

	if st == stream.EOF && !s.current.Exhausted() {
		return n, st, stream.Errorf(stream.KindUnexpectedEOF,
			"tapeimage: unexpected EOF when reading record "+
				"- got %d bytes, expected there to be %d more",
			n, s.current.BytesLeft())
	}
	return n, st, nil
}

// readHeader parses the next 12-byte header from the inner stream's current
// position, validates it, and appends it to the index.
//
// A clean end-of-stream at the boundary appends nothing and sets atEnd.
func (s *Stream) readHeader() error {
	var buf [headerSize]byte
	n, st, err := s.inner.ReadInto(buf[:])
	if err != nil {
		return errors.Wrap(err, "tapeimage: reading header")
	}

	switch st {
	case stream.Ok:
	case stream.Incomplete:
		return stream.NewError(stream.KindProtocolFailedRecovery,
			"tapeimage: incomplete read of tape image header, "+
				"recovery not implemented")
	case stream.EOF:
		if n == 0 {
			s.atEnd = true
			return nil
		}
		return stream.Errorf(stream.KindUnexpectedEOF,
			"tapeimage: unexpected EOF when reading header - got %d bytes", n)
	default:
		return stream.NewError(stream.KindNotImplemented,
			"tapeimage: unhandled status in readHeader")
	}

	var head header
	if err := struc.Unpack(bytes.NewReader(buf[:]), &head); err != nil {
		return stream.WrapError(stream.KindIOError, err,
			"tapeimage: decoding header")
	}

	typeConsistent := head.Type == typeRecord || head.Type == typeFile

	if !typeConsistent {
		// Probably recoverable if this is the only anomaly: someone wrote a
		// bogus type, or used an extension with extra record types. Coerce
		// to an ordinary record and carry on in recovery mode.
		if s.recovery {
			return stream.NewError(stream.KindProtocolFailedRecovery,
				"tapeimage: unknown header type in recovery, "+
					"file probably corrupt")
		}
		logging.Must(s.Logger).Warnf(
			"tapeimage: unknown header type %d in header [%s], assuming record",
			head.Type, fmtutil.Bytes(buf[:]))
		s.recovery = true
		recoveries.Inc()
		head.Type = typeRecord
	}

	if head.Next <= head.Prev {
		// No reasonable recovery: either the previous pointer or the whole
		// header is broken. Files over 4 GiB wrap the 32-bit next field and
		// end up here too.
		if !typeConsistent {
			return stream.Errorf(stream.KindProtocolFatal,
				"file corrupt: header type is not 0 or 1, "+
					"head.next (= %d) <= head.prev (= %d). "+
					"File might be missing data",
				head.Next, head.Prev)
		}
		return stream.Errorf(stream.KindProtocolFatal,
			"file corrupt: head.next (= %d) <= head.prev (= %d). "+
				"File size might be > 4GB",
			head.Next, head.Prev)
	}

	if s.index.Size() >= 2 {
		// The previous header's offset is known, so the new header's back
		// pointer can be cross-checked. A mismatch is recoverable under the
		// assumption that it is the back pointer that is wrong; it is
		// patched in memory only.
		back2 := s.index.Record(s.index.Size() - 2)
		if int64(head.Prev) != back2.End() {
			if s.recovery {
				return stream.Errorf(stream.KindProtocolFailedRecovery,
					"file corrupt: head.prev (= %d) != "+
						"prev(prev(head)).next (= %d). "+
						"Error happened in recovery mode. "+
						"File might be missing data",
					head.Prev, back2.End())
			}
			logging.Must(s.Logger).Warnf(
				"tapeimage: back pointer %d != previous header offset %d, "+
					"patching in memory", head.Prev, back2.End())
			s.recovery = true
			recoveries.Inc()
			head.Prev = uint32(back2.End())
		}
	} else if s.recovery && !s.index.Empty() {
		// Only one header precedes this one, so its back pointer must name
		// the stream's zero, where that header lives.
		if int64(head.Prev) != s.addr.Base() {
			return stream.Errorf(stream.KindProtocolFailedRecovery,
				"file corrupt: second header prev (= %d) must be "+
					"pointing to zero (= %d). Error happened in "+
					"recovery mode. File might be missing data",
				head.Prev, s.addr.Base())
		}
	}

	base := s.addr.Base()
	if !s.index.Empty() {
		base = s.index.Record(s.index.Last()).End()
	}
	s.index.Append(framing.Record{
		Base:   base,
		Length: int64(head.Next) - base,
		Tag:    head.Type,
		Prev:   head.Prev,
	})
	headersParsed.Inc()
	return nil
}

// Seek positions the stream at the logical offset n, indexing forward from
// the last parsed header if n has not been visited yet.
func (s *Stream) Seek(n int64) error {
	if n < 0 {
		return s.Record(stream.Errorf(stream.KindInvalidArgs,
			"tapeimage: seek offset (= %d) < 0", n))
	}
	if n > math.MaxUint32 {
		return s.Record(stream.NewError(stream.KindInvalidArgs,
			"tapeimage: too big seek offset. Tape image format "+
				"does not support files larger than 4GB"))
	}

	// Like the leaf sources, repositioning clears the end-of-stream
	// indicator; forward indexing below rediscovers it if the target really
	// is past the end.
	s.atEnd = false

	if s.index.Contains(n) {
		return s.Record(s.seekIndexed(n))
	}
	return s.Record(s.seekBeyondIndex(n))
}

// seekIndexed seeks to n inside the already-indexed area.
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
			return errors.Wrap(err, "tapeimage: seek")
		}
		s.current.MoveTo(pos - 1)
		s.current.Skip()
		return nil
	}

	if err := s.inner.Seek(target); err != nil {
		return errors.Wrap(err, "tapeimage: seek")
	}
	s.current.MoveTo(pos)
	return s.current.Move(target - s.current.Tell())
}

// seekBeyondIndex follows headers from the last indexed record until the
// target is indexed, the file ends, or a tape mark is hit.
func (s *Stream) seekBeyondIndex(n int64) error {
	s.current.MoveTo(s.index.Last())

	for {
		pos := s.index.Last()
		rec := s.index.Record(pos)
		target := s.addr.Physical(n, pos)
		end := rec.End()

		if target < end {
			// n landed within the indexed area after all; Contains is
			// conservative by one header near the end of the index. Let the
			// index search position the head.
			return s.seekIndexed(n)
		}

		if target == end {
			if err := s.inner.Seek(end); err != nil {
				return errors.Wrap(err, "tapeimage: seek")
			}
			s.current.MoveTo(pos)
			s.current.Skip()
			return nil
		}

		if pos >= 0 && rec.Tag == typeFile {
			// Seeking past a tape mark is allowed (as with C's fseek), but
			// tell is left undefined; a read after it reports EOF at once.
			s.current.MoveTo(pos)
			s.current.Skip()
			return nil
		}

		if err := s.inner.Seek(end); err != nil {
			return errors.Wrap(err, "tapeimage: seek")
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

		if s.atEnd {
			if s.index.Size() == before {
				// No new header: the data ended somewhere in the last
				// record. The seek succeeds; reads will report EOF.
				return nil
			}
			// A header was read, but the file ends after it. Advance within
			// the final record as far as it goes.
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

// Eof reports end-of-stream: a tape mark at the read head, or the inner
// stream having ended cleanly at a header boundary.
func (s *Stream) Eof() bool {
	if s.atEnd {
		return true
	}
	if pos := s.current.Position(); pos >= 0 {
		return s.index.Record(pos).Tag == typeFile
	}
	return false
}

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
			"tapeimage: inner stream already released"))
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
			"tapeimage: inner stream already released"))
	}
	return s.inner, nil
}
