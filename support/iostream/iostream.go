// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package iostream bridges the repository's stream contract and the standard
// io interfaces.
//
// The Stream contract is richer than io.Reader: it distinguishes a
// temporarily blocked inner stream from end-of-stream, and reads can succeed
// while flagging framing recovery. The adapter flattens those distinctions
// into the conventions io consumers expect.
package iostream

import (
	"io"

	"github.com/pkg/errors"

	"github.com/danjacques/wellstream/stream"
)

// Reader adapts a stream.Stream to io.Reader, io.Seeker and io.Closer.
//
// The adapter borrows s; Close closes it.
type Reader struct {
	s stream.Stream
}

var _ interface {
	io.Reader
	io.Seeker
	io.Closer
} = (*Reader)(nil)

// NewReader returns a Reader over s.
func NewReader(s stream.Stream) *Reader { return &Reader{s: s} }

// Read implements io.Reader.
//
// EOF is reported as io.EOF once no more bytes can be produced. A read that
// made no progress on a temporarily blocked stream reports io.ErrNoProgress
// rather than spinning the caller. Recovery-mode reads are successes.
func (r *Reader) Read(p []byte) (int, error) {
	n, st, err := r.s.ReadInto(p)
	if err != nil {
		return int(n), err
	}

	switch st {
	case stream.EOF:
		if n == 0 {
			return 0, io.EOF
		}
		return int(n), nil
	case stream.Incomplete:
		if n == 0 {
			return 0, io.ErrNoProgress
		}
		return int(n), nil
	default:
		// A handle in recovery mode reports TryRecovery instead of EOF, so
		// end-of-stream has to be asked for explicitly.
		if n == 0 && r.s.Eof() {
			return 0, io.EOF
		}
		return int(n), nil
	}
}

// Seek implements io.Seeker over the stream's logical coordinates.
//
// io.SeekEnd is not supported: the logical size of a framed stream is not
// known until it has been indexed to the end.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		cur, err := r.s.Tell()
		if err != nil {
			return 0, err
		}
		target = cur + offset
	case io.SeekEnd:
		return 0, errors.New("iostream: seek from end is not supported")
	default:
		return 0, errors.Errorf("iostream: invalid whence %d", whence)
	}

	if err := r.s.Seek(target); err != nil {
		return 0, err
	}
	return target, nil
}

// Close implements io.Closer, closing the underlying stream.
func (r *Reader) Close() error { return r.s.Close() }

// ReadFull reads exactly len(buf) bytes from s, retrying reads that return
// Incomplete without progress being lost.
//
// This accommodates inner streams that are allowed to produce fewer bytes
// than requested without that meaning end-of-stream. If the stream ends
// before buf is full, an UnexpectedEOF error reports the byte count read so
// far.
func ReadFull(s stream.Stream, buf []byte) error {
	var total int64
	for total < int64(len(buf)) {
		n, st, err := s.ReadInto(buf[total:])
		total += n
		if err != nil {
			return err
		}

		// A handle in recovery mode reports TryRecovery instead of EOF, so
		// end-of-stream has to be asked for explicitly.
		ended := st == stream.EOF || (st == stream.TryRecovery && s.Eof())
		if ended && total < int64(len(buf)) {
			return stream.Errorf(stream.KindUnexpectedEOF,
				"iostream: stream ended after %d of %d bytes",
				total, len(buf))
		}
	}
	return nil
}
