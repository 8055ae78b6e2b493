// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package source

import (
	"io"

	"github.com/pkg/errors"

	"github.com/danjacques/wellstream/stream"
)

// OSFile is the host file surface consumed by File.
//
// *os.File satisfies it, and the host's Seek carries the 64-bit offset
// support this package relies on. Anything else that honours the usual POSIX
// read/seek/close semantics works too.
type OSFile interface {
	io.Reader
	io.Seeker
	io.Closer
}

// File is a leaf stream over a host file handle.
//
// File owns the handle: closing the stream closes the handle. A non-negative
// zero offset is treated as the stream's logical origin, so Tell reports
// host position minus zero and Seek(n) positions the host at zero + n.
type File struct {
	stream.Errmsg

	f    OSFile
	zero int64

	// seekMsg is captured at open when the handle turns out not to be
	// tellable (a pipe, for example). While set, every Seek, Tell and Ptell
	// fails with NotSupported carrying this message.
	seekMsg string

	atEOF bool
}

var _ stream.Stream = (*File)(nil)

// NewFile wraps f, taking the handle's current physical offset as the
// stream's zero.
//
// If the handle cannot report its offset, the stream is still readable, but
// seek and tell are disabled and report NotSupported.
func NewFile(f OSFile) *File {
	fs := File{f: f}

	off, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		fs.seekMsg = err.Error()
		return &fs
	}

	fs.zero = off
	return &fs
}

// NewFileAt wraps f with an explicit zero offset, seeking the handle there.
func NewFileAt(f OSFile, zero int64) (*File, error) {
	if zero < 0 {
		return nil, stream.Errorf(stream.KindInvalidArgs,
			"file: zero offset (= %d) < 0", zero)
	}
	if _, err := f.Seek(zero, io.SeekStart); err != nil {
		return nil, stream.WrapError(stream.KindNotSupported, err,
			"file: seeking to zero offset")
	}
	return &File{f: f, zero: zero}, nil
}

// ReadInto reads up to len(dst) bytes from the handle.
//
// Like fread(3), it keeps reading until the buffer is full, the file ends,
// or the host reports an error: io.Reader is allowed to return less than the
// buffer without that meaning anything. A short result at end-of-stream
// reports EOF; a short result on a blocked handle reports Incomplete. Host
// read failures report IOError with the host's message.
func (s *File) ReadInto(dst []byte) (int64, stream.Status, error) {
	if len(dst) == 0 {
		return 0, stream.Ok, nil
	}

	var total int64
	for total < int64(len(dst)) {
		n, err := s.f.Read(dst[total:])
		total += int64(n)

		if err == io.EOF {
			s.atEOF = true
			break
		}
		if err != nil {
			return total, 0, s.Record(stream.WrapError(
				stream.KindIOError, err, "file: read"))
		}
		if n == 0 {
			// No progress and no error: the handle is blocked.
			break
		}
	}

	if total == int64(len(dst)) {
		return total, stream.Ok, nil
	}
	if s.atEOF {
		return total, stream.EOF, nil
	}
	return total, stream.Incomplete, nil
}

// Seek positions the handle at zero + n.
func (s *File) Seek(n int64) error {
	if s.seekMsg != "" {
		return s.Record(stream.NewError(stream.KindNotSupported, s.seekMsg))
	}
	if n < 0 {
		return s.Record(stream.Errorf(stream.KindInvalidArgs,
			"file: seek offset (= %d) < 0", n))
	}

	if _, err := s.f.Seek(s.zero+n, io.SeekStart); err != nil {
		return s.Record(stream.WrapError(stream.KindIOError, err, "file: seek"))
	}

	// Like fseek(3), a successful seek clears the end-of-file indicator.
	s.atEOF = false
	return nil
}

// Tell returns the host position relative to zero.
func (s *File) Tell() (int64, error) {
	off, err := s.ptell()
	if err != nil {
		return 0, err
	}
	return off - s.zero, nil
}

// Ptell returns the absolute host position.
func (s *File) Ptell() (int64, error) { return s.ptell() }

func (s *File) ptell() (int64, error) {
	if s.seekMsg != "" {
		return 0, s.Record(stream.NewError(stream.KindNotSupported, s.seekMsg))
	}

	off, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, s.Record(stream.WrapError(stream.KindIOError, err, "file: tell"))
	}
	return off, nil
}

// Eof reports whether a read has hit the end of the file.
func (s *File) Eof() bool { return s.atEOF }

// Close closes the host file. Host close failures propagate as RuntimeError.
func (s *File) Close() error {
	if s.f == nil {
		return nil
	}

	f := s.f
	s.f = nil
	if err := f.Close(); err != nil {
		return s.Record(stream.WrapError(stream.KindRuntimeError,
			errors.WithStack(err), "file: close"))
	}
	return nil
}

// Peel fails: a leaf has no inner stream.
func (s *File) Peel() (stream.Stream, error) {
	return nil, s.Record(stream.NewError(stream.KindLeafProtocol,
		"peel: not supported for leaf stream"))
}

// Peek fails: a leaf has no inner stream.
func (s *File) Peek() (stream.Stream, error) {
	return nil, s.Record(stream.NewError(stream.KindLeafProtocol,
		"peek: not supported for leaf stream"))
}
