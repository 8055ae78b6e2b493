// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

// Status is the success-family outcome of a ReadInto call.
//
// A Status accompanies the byte count of every successful read. Failure
// outcomes are reported as errors instead; see Kind.
type Status int

const (
	// Ok means the request was fully satisfied.
	Ok Status = iota

	// Incomplete means fewer bytes than requested were produced because the
	// inner stream is temporarily exhausted or blocked. The read may succeed
	// if retried later; this is not end-of-stream.
	Incomplete

	// EOF means fewer bytes than requested were produced because the stream
	// ended.
	EOF

	// TryRecovery means the read succeeded, but the producing decoder has
	// patched over a framing anomaly and its results are suspect. Once a
	// handle reports TryRecovery, every subsequent successful read on it
	// does too.
	TryRecovery
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Incomplete:
		return "incomplete"
	case EOF:
		return "eof"
	case TryRecovery:
		return "try-recovery"
	default:
		return "unknown"
	}
}

// Stream is a seekable, byte-oriented stream of some logical payload.
//
// Offsets accepted and reported by Seek and Tell are logical: they address
// the payload as if no framing existed. Ptell reports the physical position
// of the ultimate leaf source, framing included.
//
// A Stream is single-owner and single-threaded. After Close, the handle is
// invalid and must not be used.
type Stream interface {
	// ReadInto reads up to len(dst) bytes into dst from the current logical
	// position, advancing it by the number of bytes read.
	//
	// A zero-length dst is a no-op returning (0, Ok, nil). The byte count is
	// meaningful regardless of the returned Status or error; partially read
	// data is always reported.
	ReadInto(dst []byte) (int64, Status, error)

	// Seek sets the logical position to n.
	//
	// n must be non-negative. Formats with 32-bit on-disk offsets reject
	// targets beyond 4 GiB with an InvalidArgs error. The file source and
	// the framing decoders accept targets past the end of the stream, and a
	// subsequent read reports EOF; the memory source rejects any offset at or
	// past the end of its buffer with an InvalidArgs error.
	Seek(n int64) error

	// Tell returns the current logical position.
	Tell() (int64, error)

	// Ptell returns the current physical position of the ultimate leaf
	// source. Framing layers forward it unchanged.
	Ptell() (int64, error)

	// Eof reports whether the stream cannot produce more bytes.
	Eof() bool

	// Close releases the stream and any inner stream it owns. Close must be
	// called at most once.
	Close() error

	// Peel transfers ownership of the inner stream to the caller. The outer
	// handle remains valid only for Close, which becomes a no-op. Leaf
	// streams fail with a LeafProtocol error.
	Peel() (Stream, error)

	// Peek borrows the inner stream without transferring ownership. The
	// returned handle is valid only until the next mutating call on the
	// outer stream, and must not be retained. Leaf streams fail with a
	// LeafProtocol error.
	Peek() (Stream, error)

	// LastError returns the message of the most recent failure on this
	// handle, or "" if none occurred.
	LastError() string
}

// Close closes s if it is non-nil. A nil Stream is not an error.
func Close(s Stream) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

// Errmsg carries the most recent error message observed on a handle.
//
// It is intended to be embedded in Stream implementations to satisfy
// LastError; failures are routed through Record on their way out.
type Errmsg struct {
	msg string
}

// LastError returns the recorded message, or "" if none.
func (e *Errmsg) LastError() string { return e.msg }

// Record notes err's message on the handle and returns err unchanged. A nil
// err is passed through without clearing the recorded message.
func (e *Errmsg) Record(err error) error {
	if err != nil {
		e.msg = err.Error()
	}
	return err
}
