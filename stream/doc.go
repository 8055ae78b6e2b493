// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package stream defines the layered stream contract shared by every leaf
// source and framing decoder in this repository.
//
// A Stream is a seekable, byte-oriented view of some payload. Leaf streams
// (package source) produce bytes directly from memory or a host file. Framing
// decoders (packages tapeimage and rp66) wrap an inner Stream and present its
// payload with the framing headers stripped, translating logical offsets to
// physical offsets on the fly.
//
// Streams compose: the payload of a framing layer may itself be framed, and
// a decoder neither knows nor cares whether its inner Stream is a leaf or
// another decoder. Closing the outermost Stream recursively closes everything
// it owns.
//
// # Results
//
// Read outcomes split into a success family and a failure family. The success
// family is the Status value returned by ReadInto: Ok (the buffer was
// filled), Incomplete (the inner stream is temporarily exhausted or blocked),
// EOF (the stream ended), and TryRecovery (the read succeeded, but the
// decoder is running in recovery mode after a framing anomaly). Failures are
// ordinary Go errors carrying a Kind; use KindOf to classify an error
// through any number of errors.Wrap layers.
//
// Every Stream is a single-owner, single-threaded resource. No operation may
// be invoked concurrently on the same handle.
package stream
