// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package rp66 implements the rp66 visible envelope framing layer.
//
// A visible envelope file is a concatenation of visible records. Each record
// begins with a 4-byte header: a 16-bit big-endian length that includes the
// header itself, a format byte that is always 0xFF, and a major version byte
// that is always 0x01. There is no back pointer and no end marker; the file
// ends exactly on a record boundary.
//
// The format version bytes are a strict requirement. No other application of
// the visible envelope is known, so a mismatch identifies broken or
// non-envelope files and is a fatal protocol error; unlike the tape image
// decoder, there is no recovery mode.
package rp66
