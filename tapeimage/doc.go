// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package tapeimage implements the tape image framing layer.
//
// A tape image file is a concatenation of records, each preceded by a
// 12-byte header of three little-endian uint32 fields: a type, the absolute
// offset of the previous header, and the absolute offset of the next header.
// Type 0 is an ordinary record; type 1 is a tape mark terminating a logical
// file. On-disk offsets are 32 bits, capping addressable files at 4 GiB.
//
// The decoder indexes headers on demand as reads and seeks move forward, and
// presents the concatenated record payloads as one seekable stream.
//
// Tape image back-pointers and type fields are corruptible in the wild. The
// decoder patches a single anomaly in memory and continues in a sticky
// recovery mode, reporting TryRecovery on every later successful read; a
// second anomaly on the same handle is a ProtocolFailedRecovery error.
package tapeimage
