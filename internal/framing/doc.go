// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package framing holds the bookkeeping shared by the framing decoders: the
// logical/physical address map, the append-only record index, and the read
// head cursor.
//
// The decoders differ in header size, header contents and validation policy,
// but index records, translate addresses and advance through payload the same
// way. Everything here is pure state; no I/O happens in this package.
package framing
