// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package source provides the leaf streams: byte producers with no inner
// stream of their own.
//
// Memory serves bytes from a borrowed in-memory buffer; File wraps a host
// file handle. Both implement stream.Stream, so framing decoders can be
// stacked on either without knowing the difference.
package source
