// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package fmtutil contains formatting helpers for stream diagnostics.
package fmtutil

import (
	"fmt"
	"strings"
)

// Bytes is a byte slice that renders as space-separated hex octets, in file
// order: "01 00 00 00 20". Framing headers are small, so one line is enough.
//
// Formatting is deferred until String is called, which keeps it cheap to
// pass on log paths that rarely fire.
type Bytes []byte

func (b Bytes) String() string {
	var sb strings.Builder
	sb.Grow(3 * len(b))
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}

// ByteSize renders a byte count with a binary-prefix unit: "18 B",
// "1.5 MiB". Counts under one KiB render as plain bytes.
func ByteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
