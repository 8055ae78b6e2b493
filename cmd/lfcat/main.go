// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Command lfcat copies the logical payload of a framed well-log file to
// stdout, unwrapping tape image and/or visible envelope framing.
//
// Examples:
//
//	lfcat --tif 1 dump.lis            # one tape image layer
//	lfcat --rp66 1 storage.dlis       # one visible envelope layer
//	lfcat --tif 1 --rp66 1 wrapped    # tape image around visible envelope
//
// Layers are unwrapped outermost first: every --tif layer is peeled before
// the --rp66 layers. Reading from stdin buffers the whole input in memory,
// since pipes cannot seek.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/danjacques/wellstream/rp66"
	"github.com/danjacques/wellstream/source"
	"github.com/danjacques/wellstream/stream"
	"github.com/danjacques/wellstream/support/bufferpool"
	"github.com/danjacques/wellstream/support/fmtutil"
	"github.com/danjacques/wellstream/support/iostream"
	"github.com/danjacques/wellstream/support/logging"
	"github.com/danjacques/wellstream/tapeimage"
)

var (
	tifLayers = pflag.Int("tif", 0,
		"number of tape image framing layers to unwrap")
	rp66Layers = pflag.Int("rp66", 0,
		"number of visible envelope framing layers to unwrap")
	offset = pflag.Int64("offset", 0,
		"absolute byte offset of the framed stream within the file")
	verbose = pflag.BoolP("verbose", "v", false,
		"log framing diagnostics to stderr")
)

var copyBuffers = bufferpool.Pool{Size: 1024 * 1024}

func main() {
	pflag.Parse()

	if err := run(pflag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "lfcat: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	logger := logging.Nop
	if *verbose {
		logger = logging.Func(log.New(os.Stderr, "lfcat: ", 0).Printf)
	}

	s, err := openLeaf(args)
	if err != nil {
		return err
	}
	// From here on the outermost layer owns everything beneath it; closing
	// it recursively closes the leaf.
	defer func() {
		if cerr := stream.Close(s); cerr != nil {
			logger.Warnf("close: %s", cerr)
		}
	}()

	for i := 0; i < *tifLayers; i++ {
		ti, err := tapeimage.New(s)
		if err != nil {
			return err
		}
		ti.Logger = logger
		s = ti
	}
	for i := 0; i < *rp66Layers; i++ {
		ve, err := rp66.New(s)
		if err != nil {
			return err
		}
		s = ve
	}

	buf := copyBuffers.Get()
	defer copyBuffers.Put(buf)

	n, err := io.CopyBuffer(os.Stdout, iostream.NewReader(s), buf)
	if err != nil {
		return err
	}

	logger.Infof("copied %s (%d payload bytes)", fmtutil.ByteSize(n), n)
	return nil
}

// openLeaf opens the leaf source: a named file, or stdin buffered in memory.
func openLeaf(args []string) (stream.Stream, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}

		m := source.NewMemoryWith(data)
		if *offset > 0 {
			if err := m.Seek(*offset); err != nil {
				return nil, err
			}
		}
		return m, nil
	}

	f, err := os.Open(args[0])
	if err != nil {
		return nil, err
	}

	if *offset > 0 {
		return source.NewFileAt(f, *offset)
	}
	return source.NewFile(f), nil
}
