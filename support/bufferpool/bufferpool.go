// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package bufferpool offers reusable fixed-size byte buffers for copy loops.
package bufferpool

import (
	"sync"
)

// Pool maintains a pool of byte buffers of a fixed size. It allocates a new
// buffer when none is available.
type Pool struct {
	// Size is the size of the buffers in this pool.
	Size int

	base sync.Pool
}

// Get returns a buffer of length p.Size, allocating one if none is
// available.
//
// The caller should return the buffer by calling Put when done with it.
func (p *Pool) Get() []byte {
	if b, ok := p.base.Get().([]byte); ok {
		return b
	}
	return make([]byte, p.Size)
}

// Put returns a buffer obtained from Get to the pool.
func (p *Pool) Put(b []byte) {
	if len(b) != p.Size {
		// Not one of ours (or resliced); dropping it is harmless.
		return
	}
	p.base.Put(b)
}
