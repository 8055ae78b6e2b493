// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package logging defines the diagnostic logging surface consumed by the
// framing decoders.
//
// Decoders emit two kinds of diagnostics: warnings about framing anomalies
// they patched over (an unknown tape image record type, a back pointer that
// disagrees with the previous header), and routine progress notes. Nothing
// in the core depends on a logger being present; an absent logger simply
// discards both.
package logging

// L accepts framing diagnostics.
//
// The interface is deliberately small. zap's zap.SugaredLogger satisfies it
// as-is, and Func adapts any printf-shaped function.
type L interface {
	// Warnf reports a framing anomaly that was recovered from.
	Warnf(fmt string, args ...interface{})

	// Infof reports routine progress.
	Infof(fmt string, args ...interface{})
}

// Func adapts a printf-style function, such as log.Printf or testing.T.Logf,
// to L. Warnings and progress notes are both routed to the function.
type Func func(fmt string, args ...interface{})

// Warnf implements L.
func (f Func) Warnf(fmt string, args ...interface{}) { f(fmt, args...) }

// Infof implements L.
func (f Func) Infof(fmt string, args ...interface{}) { f(fmt, args...) }

// Nop is a L instance that does nothing.
var Nop L = nop{}

// Must ensures that a valid L is available. If l is not nil, it will be
// returned; otherwise, Must will return Nop.
func Must(l L) L {
	if l != nil {
		return l
	}
	return Nop
}

type nop struct{}

func (nop) Warnf(fmt string, args ...interface{}) {}
func (nop) Infof(fmt string, args ...interface{}) {}
