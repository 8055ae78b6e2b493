// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package tapeimage

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	headersParsed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wellstream_tapeimage_headers_parsed",
		Help: "Count of tape image record headers parsed from disk.",
	})

	recoveries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wellstream_tapeimage_recoveries",
		Help: "Count of framing anomalies patched over in recovery mode.",
	})

	bytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wellstream_tapeimage_payload_bytes",
		Help: "Count of payload bytes delivered by tape image decoders.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		headersParsed,
		recoveries,
		bytesRead,
	)
}
