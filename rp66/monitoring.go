// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rp66

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	headersParsed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wellstream_rp66_headers_parsed",
		Help: "Count of visible record headers parsed from disk.",
	})

	bytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wellstream_rp66_payload_bytes",
		Help: "Count of payload bytes delivered by visible envelope decoders.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		headersParsed,
		bytesRead,
	)
}
