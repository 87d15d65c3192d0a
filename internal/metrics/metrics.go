// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes Prometheus instrumentation for the search and
// streaming pipelines, served on a dedicated listener kept off the public
// API address.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Searches counts magnet searches by site name and outcome (found,
	// not_found, bad_request).
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelay_searches_total",
		Help: "Magnet searches by index site and outcome.",
	}, []string{"site", "outcome"})

	// SessionsLaunched counts worker container launch attempts by outcome.
	SessionsLaunched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelay_sessions_launched_total",
		Help: "Streaming worker container launches by outcome.",
	}, []string{"outcome"})

	// ActiveStreams tracks video proxy requests currently in flight.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelay_active_streams",
		Help: "Video streams currently being proxied.",
	})

	// StreamedBytes counts video bytes relayed to clients.
	StreamedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelay_streamed_bytes_total",
		Help: "Total video bytes proxied to clients.",
	})
)

// NewServer returns an HTTP server exposing /metrics on its own address.
func NewServer(host string, port int) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
	}
}
