// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package streamproxy relays HTTP requests to the per-session streaming
// workers, preserving Range semantics so video clients can seek.
package streamproxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelay/reelay/internal/metrics"
)

const (
	// metaProbeTimeout bounds the metadata probe so a worker that is still
	// fetching torrent metadata turns into a fast 503 instead of a hang.
	metaProbeTimeout = 2 * time.Second

	workerPort = 9000
)

// Proxy forwards metadata and video requests to a worker container, which is
// addressable by container name on the shared Docker network.
type Proxy struct {
	probeClient  *http.Client
	streamClient *http.Client
	resolve      func(containerName string) string
	log          zerolog.Logger
}

func New(logger zerolog.Logger) *Proxy {
	return NewWithResolver(func(containerName string) string {
		return fmt.Sprintf("http://%s:%d", containerName, workerPort)
	}, logger)
}

// NewWithResolver overrides how a container name maps to a worker base URL.
func NewWithResolver(resolve func(containerName string) string, logger zerolog.Logger) *Proxy {
	return &Proxy{
		probeClient: &http.Client{Timeout: metaProbeTimeout},
		// Playback has no natural deadline; the stream client relies on
		// client disconnects (request context) to end transfers.
		streamClient: &http.Client{},
		resolve:      resolve,
		log:          logger.With().Str("module", "streamproxy").Logger(),
	}
}

// Meta probes the worker's /meta endpoint and relays status and body
// verbatim. A worker that is unreachable or slow to answer yields 503, which
// clients treat as "still starting, poll again".
func (p *Proxy) Meta(w http.ResponseWriter, r *http.Request, containerName string) {
	target := p.resolve(containerName) + "/meta"

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		p.respondUnavailable(w, "invalid worker address")
		return
	}

	resp, err := p.probeClient.Do(req)
	if err != nil {
		p.log.Debug().Err(err).Str("container", containerName).Msg("Metadata probe failed")
		p.respondUnavailable(w, "streamer not connected yet")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.log.Debug().Err(err).Str("container", containerName).Msg("Metadata relay interrupted")
	}
}

// Video proxies the media stream. The client's Range header is forwarded
// upstream, and the worker's Content-Type, Content-Length and Content-Range
// come back untouched alongside its status code, so partial-content
// responses survive the hop and seeking works.
func (p *Proxy) Video(w http.ResponseWriter, r *http.Request, containerName string) {
	target := p.resolve(containerName) + "/"

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		p.respondUnavailable(w, "invalid worker address")
		return
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := p.streamClient.Do(req)
	if err != nil {
		p.log.Debug().Err(err).Str("container", containerName).Msg("Worker not reachable for video")
		p.respondUnavailable(w, "streamer not connected yet")
		return
	}
	defer resp.Body.Close()

	for _, header := range []string{"Content-Type", "Content-Length", "Content-Range"} {
		if v := resp.Header.Get(header); v != "" {
			w.Header().Set(header, v)
		}
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(resp.StatusCode)

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	n, err := io.Copy(w, resp.Body)
	metrics.StreamedBytes.Add(float64(n))
	if err != nil {
		// Normal for seeks and aborted playback.
		p.log.Debug().Err(err).Str("container", containerName).Int64("bytes", n).Msg("Video stream ended early")
	}
}

func (p *Proxy) respondUnavailable(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
