// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/reelay/reelay/internal/container"
	"github.com/reelay/reelay/internal/streamproxy"
)

// DownloadRequest starts a streaming session for a magnet link.
type DownloadRequest struct {
	Magnet string `json:"magnet"`
}

// DownloadResponse carries the id used for all follow-up stream requests.
type DownloadResponse struct {
	StreamID string `json:"stream_id"`
}

// StreamHandler starts download sessions and proxies stream traffic to the
// session's worker container.
type StreamHandler struct {
	manager *container.Manager
	proxy   *streamproxy.Proxy
}

func NewStreamHandler(manager *container.Manager, proxy *streamproxy.Proxy) *StreamHandler {
	return &StreamHandler{
		manager: manager,
		proxy:   proxy,
	}
}

func (h *StreamHandler) Routes(r chi.Router) {
	r.Post("/download", h.Download)
	r.Route("/stream/{streamID}", func(r chi.Router) {
		r.Get("/meta", h.Meta)
		r.Get("/video", h.Video)
	})
}

// Download launches a worker container for the given magnet and returns the
// stream id right away; the container comes up in the background and clients
// poll the meta endpoint until it answers.
func (h *StreamHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error().Err(err).Msg("Failed to decode download request")
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !strings.HasPrefix(req.Magnet, "magnet:") {
		RespondError(w, http.StatusBadRequest, "magnet link is required")
		return
	}

	sess := h.manager.StartSession(req.Magnet)

	RespondJSON(w, http.StatusOK, DownloadResponse{StreamID: sess.ID})
}

// Meta relays the worker's download metadata (name, size, progress).
func (h *StreamHandler) Meta(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	if streamID == "" {
		RespondError(w, http.StatusBadRequest, "stream id is required")
		return
	}

	h.proxy.Meta(w, r, container.ContainerName(streamID))
}

// Video relays the media stream with Range support.
func (h *StreamHandler) Video(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	if streamID == "" {
		RespondError(w, http.StatusBadRequest, "stream id is required")
		return
	}

	h.proxy.Video(w, r, container.ContainerName(streamID))
}
