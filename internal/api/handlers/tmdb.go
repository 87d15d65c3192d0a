// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/reelay/reelay/internal/services/tmdb"
)

// TMDBHandler serves title lookups against TMDB. The client is nil when no
// API key is configured; the endpoint then reports the feature unavailable.
type TMDBHandler struct {
	client *tmdb.Client
}

func NewTMDBHandler(client *tmdb.Client) *TMDBHandler {
	return &TMDBHandler{client: client}
}

// Search runs a TMDB multi search for the query parameter.
func (h *TMDBHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		RespondError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	if h.client == nil {
		RespondError(w, http.StatusServiceUnavailable, "TMDB search is not configured")
		return
	}

	results, err := h.client.SearchMulti(r.Context(), query)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("TMDB search failed")
		RespondError(w, http.StatusInternalServerError, "Failed to search TMDB")
		return
	}

	RespondJSON(w, http.StatusOK, results)
}
