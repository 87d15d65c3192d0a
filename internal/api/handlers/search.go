// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/reelay/reelay/internal/metrics"
	"github.com/reelay/reelay/internal/scraper"
)

// searchTimeout bounds one search: up to the page budget of listing fetches
// plus detail-page fetches on slow index sites.
const searchTimeout = 60 * time.Second

// SearchResult is one resolved torrent as returned to the frontend.
type SearchResult struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// SearchHandler serves the magnet search endpoints, one per index site.
type SearchHandler struct {
	searcher *scraper.Service
	frSite   scraper.Site
	enSite   scraper.Site
}

func NewSearchHandler(searcher *scraper.Service, frSite, enSite scraper.Site) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
		frSite:   frSite,
		enSite:   enSite,
	}
}

// SearchFR resolves a query against the French index site.
func (h *SearchHandler) SearchFR(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, h.frSite)
}

// SearchEN resolves a query against the English index site.
func (h *SearchHandler) SearchEN(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, h.enSite)
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request, site scraper.Site) {
	query := r.URL.Query().Get("query")
	if query == "" {
		metrics.Searches.WithLabelValues(site.Name(), "bad_request").Inc()
		RespondError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), searchTimeout)
	defer cancel()

	resolved := h.searcher.Search(ctx, site, query)

	// An empty result is a valid answer, not an error: the frontend shows
	// "nothing found" and lets the user refine the query.
	results := make([]SearchResult, 0, len(resolved))
	for _, res := range resolved {
		results = append(results, SearchResult{Title: res.Title, Href: res.Magnet})
	}

	outcome := "found"
	if len(results) == 0 {
		outcome = "not_found"
	}
	metrics.Searches.WithLabelValues(site.Name(), outcome).Inc()

	RespondJSON(w, http.StatusOK, results)
}
