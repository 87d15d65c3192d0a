// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scraper

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/reelay/reelay/internal/buildinfo"
)

// ResolvedMagnet is a successfully resolved search result: the candidate's
// raw title as listed on the index, and its magnet URI.
type ResolvedMagnet struct {
	Title  string
	Magnet string
}

// Resolver filters crawled candidates against a normalized query and
// resolves the first acceptable one to a magnet link.
type Resolver struct {
	httpClient *http.Client
	log        zerolog.Logger
}

func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		log:        logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve consumes candidates until one passes the title filter and yields a
// magnet link, then stops without examining the rest. Candidates that pass
// the filter but whose detail page turns out to carry no magnet anchor are
// skipped. Returns false when the sequence is exhausted without a match.
//
// The filter is two checks against the candidate's raw title:
//   - when the query carries a year, the raw title must contain it verbatim;
//   - the normalized title must start with the normalized query at a word
//     boundary, so "Anna" never matches "Annabelle".
func (r *Resolver) Resolve(ctx context.Context, site Site, query NormalizedQuery, candidates iter.Seq[Candidate]) (ResolvedMagnet, bool) {
	for cand := range candidates {
		if !r.accepts(query, cand.RawTitle) {
			continue
		}

		if cand.Magnet != "" {
			return ResolvedMagnet{Title: cand.RawTitle, Magnet: cand.Magnet}, true
		}

		magnet, err := r.fetchMagnet(ctx, site, cand.DetailURL)
		if err != nil {
			r.log.Debug().Err(err).Str("site", site.Name()).Str("url", cand.DetailURL).Msg("Detail page fetch failed, skipping candidate")
			continue
		}
		if magnet == "" {
			r.log.Debug().Str("site", site.Name()).Str("url", cand.DetailURL).Msg("Detail page has no magnet link, skipping candidate")
			continue
		}

		return ResolvedMagnet{Title: cand.RawTitle, Magnet: magnet}, true
	}

	return ResolvedMagnet{}, false
}

func (r *Resolver) accepts(query NormalizedQuery, rawTitle string) bool {
	if query.Year != "" && !strings.Contains(strings.ToLower(rawTitle), query.Year) {
		return false
	}
	return titleMatchesPrefix(query.CleanTitle, Normalize(rawTitle).CleanTitle)
}

func (r *Resolver) fetchMagnet(ctx context.Context, site Site, detailURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, detailURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	return site.ParseMagnet(doc), nil
}
