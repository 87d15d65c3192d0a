// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scraper

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/reelay/reelay/internal/buildinfo"
)

const defaultMaxPages = 2

// Crawler walks an index site's result pages and yields deduplicated
// candidates in page order.
type Crawler struct {
	httpClient *http.Client
	maxPages   int
	log        zerolog.Logger
}

func NewCrawler(maxPages int, logger zerolog.Logger) *Crawler {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Crawler{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		maxPages:   maxPages,
		log:        logger.With().Str("component", "crawler").Logger(),
	}
}

// Crawl returns a lazy sequence of candidates for rawQuery on site. Pages are
// fetched on demand, so a consumer that stops early never triggers the next
// page request. Duplicate detail URLs across pages are yielded once.
// Iteration ends at the page bound, on a page that yields no new candidates,
// or on a fetch failure; failures are logged, never surfaced.
func (c *Crawler) Crawl(ctx context.Context, site Site, rawQuery string) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		seen := make(map[string]struct{})

		for page := 1; page <= c.maxPages; page++ {
			pageURL := site.SearchURL(rawQuery, page)

			doc, err := c.fetchDocument(ctx, pageURL)
			if err != nil {
				c.log.Debug().Err(err).Str("site", site.Name()).Str("url", pageURL).Msg("Search page fetch failed, stopping crawl")
				return
			}

			base, err := url.Parse(pageURL)
			if err != nil {
				base = nil
			}

			fresh := 0
			for _, cand := range site.ParseRows(doc, base) {
				if _, dup := seen[cand.DetailURL]; dup {
					continue
				}
				seen[cand.DetailURL] = struct{}{}
				fresh++

				if !yield(cand) {
					return
				}
			}

			// A page with nothing new means we ran off the end of the results.
			if fresh == 0 {
				return
			}
		}
	}
}

func (c *Crawler) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, pageURL)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}
