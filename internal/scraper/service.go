// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scraper resolves free-text media titles to magnet links by
// crawling torrent index sites. The raw query drives the site search; title
// matching runs on normalized forms so release-name noise never affects it.
package scraper

import (
	"context"

	"github.com/rs/zerolog"
)

// Service is the search pipeline: crawl an index site, filter candidates
// against the query, resolve the first acceptable one to a magnet.
type Service struct {
	crawler  *Crawler
	resolver *Resolver
	log      zerolog.Logger
}

func NewService(maxPages int, logger zerolog.Logger) *Service {
	return &Service{
		crawler:  NewCrawler(maxPages, logger),
		resolver: NewResolver(logger),
		log:      logger.With().Str("module", "scraper").Logger(),
	}
}

// Search resolves rawQuery against site. The result holds at most one entry;
// an empty result means no candidate matched or the site was unreachable.
func (s *Service) Search(ctx context.Context, site Site, rawQuery string) []ResolvedMagnet {
	query := Normalize(rawQuery)
	if query.CleanTitle == "" {
		return nil
	}

	candidates := s.crawler.Crawl(ctx, site, rawQuery)

	resolved, ok := s.resolver.Resolve(ctx, site, query, candidates)
	if !ok {
		s.log.Debug().Str("site", site.Name()).Str("query", rawQuery).Msg("No matching torrent found")
		return nil
	}

	s.log.Info().Str("site", site.Name()).Str("query", rawQuery).Str("title", resolved.Title).Msg("Resolved magnet link")
	return []ResolvedMagnet{resolved}
}
