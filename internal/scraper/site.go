// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is a single search result row scraped from an index site.
// Magnet is set only for sites that list magnet links inline; when empty the
// resolver fetches DetailURL and extracts the magnet from the detail page.
type Candidate struct {
	RawTitle  string
	DetailURL string
	Magnet    string
}

// Site describes how to scrape one torrent index: how search URLs are built,
// how result rows are parsed out of a listing page, and how a magnet link is
// extracted from a detail page. Implementations must be stateless; the same
// Site is shared across concurrent searches.
type Site interface {
	Name() string
	SearchURL(query string, page int) string
	ParseRows(doc *goquery.Document, base *url.URL) []Candidate
	ParseMagnet(doc *goquery.Document) string
}

// torrentTableSite scrapes indexes that render results as a table of detail
// links, with the magnet only available on each torrent's detail page.
type torrentTableSite struct {
	name    string
	baseURL string
}

// NewTorrentTableSite returns a Site for table-of-detail-links indexes.
func NewTorrentTableSite(name, baseURL string) Site {
	return &torrentTableSite{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *torrentTableSite) Name() string { return s.name }

func (s *torrentTableSite) SearchURL(query string, page int) string {
	u := fmt.Sprintf("%s/recherche/%s", s.baseURL, url.PathEscape(query))
	if page > 1 {
		u = fmt.Sprintf("%s/%d", u, page)
	}
	return u
}

func (s *torrentTableSite) ParseRows(doc *goquery.Document, base *url.URL) []Candidate {
	var out []Candidate
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if !strings.Contains(href, "/torrent/") && !strings.Contains(href, "/detail/") {
				return true
			}

			title := strings.TrimSpace(a.AttrOr("title", ""))
			if title == "" {
				title = strings.TrimSpace(a.Text())
			}
			if title == "" {
				return true
			}

			out = append(out, Candidate{
				RawTitle:  title,
				DetailURL: resolveHref(base, href),
			})
			return false
		})
	})
	return out
}

func (s *torrentTableSite) ParseMagnet(doc *goquery.Document) string {
	return doc.Find("a[href^='magnet:']").First().AttrOr("href", "")
}

// baySite scrapes bay-style indexes where every result row carries its magnet
// link inline, so no detail-page fetch is needed.
type baySite struct {
	name    string
	baseURL string
}

// NewBaySite returns a Site for indexes with inline magnet links.
func NewBaySite(name, baseURL string) Site {
	return &baySite{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *baySite) Name() string { return s.name }

func (s *baySite) SearchURL(query string, page int) string {
	// The 1080p hint narrows results to streamable encodes; 99/0 is the
	// site's "all categories, default order" suffix.
	return fmt.Sprintf("%s/search/%s/%d/99/0", s.baseURL, url.PathEscape(query+" 1080p"), page)
}

func (s *baySite) ParseRows(doc *goquery.Document, base *url.URL) []Candidate {
	var out []Candidate
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		magnet := row.Find("a[href^='magnet:']").First().AttrOr("href", "")
		if magnet == "" {
			return
		}

		title := strings.TrimSpace(row.Find(".detName a").First().Text())
		if title == "" {
			title = strings.TrimSpace(row.Find("a.detLink").First().Text())
		}
		if title == "" {
			return
		}

		out = append(out, Candidate{
			RawTitle:  title,
			DetailURL: magnet,
			Magnet:    magnet,
		})
	})
	return out
}

func (s *baySite) ParseMagnet(doc *goquery.Document) string {
	return doc.Find("a[href^='magnet:']").First().AttrOr("href", "")
}

func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
