// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scraper

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// stopWords are release-metadata markers stripped from titles before
// comparison: resolution, source, language and codec tags. Matching is by
// case-insensitive substring containment so "1080p.BluRay" style tokens are
// caught regardless of surrounding punctuation.
var stopWords = []string{
	"1080p", "720p", "4k",
	"bluray", "webrip", "hdcam", "dvdrip", "hdlight",
	"truefrench", "french", "vostfr", "multi",
	"x264", "h264", "x265", "h265", "hevc", "aac", "ac3", "dts",
}

// NormalizedQuery is the cleaned form of a raw search query or candidate
// title. Year is empty when no 4-digit token was present.
type NormalizedQuery struct {
	CleanTitle string
	Year       string
}

// Normalize strips release noise from a raw title. Punctuation is treated as
// a token separator so dotted release names ("Taken.2019.1080p.BluRay.x264")
// tokenize the same way as spaced ones. The first 4-digit numeric token is
// captured as the year; all 4-digit tokens and stop-word tokens are removed.
// The same function must be applied to both the query and each candidate
// title so comparisons stay symmetric.
func Normalize(raw string) NormalizedQuery {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	var year string
	var clean []string
	for _, token := range strings.Fields(b.String()) {
		if isYearToken(token) {
			if year == "" {
				year = token
			}
			continue
		}

		if containsStopWord(strings.ToLower(token)) {
			continue
		}

		clean = append(clean, token)
	}

	return NormalizedQuery{
		CleanTitle: strings.Join(clean, " "),
		Year:       year,
	}
}

func isYearToken(token string) bool {
	if len(token) != 4 {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func containsStopWord(lower string) bool {
	for _, sw := range stopWords {
		if strings.Contains(lower, sw) {
			return true
		}
	}
	return false
}

// titleMatchesPrefix reports whether the cleaned candidate title starts with
// the cleaned query title at a token boundary. A candidate whose next
// character after the matched prefix is alphanumeric is a partial-word
// collision ("Anna" vs "Annabelle") and is rejected.
func titleMatchesPrefix(queryClean, candidateClean string) bool {
	q := strings.ToLower(queryClean)
	c := strings.ToLower(candidateClean)

	if q == "" || !strings.HasPrefix(c, q) {
		return false
	}

	if len(c) > len(q) {
		r, _ := utf8.DecodeRuneInString(c[len(q):])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}

	return true
}
