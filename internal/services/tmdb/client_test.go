// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSearchMulti(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/multi", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "anna", q.Get("query"))
		assert.Equal(t, "fr-FR", q.Get("language"))
		assert.Equal(t, "false", q.Get("include_adult"))

		fmt.Fprint(w, `{
			"page": 1,
			"results": [
				{
					"id": 462780,
					"media_type": "movie",
					"title": "Anna",
					"overview": "Une tueuse redoutable.",
					"release_date": "2019-06-19",
					"poster_path": "/abc.jpg",
					"backdrop_path": "/def.jpg",
					"vote_average": 6.7,
					"popularity": 42.5
				},
				{
					"id": 1234,
					"media_type": "tv",
					"name": "Anna la serie",
					"overview": "",
					"first_air_date": "2021-04-23",
					"poster_path": null
				}
			],
			"total_pages": 1,
			"total_results": 2
		}`)
	}))
	defer srv.Close()

	client, err := NewClient("test-key")
	require.NoError(t, err)
	client = client.WithBaseURL(srv.URL)

	results, err := client.SearchMulti(context.Background(), "anna")
	require.NoError(t, err)
	require.Len(t, results, 2)

	movie := results[0]
	assert.Equal(t, int64(462780), movie.ID)
	assert.Equal(t, "movie", movie.MediaType)
	assert.Equal(t, "Anna", movie.Title)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/abc.jpg", movie.PosterPath)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/def.jpg", movie.BackdropPath)

	show := results[1]
	assert.Equal(t, "tv", show.MediaType)
	assert.Equal(t, "Anna la serie", show.Name)
	assert.Empty(t, show.PosterPath, "null image paths stay empty instead of becoming bare base URLs")
}

func TestSearchMultiErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient("bad-key")
	require.NoError(t, err)
	client = client.WithBaseURL(srv.URL)

	_, err = client.SearchMulti(context.Background(), "anna")
	assert.Error(t, err)
}
