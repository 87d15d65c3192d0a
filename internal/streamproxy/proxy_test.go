// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package streamproxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProxy(workerURL string) *Proxy {
	return NewWithResolver(func(string) string { return workerURL }, zerolog.Nop())
}

func TestMetaRelaysWorkerResponse(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/meta", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name":"movie.mkv","progress":42}`)
	}))
	defer worker.Close()

	rec := httptest.NewRecorder()
	newTestProxy(worker.URL).Meta(rec, httptest.NewRequest(http.MethodGet, "/stream/abc/meta", nil), "reelay-dl-abc")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"name":"movie.mkv","progress":42}`, rec.Body.String())
}

func TestMetaReturns503WhenWorkerUnreachable(t *testing.T) {
	// Reserve a port, then close it so the connect is refused.
	worker := httptest.NewServer(http.NotFoundHandler())
	workerURL := worker.URL
	worker.Close()

	rec := httptest.NewRecorder()
	newTestProxy(workerURL).Meta(rec, httptest.NewRequest(http.MethodGet, "/stream/abc/meta", nil), "reelay-dl-abc")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "streamer not connected yet", body["error"])
}

func TestVideoForwardsRangeAndRelaysPartialContent(t *testing.T) {
	payload := "0123456789"
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bytes=2-5", r.Header.Get("Range"))

		w.Header().Set("Content-Type", "video/x-matroska")
		w.Header().Set("Content-Length", "4")
		w.Header().Set("Content-Range", fmt.Sprintf("bytes 2-5/%d", len(payload)))
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, payload[2:6])
	}))
	defer worker.Close()

	req := httptest.NewRequest(http.MethodGet, "/stream/abc/video", nil)
	req.Header.Set("Range", "bytes=2-5")

	rec := httptest.NewRecorder()
	newTestProxy(worker.URL).Video(rec, req, "reelay-dl-abc")

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "video/x-matroska", rec.Header().Get("Content-Type"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "2345", rec.Body.String())
}

func TestVideoWithoutRangeSendsNoRangeUpstream(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasRange := r.Header["Range"]
		assert.False(t, hasRange)

		w.Header().Set("Content-Type", "video/mp4")
		fmt.Fprint(w, "entire file")
	}))
	defer worker.Close()

	rec := httptest.NewRecorder()
	newTestProxy(worker.URL).Video(rec, httptest.NewRequest(http.MethodGet, "/stream/abc/video", nil), "reelay-dl-abc")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "entire file", rec.Body.String())
}

func TestVideoReturns503WhenWorkerUnreachable(t *testing.T) {
	worker := httptest.NewServer(http.NotFoundHandler())
	workerURL := worker.URL
	worker.Close()

	rec := httptest.NewRecorder()
	newTestProxy(workerURL).Video(rec, httptest.NewRequest(http.MethodGet, "/stream/abc/video", nil), "reelay-dl-abc")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDefaultResolverTargetsWorkerPort(t *testing.T) {
	p := New(zerolog.Nop())
	assert.Equal(t, "http://reelay-dl-abc:9000", p.resolve("reelay-dl-abc"))
}
