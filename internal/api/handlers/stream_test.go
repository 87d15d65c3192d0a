// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/go-chi/chi/v5"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelay/reelay/internal/container"
	"github.com/reelay/reelay/internal/streamproxy"
)

type noopEngine struct{}

func (noopEngine) ContainerRemove(context.Context, string, dockercontainer.RemoveOptions) error {
	return nil
}

func (noopEngine) ContainerCreate(_ context.Context, _ *dockercontainer.Config, _ *dockercontainer.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (dockercontainer.CreateResponse, error) {
	return dockercontainer.CreateResponse{ID: "cid-" + name}, nil
}

func (noopEngine) ContainerStart(context.Context, string, dockercontainer.StartOptions) error {
	return nil
}

func newStreamRouter(workerURL string) (*chi.Mux, *container.Manager) {
	manager := container.NewManagerWithEngine(noopEngine{}, container.Config{
		Image:   "film-downloads",
		Network: "reelay_default",
	}, zerolog.Nop())

	proxy := streamproxy.NewWithResolver(func(string) string { return workerURL }, zerolog.Nop())

	r := chi.NewRouter()
	NewStreamHandler(manager, proxy).Routes(r)
	return r, manager
}

func TestDownloadReturnsStreamID(t *testing.T) {
	router, manager := newStreamRouter("http://127.0.0.1:0")

	body := strings.NewReader(`{"magnet":"magnet:?xt=urn:btih:abc"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/download", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp DownloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.StreamID)

	sess, ok := manager.Lookup(resp.StreamID)
	require.True(t, ok)
	assert.Equal(t, "magnet:?xt=urn:btih:abc", sess.MagnetURI)
}

func TestDownloadRejectsInvalidBody(t *testing.T) {
	router, _ := newStreamRouter("http://127.0.0.1:0")

	tests := []struct {
		name string
		body string
	}{
		{name: "not_json", body: "not json"},
		{name: "missing_magnet", body: `{}`},
		{name: "not_a_magnet_link", body: `{"magnet":"https://example.com/file.torrent"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMetaProxiesToSessionWorker(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/meta", r.URL.Path)
		fmt.Fprint(w, `{"name":"movie.mkv"}`)
	}))
	defer worker.Close()

	router, _ := newStreamRouter(worker.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/some-id/meta", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"movie.mkv"}`, rec.Body.String())
}

func TestVideoProxiesRangeRequests(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=0-3", r.Header.Get("Range"))
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, "0123")
	}))
	defer worker.Close()

	router, _ := newStreamRouter(worker.URL)

	req := httptest.NewRequest(http.MethodGet, "/stream/some-id/video", nil)
	req.Header.Set("Range", "bytes=0-3")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "0123", rec.Body.String())
}

func TestMetaUnavailableWhileWorkerStarting(t *testing.T) {
	// Point at a dead address to simulate a worker that is not up yet.
	worker := httptest.NewServer(http.NotFoundHandler())
	workerURL := worker.URL
	worker.Close()

	router, _ := newStreamRouter(workerURL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/some-id/meta", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "streamer not connected yet", resp.Error)
}
