// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reelay/reelay/internal/api/handlers"
	"github.com/reelay/reelay/internal/api/middleware"
	"github.com/reelay/reelay/internal/config"
	"github.com/reelay/reelay/internal/container"
	"github.com/reelay/reelay/internal/scraper"
	"github.com/reelay/reelay/internal/services/tmdb"
	"github.com/reelay/reelay/internal/streamproxy"
)

type Server struct {
	server  *http.Server
	logger  zerolog.Logger
	config  *config.AppConfig
	version string

	searcher       *scraper.Service
	sessionManager *container.Manager
	streamProxy    *streamproxy.Proxy
	tmdbClient     *tmdb.Client
}

type Dependencies struct {
	Config         *config.AppConfig
	Version        string
	Searcher       *scraper.Service
	SessionManager *container.Manager
	StreamProxy    *streamproxy.Proxy
	TMDBClient     *tmdb.Client
}

func NewServer(deps *Dependencies) *Server {
	s := Server{
		server: &http.Server{
			ReadHeaderTimeout: time.Second * 15,
			ReadTimeout:       60 * time.Second,
			// No WriteTimeout: the video route keeps a response open for the
			// whole playback. Stuck writes end when the client disconnects.
			WriteTimeout: 0,
			IdleTimeout:  180 * time.Second,
		},
		logger:         log.Logger.With().Str("module", "api").Logger(),
		config:         deps.Config,
		version:        deps.Version,
		searcher:       deps.Searcher,
		sessionManager: deps.SessionManager,
		streamProxy:    deps.StreamProxy,
		tmdbClient:     deps.TMDBClient,
	}

	return &s
}

func (s *Server) ListenAndServe() error {
	return s.open(nil)
}

// ListenAndServeReady behaves like ListenAndServe but signals once the listener is active.
func (s *Server) ListenAndServeReady(ready chan<- struct{}) error {
	return s.open(ready)
}

func (s *Server) open(ready chan<- struct{}) error {
	addr := fmt.Sprintf("%s:%d", s.config.Config.Host, s.config.Config.Port)

	var lastErr error
	for _, proto := range []string{"tcp", "tcp4", "tcp6"} {
		err := s.tryToServe(addr, proto, ready)
		if err == nil {
			return nil
		}

		if errors.Is(err, http.ErrServerClosed) {
			return err
		}

		s.logger.Error().Err(err).Str("addr", addr).Str("proto", proto).Msgf("Failed to start server")
		lastErr = err
	}

	return lastErr
}

func (s *Server) tryToServe(addr, protocol string, ready chan<- struct{}) error {
	listener, err := net.Listen(protocol, addr)
	if err != nil {
		return err
	}

	host := listener.Addr().String()
	// Replace 0.0.0.0 or :: with localhost for clickable links
	if strings.HasPrefix(host, "0.0.0.0:") || strings.HasPrefix(host, "[::]:") {
		host = strings.Replace(host, "0.0.0.0:", "localhost:", 1)
		host = strings.Replace(host, "[::]:", "localhost:", 1)
	}

	s.logger.Info().
		Str("protocol", protocol).
		Str("addr", listener.Addr().String()).
		Str("base_url", s.config.Config.BaseURL).
		Msgf("Starting API server - Open: http://%s%s", host, s.config.Config.BaseURL)

	s.server.Handler = s.Handler()

	if ready != nil {
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID) // Must be before logger to capture request ID
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	corsMiddleware := cors.New(cors.Options{
		AllowCredentials: true,
		AllowedMethods:   []string{"HEAD", "OPTIONS", "GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Range"},
		ExposedHeaders:   []string{"Content-Range", "Content-Length", "Accept-Ranges"},
		AllowOriginFunc:  func(origin string) bool { return true },
		MaxAge:           300,
	})
	r.Use(corsMiddleware.Handler)

	healthHandler := handlers.NewHealthHandler()
	searchHandler := handlers.NewSearchHandler(
		s.searcher,
		scraper.NewTorrentTableSite("fr", s.config.Config.SearchSiteFR),
		scraper.NewBaySite("en", s.config.Config.SearchSiteEN),
	)
	streamHandler := handlers.NewStreamHandler(s.sessionManager, s.streamProxy)
	tmdbHandler := handlers.NewTMDBHandler(s.tmdbClient)

	appRouter := chi.NewRouter()

	appRouter.Group(func(r chi.Router) {
		r.Use(middleware.Logger(s.logger))

		r.Get("/search_fr", searchHandler.SearchFR)
		r.Get("/search_en", searchHandler.SearchEN)
		r.Get("/search_tmdb", tmdbHandler.Search)

		r.Post("/download", streamHandler.Download)
		r.Get("/stream/{streamID}/meta", streamHandler.Meta)
	})

	// The video route stays outside the logging group: one log line per
	// playback session at EOF is noise, and timing it is meaningless.
	appRouter.Get("/stream/{streamID}/video", streamHandler.Video)

	r.Get("/health", healthHandler.HandleHealth)

	baseURL := s.config.Config.BaseURL
	if baseURL == "" || baseURL == "/" {
		r.Mount("/", appRouter)
	} else {
		r.Mount(strings.TrimSuffix(baseURL, "/"), appRouter)

		r.Get("/", func(w http.ResponseWriter, request *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Must use baseUrl: " + s.config.Config.BaseURL + " instead of /"))
		})
	}

	return r
}
