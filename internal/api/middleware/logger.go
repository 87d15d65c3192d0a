// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Re-exported chi middleware so the server wires everything from one package.
var (
	RequestID = chimiddleware.RequestID
	RealIP    = chimiddleware.RealIP
	Recoverer = chimiddleware.Recoverer
)

// Logger emits one debug line per request with status, size and timing.
// Keep it off the video route: a long-lived stream would only log at EOF.
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("elapsed", time.Since(start)).
					Str("request_id", chimiddleware.GetReqID(r.Context())).
					Msg("Handled request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
