package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tokenmart/marketd/internal/domain"
)

type callerKey struct{}

// callerFrom returns the authenticated caller identity set by authMiddleware.
func callerFrom(ctx context.Context) (domain.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(domain.Address)
	return caller, ok
}

// authMiddleware resolves the X-API-Key header to a caller address. Mutating
// routes reject requests without a known key; read routes pass through
// unauthenticated.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key != "" {
			if addr, ok := s.apiKeys[key]; ok {
				r = r.WithContext(context.WithValue(r.Context(), callerKey{}, addr))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireCaller unwraps the authenticated identity or fails with 401.
func (s *Server) requireCaller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "UNAUTHENTICATED", Message: "missing or unknown API key"})
		return "", false
	}
	return caller, true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		var evt *zerolog.Event
		if rec.status >= 500 {
			evt = s.logger.Error()
		} else {
			evt = s.logger.Info()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
