package server

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/webidscan/auth-server/internal/errors"
)

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

func (s *Server) APIMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return []func(http.HandlerFunc) http.HandlerFunc{
		s.RecoverMiddleware,
		s.LoggingMiddleware,
	}
}

// statusWriter captures the status code for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				respondError(w, apperrors.ErrInternal)
			}
		}()
		next(w, r)
	}
}

// RateLimitMiddleware enforces a fixed-window per-path limit. Every
// response, allowed or not, carries the limit headers; the remaining count
// goes negative once the limit is exceeded.
func (s *Server) RateLimitMiddleware(path string, limit int) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			result := s.limiter.Take(path, limit)
			w.Header().Set("X-RateLimit-PathLimit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-PathRemaining", strconv.Itoa(result.Remaining))
			if !result.Allowed {
				s.metrics.LoginRateLimited.Inc()
				respondError(w, apperrors.ErrRateLimited)
				return
			}
			next(w, r)
		}
	}
}
