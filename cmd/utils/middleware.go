package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))
	})
}

// RequestLogger logs one line per request once the response is written.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return handlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p handlers.LogFormatterParams) {
			event := log.Info()
			if p.StatusCode >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("request_id", p.Request.Header.Get(RequestIDHeader)).
				Str("method", p.Request.Method).
				Str("path", p.URL.Path).
				Int("status", p.StatusCode).
				Int("size", p.Size).
				Dur("latency", time.Since(p.TimeStamp)).
				Str("remote_ip", p.Request.RemoteAddr).
				Msg("request")
		})
	}
}

// recoveryLogger adapts zerolog and sentry to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	log zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	msg := fmt.Sprint(v...)
	l.log.Error().Str("panic", msg).Msg("recovered from panic")
	if len(v) == 1 {
		sentry.CurrentHub().Recover(v[0])
		return
	}
	sentry.CurrentHub().Recover(msg)
}

// Recoverer turns handler panics into 500 responses.
func Recoverer(log zerolog.Logger) func(http.Handler) http.Handler {
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{log: log}),
		handlers.PrintRecoveryStack(false),
	)
}
