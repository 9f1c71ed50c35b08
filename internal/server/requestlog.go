package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger is a chi middleware.LogFormatter that writes one slog record
// per request through the configured handler.
type requestLogger struct {
	logger *slog.Logger
}

func (l requestLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestEntry{logger: l.logger.With(
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
	)}
}

type requestEntry struct {
	logger *slog.Logger
}

func (e *requestEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	e.logger.Log(context.Background(), level, "request served",
		"status", status,
		"bytes", bytes,
		"elapsed", elapsed,
	)
}

func (e *requestEntry) Panic(v any, stack []byte) {
	e.logger.Error("request panicked", "panic", v, "stack", string(stack))
}
