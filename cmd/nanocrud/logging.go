package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// loggers holds the main and access loggers
type loggers struct {
	main   *slog.Logger
	access *slog.Logger
	files  []io.Closer
}

func (l *loggers) Close() {
	for _, f := range l.files {
		_ = f.Close()
	}
	l.files = nil
}

// initLogging opens nanocrud.log and nanocrud-access.log under the XDG cache
// dir. The access log is mirrored to stdout when accessStdout is set.
func initLogging(logLevel string, accessStdout bool, stdout io.Writer) (*loggers, error) {
	level, ok := logLevelMap[strings.ToLower(logLevel)]
	if !ok {
		level = slog.LevelWarn
	}

	logDir := getXDGCacheDir()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "nanocrud.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &loggers{files: []io.Closer{logFile}}
	l.main = slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}))
	slog.SetDefault(l.main)

	accessPath := filepath.Join(logDir, "nanocrud-access.log")
	accessFile, err := os.OpenFile(accessPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to open access log file: %w", err)
	}
	l.files = append(l.files, accessFile)

	// Requests are always logged at INFO
	var accessHandler slog.Handler = slog.NewJSONHandler(accessFile, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	if accessStdout {
		accessHandler = &multiHandler{handlers: []slog.Handler{
			accessHandler,
			slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		}}
	}
	l.access = slog.New(accessHandler).With("logger", "access")

	l.main.Debug("logging initialized",
		"level", level.String(),
		"log_file", logPath,
		"access_file", accessPath,
		"access_stdout", accessStdout)

	return l, nil
}

// getXDGCacheDir returns the XDG cache directory for nanocrud
func getXDGCacheDir() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, "nanocrud")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "nanocrud")
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(homeDir, "Library", "Caches", "nanocrud")
	}
	return filepath.Join(homeDir, ".cache", "nanocrud")
}

// multiHandler fans records out to several handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}
