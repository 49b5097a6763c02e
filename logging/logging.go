// Package logging configures slog for the crawler: text output on the
// console plus JSON output into weekly-rotating files with retention
// cleanup, and package-level helpers usable before full initialization.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotatingWriter appends to one log file per ISO week and removes files
// older than the retention period.
type RotatingWriter struct {
	logDir      string
	retention   time.Duration
	mu          sync.Mutex
	currentFile *os.File
	currentWeek string
	lastCleanup time.Time
}

// NewRotatingWriter creates a rotating writer keeping retentionWeeks of
// history.
func NewRotatingWriter(logDir string, retentionWeeks int) *RotatingWriter {
	return &RotatingWriter{
		logDir:    logDir,
		retention: time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
	}
}

// weekKey returns the ISO week key, e.g. "2026-W34".
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Write appends to the current week's file, rotating and cleaning up when
// the week rolls over.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	week := weekKey(time.Now())
	if week != rw.currentWeek || rw.currentFile == nil {
		if err := rw.rotate(week); err != nil {
			return 0, err
		}
	}
	return rw.currentFile.Write(p)
}

// rotate opens the file for targetWeek; caller must hold the lock.
func (rw *RotatingWriter) rotate(targetWeek string) error {
	if rw.currentFile != nil {
		if err := rw.currentFile.Close(); err != nil {
			fmt.Printf("Warning: failed to close log file: %v\n", err)
		}
	}

	logPath := filepath.Join(rw.logDir, fmt.Sprintf("doses-%s.log", targetWeek))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	rw.currentFile = file
	rw.currentWeek = targetWeek

	// Cleanup at most once a day, piggybacked on rotation checks.
	if time.Since(rw.lastCleanup) > 24*time.Hour {
		rw.lastCleanup = time.Now()
		rw.cleanupOldLogs()
	}
	return nil
}

// cleanupOldLogs removes log files older than the retention period.
func (rw *RotatingWriter) cleanupOldLogs() {
	entries, err := os.ReadDir(rw.logDir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-rw.retention)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "doses-") || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(rw.logDir, entry.Name()))
		}
	}
}

// Close closes the current log file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.currentFile != nil {
		err := rw.currentFile.Close()
		rw.currentFile = nil
		return err
	}
	return nil
}

// SetupLogger builds a logger writing text to the console and JSON to the
// rotating file. Falls back to console-only when the log directory cannot
// be created.
func SetupLogger(logDir string, retentionWeeks int, level slog.Level) *slog.Logger {
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	if err := os.MkdirAll(logDir, 0750); err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to create logs directory, logging to console only", "error", err)
		return logger
	}

	fileHandler := slog.NewJSONHandler(NewRotatingWriter(logDir, retentionWeeks), &slog.HandlerOptions{Level: level})

	return slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
}

// ParseLevel maps a config log-level string onto a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
