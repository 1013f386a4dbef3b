package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"firewatch/internal/config"
)

// Logger provides leveled structured logging to per-level files and stdout/stderr.
type Logger struct {
	*slog.Logger
	logDir string
	mu     sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	l := &Logger{logDir: config.LogDirectory}
	l.Logger = slog.New(l.setupHandler(parseLevel(config.LogLevel)))
	return l
}

// NewDiscard returns a Logger that drops every record. Used by tests and tools.
func NewDiscard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// setupHandler builds one text handler per level, each writing to its own file
// and to stdout (stderr for errors).
func (l *Logger) setupHandler(level slog.Level) slog.Handler {
	infoWriter := io.MultiWriter(os.Stdout, l.openLogFile(filepath.Join(l.logDir, "info.log")))
	warningWriter := io.MultiWriter(os.Stdout, l.openLogFile(filepath.Join(l.logDir, "warning.log")))
	errorWriter := io.MultiWriter(os.Stderr, l.openLogFile(filepath.Join(l.logDir, "error.log")))

	opts := &slog.HandlerOptions{Level: level}
	return &levelHandler{
		info:    slog.NewTextHandler(infoWriter, opts),
		warning: slog.NewTextHandler(warningWriter, opts),
		error:   slog.NewTextHandler(errorWriter, opts),
	}
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) *os.File {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", filename, err)
	}
	return file
}

// Warning logs at warn level, reporting the caller of Warning as the source.
func (l *Logger) Warning(msg string, args ...any) {
	ctx := context.Background()
	if !l.Enabled(ctx, slog.LevelWarn) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:])
	r := slog.NewRecord(time.Now(), slog.LevelWarn, msg, pcs[0])
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening log file", "file", fileName, "error", err)
		return err
	}
	defer file.Close()

	l.Info("Log file content has been cleared", "file", fileName)
	return nil
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// levelHandler routes records to the handler of their level and adds the caller.
type levelHandler struct {
	info    slog.Handler
	warning slog.Handler
	error   slog.Handler
}

func (h *levelHandler) pick(level slog.Level) slog.Handler {
	switch {
	case level >= slog.LevelError:
		return h.error
	case level >= slog.LevelWarn:
		return h.warning
	default:
		return h.info
	}
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.pick(level).Enabled(ctx, level)
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		r.AddAttrs(slog.String("caller", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)))
	}
	return h.pick(r.Level).Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{
		info:    h.info.WithAttrs(attrs),
		warning: h.warning.WithAttrs(attrs),
		error:   h.error.WithAttrs(attrs),
	}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{
		info:    h.info.WithGroup(name),
		warning: h.warning.WithGroup(name),
		error:   h.error.WithGroup(name),
	}
}
