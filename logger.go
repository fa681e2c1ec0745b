package hubgen

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. Output goes to stderr, or to a rotating
// file when cfg.File is set. The returned cleanup closes the file.
func NewLogger(cfg LogConfig) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() error { return nil }
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(rotator, opts)), rotator.Close
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// RunLogger records every generation attempt of a run.
type RunLogger interface {
	LogAttempt(attempt AttemptLog) error
}

// NewRunLogFilePath returns a file path based on a cleaned up model id so logs
// produced with various models are easy to tell apart.
func NewRunLogFilePath(dir, model string) string {
	if dir == "" {
		dir = "./logs"
	}
	name := strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(model))
	return filepath.Join(dir, fmt.Sprintf("%d.%s.json", time.Now().Unix(), name))
}

// AttemptLog represents a single generation attempt.
type AttemptLog struct {
	RunID     string           `json:"run_id"`
	Attempt   int              `json:"attempt"`
	Timestamp time.Time        `json:"timestamp"`
	Preset    string           `json:"preset"`
	ModelID   string           `json:"model_id"`
	Prompt    string           `json:"prompt,omitempty"`
	Params    GenerationParams `json:"params"`
	Output    string           `json:"output,omitempty"`
	Missing   []string         `json:"missing,omitempty"`
	LatencyMs int64            `json:"latency_ms"`
	Error     string           `json:"error,omitempty"`
}

// FileRunLogger accumulates attempts and writes them as one document on Flush.
type FileRunLogger struct {
	attempts []AttemptLog
	writer   io.Writer
}

func NewFileRunLogger(writer io.Writer) *FileRunLogger {
	return &FileRunLogger{
		attempts: make([]AttemptLog, 0),
		writer:   writer,
	}
}

// LogAttempt buffers the attempt; nothing is written until Flush.
func (l *FileRunLogger) LogAttempt(attempt AttemptLog) error {
	l.attempts = append(l.attempts, attempt)
	return nil
}

func (l *FileRunLogger) Flush() error {
	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"generation_session": map[string]any{
			"timestamp": time.Now(),
			"attempts":  l.attempts,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}

	l.attempts = l.attempts[:0]
	return nil
}

// NoOpRunLogger discards all attempts.
type NoOpRunLogger struct{}

func NewNoOpRunLogger() *NoOpRunLogger {
	return &NoOpRunLogger{}
}

func (nop *NoOpRunLogger) LogAttempt(attempt AttemptLog) error {
	return nil
}

// StdoutRunLogger writes each attempt as a JSON line (for Lambda/CloudWatch).
type StdoutRunLogger struct {
	out io.Writer
}

func NewStdoutRunLogger() *StdoutRunLogger {
	return &StdoutRunLogger{out: os.Stdout}
}

func (l *StdoutRunLogger) LogAttempt(attempt AttemptLog) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
