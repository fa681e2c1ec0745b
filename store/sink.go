package store

import (
	"context"
	"time"
)

// Record is the persisted shape of one experiment run.
type Record struct {
	ID         string    `json:"id"`
	Preset     string    `json:"preset"`
	Backend    string    `json:"backend"`
	ModelID    string    `json:"model_id"`
	Prompt     string    `json:"prompt"`
	Text       string    `json:"text"`
	Complete   bool      `json:"complete"`
	Retried    bool      `json:"retried"`
	Missing    []string  `json:"missing,omitempty"`
	Attempts   int       `json:"attempts"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Sink persists run records.
type Sink interface {
	Save(ctx context.Context, rec Record) error
}
