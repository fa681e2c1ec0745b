package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes one indented JSON file per record into Dir.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

func (f *FileSink) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("file sink: record has no id")
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("file sink: create dir: %w", err)
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("file sink: marshal: %w", err)
	}
	return os.WriteFile(f.Path(rec.ID), b, 0o644)
}

// Path returns the file a record with id is written to.
func (f *FileSink) Path(id string) string {
	return filepath.Join(f.Dir, id+".json")
}
