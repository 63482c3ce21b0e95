package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStore appends records as JSON lines to <base_dir>/<table>.jsonl.
type RecordStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewRecordStore creates a JSONL-backed record store rooted at cfg.BaseDir.
func NewRecordStore(cfg Config) (*RecordStore, error) {
	if err := prepareDir(cfg.BaseDir); err != nil {
		return nil, err
	}
	return &RecordStore{baseDir: cfg.BaseDir}, nil
}

// InsertRecord appends one row. Rows are never rewritten.
func (s *RecordStore) InsertRecord(ctx context.Context, table string, record collector.IngestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validTableName.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	line, err := json.Marshal(record.Row())
	if err != nil {
		return fmt.Errorf("marshal record %d: %w", record.ID, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	// #nosec G304 -- table is validated against validTableName.
	f, err := os.OpenFile(filepath.Join(s.baseDir, table+".jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open record log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append record %d: %w", record.ID, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close record log: %w", err)
	}
	return nil
}
