package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

// WriteJSON encodes records as an indented JSON array, leaving non-ASCII and
// HTML characters unescaped. A nil slice is written as [].
func WriteJSON(w io.Writer, records []collector.IngestRecord) error {
	if records == nil {
		records = []collector.IngestRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}

// ExportJSON writes records to path, replacing any previous export atomically.
func ExportJSON(path string, records []collector.IngestRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.json")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := WriteJSON(tmp, records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename export file: %w", err)
	}
	return nil
}
