package supabase

import (
	"context"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

// RecordStore inserts records through the PostgREST API.
type RecordStore struct {
	client *supabase.Client
}

// NewRecordStore wraps an SDK client.
func NewRecordStore(client *supabase.Client) (*RecordStore, error) {
	if client == nil {
		return nil, fmt.Errorf("supabase client is required")
	}
	return &RecordStore{client: client}, nil
}

// InsertRecord inserts one row without asking for it back.
func (s *RecordStore) InsertRecord(ctx context.Context, table string, record collector.IngestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if table == "" {
		return fmt.Errorf("table is required")
	}
	_, _, err := s.client.From(table).Insert(record.Row(), false, "", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("insert record %d into %s: %w", record.ID, table, err)
	}
	return nil
}
