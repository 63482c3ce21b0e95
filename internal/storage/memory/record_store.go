package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

// RecordStore keeps inserted records per table.
type RecordStore struct {
	mu     sync.RWMutex
	tables map[string][]collector.IngestRecord
}

// NewRecordStore creates an empty in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{tables: make(map[string][]collector.IngestRecord)}
}

// InsertRecord appends record to table. Duplicate IDs are rejected.
func (s *RecordStore) InsertRecord(_ context.Context, table string, record collector.IngestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tables[table] {
		if existing.ID == record.ID {
			return fmt.Errorf("record %d already exists in %s", record.ID, table)
		}
	}
	s.tables[table] = append(s.tables[table], record)
	return nil
}

// Records returns a copy of the rows inserted into table.
func (s *RecordStore) Records(table string) []collector.IngestRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]collector.IngestRecord(nil), s.tables[table]...)
}
