package sink

import (
	"context"
	"fmt"
	"sync"

	"fanout/pkg/models"
)

// MemorySink keeps records in process. When tables are given only those
// tables exist; otherwise any table is created on first write.
type MemorySink struct {
	mu      sync.RWMutex
	tables  map[string]map[string][]byte
	strict  bool
	upserts int
}

func NewMemorySink(tables ...string) *MemorySink {
	s := &MemorySink{
		tables: make(map[string]map[string][]byte),
		strict: len(tables) > 0,
	}
	for _, t := range tables {
		s.tables[t] = make(map[string][]byte)
	}
	return s
}

func (s *MemorySink) Name() string {
	return "memory"
}

func (s *MemorySink) Upsert(ctx context.Context, table string, rec models.PersistenceRecord) error {
	if err := ctx.Err(); err != nil {
		return transient(err)
	}
	if err := checkRecord(table, rec); err != nil {
		return err
	}

	data, err := encodeItem(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		if s.strict {
			return permanent(ErrTargetNotFound, fmt.Errorf("table %s", table))
		}
		rows = make(map[string][]byte)
		s.tables[table] = rows
	}
	rows[rec.Key] = data
	s.upserts++
	return nil
}

func (s *MemorySink) Get(_ context.Context, table, key string) (map[string]interface{}, bool, error) {
	s.mu.RLock()
	data, ok := s.tables[table][key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	item, err := decodeItem(data)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// Len returns the number of records stored in table.
func (s *MemorySink) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

// Upserts returns the number of successful writes, including overwrites.
func (s *MemorySink) Upserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}

func (s *MemorySink) Ping(context.Context) error {
	return nil
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
