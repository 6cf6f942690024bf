package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clytar/clytar-backend/internal/apperr"
)

type memTable struct {
	rows  []Record
	index map[string]int
}

// MemoryStore keeps every table in process memory. Rows stay in insertion
// order, which is what the stable sort relies on.
type MemoryStore struct {
	mu     sync.RWMutex
	schema Schema
	tables map[string]*memTable
	now    func() time.Time
}

func NewMemoryStore(schema Schema) *MemoryStore {
	if schema == nil {
		schema = Schema{}
	}
	return &MemoryStore{
		schema: schema,
		tables: make(map[string]*memTable),
		now:    time.Now,
	}
}

func (s *MemoryStore) table(name string) *memTable {
	t, ok := s.tables[name]
	if !ok {
		t = &memTable{index: make(map[string]int)}
		s.tables[name] = t
	}
	return t
}

func (s *MemoryStore) Select(_ context.Context, table string, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return []Record{}, nil
	}
	return runQuery(t.rows, q), nil
}

func (s *MemoryStore) Insert(_ context.Context, table string, rec Record) (Record, error) {
	row := normalizeRecord(rec)
	canonicalTimes(s.schema, table, row)
	if err := validate(s.schema, table, row); err != nil {
		return nil, err
	}
	if row.ID() == "" {
		row[ColumnID] = uuid.NewString()
	}
	if row[ColumnCreatedAt] == nil {
		row[ColumnCreatedAt] = formatTime(s.now())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	if _, exists := t.index[row.ID()]; exists {
		return nil, &apperr.ConflictError{Stage: "insert " + table, ID: row.ID()}
	}
	t.index[row.ID()] = len(t.rows)
	t.rows = append(t.rows, row)
	return cloneRecord(row), nil
}

func (s *MemoryStore) Update(_ context.Context, table string, filters []Filter, patch Record) (int, error) {
	p := normalizeRecord(patch)
	canonicalTimes(s.schema, table, p)

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, row := range t.rows {
		if matches(row, filters) {
			applyPatch(row, p)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Count(_ context.Context, table string, filters []Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, row := range t.rows {
		if matches(row, filters) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, table, id string, expect Filter, patch Record) (Record, error) {
	p := normalizeRecord(patch)
	canonicalTimes(s.schema, table, p)

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownRecord, ID: id}
	}
	i, ok := t.index[id]
	if !ok {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownRecord, ID: id}
	}
	row := t.rows[i]
	if !matches(row, []Filter{expect}) {
		return nil, &apperr.ConflictError{Stage: "compare_and_swap " + table, ID: id}
	}
	applyPatch(row, p)
	return cloneRecord(row), nil
}

// Delete removes the row with the given id. Unknown ids are a NotFoundError.
func (s *MemoryStore) Delete(_ context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return &apperr.NotFoundError{Kind: apperr.UnknownRecord, ID: id}
	}
	i, ok := t.index[id]
	if !ok {
		return &apperr.NotFoundError{Kind: apperr.UnknownRecord, ID: id}
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	delete(t.index, id)
	for j := i; j < len(t.rows); j++ {
		t.index[t.rows[j].ID()] = j
	}
	return nil
}
