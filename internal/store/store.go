// Package store is the table-oriented data access layer: named collections
// of JSON-shaped records with equality filters, stable ordering, limits and
// a single-row compare-and-swap.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
)

// Table names used across the service.
const (
	TableUsers         = "users"
	TableProjects      = "projects"
	TableNotifications = "notifications"
	TableFeedback      = "feedback"
)

// Record is one row. Values are JSON-compatible after insertion: numbers
// become float64, times become RFC 3339 strings, structs become maps.
type Record map[string]any

// ID returns the record's id column as a string.
func (r Record) ID() string {
	s, _ := r[ColumnID].(string)
	return s
}

// Filter is an equality predicate. Filters in a query are AND-composed.
type Filter struct {
	Column string
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

type Order struct {
	Column    string
	Ascending bool
}

// Query selects rows. Limit <= 0 means no limit.
type Query struct {
	Filters []Filter
	Order   *Order
	Limit   int
}

// Store is implemented by MemoryStore and RedisStore. Update applies its
// patch to all matching rows at once: readers see none or all of it.
// Delete removes one row by id and is meant for undoing a partial write.
type Store interface {
	Select(ctx context.Context, table string, q Query) ([]Record, error)
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	Update(ctx context.Context, table string, filters []Filter, patch Record) (int, error)
	Count(ctx context.Context, table string, filters []Filter) (int, error)
	CompareAndSwap(ctx context.Context, table, id string, expect Filter, patch Record) (Record, error)
	Delete(ctx context.Context, table, id string) error
}

// TableSchema describes one table. Required columns must be present and
// non-empty on insert. Time columns (created_at always is one) are stored
// as fixed-width UTC strings, so ordering them as strings orders them in
// time.
type TableSchema struct {
	Required []string
	Times    []string
}

// Schema maps table names to their TableSchema. Tables without an entry
// accept any record.
type Schema map[string]TableSchema

// DefaultSchema covers the collections the service uses.
func DefaultSchema() Schema {
	return Schema{
		TableUsers:         {Required: []string{"email"}, Times: []string{"updated_at", "last_login_at"}},
		TableProjects:      {Required: []string{"owner_id", "title", "status"}, Times: []string{"updated_at"}},
		TableNotifications: {Required: []string{"recipient_id", "message"}},
		TableFeedback:      {Required: []string{"message"}},
	}
}

func (s Schema) isTime(table, column string) bool {
	return column == ColumnCreatedAt || slices.Contains(s[table].Times, column)
}

// Encode converts a tagged struct into a Record.
func Encode(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return rec, nil
}

// Decode fills v from rec using v's json tags.
func Decode(rec Record, v any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}
