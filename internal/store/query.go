package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/clytar/clytar-backend/internal/apperr"
)

// timeLayout is RFC 3339 with a fixed nine-digit fraction. In UTC every
// value has the same width, so string order is chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// normalizeValue gives v the shape it has after a JSON round trip so that
// filters and stored values compare the same way on every backend.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return formatTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return formatTime(*t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}

func normalizeRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = normalizeValue(v)
	}
	return out
}

// cloneRecord copies rec deeply enough that callers cannot mutate stored
// rows through returned slices or maps.
func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		cp := make([]any, len(x))
		for i := range x {
			cp[i] = cloneValue(x[i])
		}
		return cp
	case map[string]any:
		cp := make(map[string]any, len(x))
		for k, vv := range x {
			cp[k] = cloneValue(vv)
		}
		return cp
	default:
		return v
	}
}

// canonicalTimes rewrites timestamp strings in the table's time columns
// into timeLayout.
func canonicalTimes(schema Schema, table string, rec Record) {
	for col, v := range rec {
		str, ok := v.(string)
		if !ok || !schema.isTime(table, col) {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
			rec[col] = formatTime(t)
		}
	}
}

func validate(schema Schema, table string, rec Record) error {
	for _, col := range schema[table].Required {
		v, ok := rec[col]
		if !ok || v == nil {
			return apperr.Missing("insert "+table, col)
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return apperr.Missing("insert "+table, col)
		}
	}
	return nil
}

func applyPatch(rec Record, patch Record) {
	for k, v := range patch {
		if k == ColumnID || k == ColumnCreatedAt {
			continue
		}
		rec[k] = v
	}
}

func matches(rec Record, filters []Filter) bool {
	for _, f := range filters {
		if !valuesEqual(rec[f.Column], normalizeValue(f.Value)) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			if as == bs {
				return true
			}
			ta, errA := time.Parse(time.RFC3339Nano, as)
			tb, errB := time.Parse(time.RFC3339Nano, bs)
			return errA == nil && errB == nil && ta.Equal(tb)
		}
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders nil first, then numbers numerically, strings
// lexicographically and false before true. Mixed types fall back to their
// printed form. Time columns sort correctly as strings because they are
// stored in timeLayout.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// runQuery filters, stably orders and limits rows, which must be in
// insertion order. The returned records are clones.
func runQuery(rows []Record, q Query) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if matches(r, q.Filters) {
			out = append(out, cloneRecord(r))
		}
	}

	if q.Order != nil {
		col, asc := q.Order.Column, q.Order.Ascending
		sort.SliceStable(out, func(i, j int) bool {
			c := compareValues(out[i][col], out[j][col])
			if asc {
				return c < 0
			}
			return c > 0
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
