package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clytar/clytar-backend/internal/apperr"
)

const (
	redisKeyPrefix = "clytar:tbl:"
	maxCASAttempts = 8
)

// RedisStore keeps each row as a JSON string and each table's insertion
// order in a list, so a row only becomes visible once its id is pushed.
type RedisStore struct {
	rdb    *redis.Client
	schema Schema
	now    func() time.Time
}

func NewRedisStore(rdb *redis.Client, schema Schema) *RedisStore {
	if schema == nil {
		schema = Schema{}
	}
	return &RedisStore{rdb: rdb, schema: schema, now: time.Now}
}

func rowKey(table, id string) string {
	return fmt.Sprintf("%s%s:row:%s", redisKeyPrefix, table, id)
}

func idsKey(table string) string {
	return redisKeyPrefix + table + ":ids"
}

func (s *RedisStore) loadAll(ctx context.Context, table string) ([]Record, error) {
	ids, err := s.rdb.LRange(ctx, idsKey(table), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", table, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = rowKey(table, id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s rows: %w", table, err)
	}

	rows := make([]Record, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", table, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (s *RedisStore) Select(ctx context.Context, table string, q Query) ([]Record, error) {
	rows, err := s.loadAll(ctx, table)
	if err != nil {
		return nil, err
	}
	return runQuery(rows, q), nil
}

func (s *RedisStore) Insert(ctx context.Context, table string, rec Record) (Record, error) {
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

	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode %s row: %w", table, err)
	}

	ok, err := s.rdb.SetNX(ctx, rowKey(table, row.ID()), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("insert %s row: %w", table, err)
	}
	if !ok {
		return nil, &apperr.ConflictError{Stage: "insert " + table, ID: row.ID()}
	}
	if err := s.rdb.RPush(ctx, idsKey(table), row.ID()).Err(); err != nil {
		return nil, fmt.Errorf("index %s row: %w", table, err)
	}
	return row, nil
}

// Update watches every matching row and writes them in one MULTI block,
// retrying when any of them changes underneath.
func (s *RedisStore) Update(ctx context.Context, table string, filters []Filter, patch Record) (int, error) {
	rows, err := s.loadAll(ctx, table)
	if err != nil {
		return 0, err
	}
	var keys []string
	for _, row := range rows {
		if matches(row, filters) {
			keys = append(keys, rowKey(table, row.ID()))
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	p := normalizeRecord(patch)
	canonicalTimes(s.schema, table, p)

	var n int
	txf := func(tx *redis.Tx) error {
		vals, err := tx.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("load %s rows: %w", table, err)
		}
		writes := make(map[string][]byte, len(keys))
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var cur Record
			if err := json.Unmarshal([]byte(raw), &cur); err != nil {
				return fmt.Errorf("decode %s row: %w", table, err)
			}
			// the row may have changed since the scan
			if !matches(cur, filters) {
				continue
			}
			applyPatch(cur, p)
			data, err := json.Marshal(cur)
			if err != nil {
				return fmt.Errorf("encode %s row: %w", table, err)
			}
			writes[keys[i]] = data
		}
		if len(writes) == 0 {
			n = 0
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, data := range writes {
				pipe.Set(ctx, key, data, 0)
			}
			return nil
		})
		if err == nil {
			n = len(writes)
		}
		return err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, &apperr.ConflictError{Stage: "update " + table}
}

func (s *RedisStore) Count(ctx context.Context, table string, filters []Filter) (int, error) {
	rows, err := s.loadAll(ctx, table)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if matches(row, filters) {
			n++
		}
	}
	return n, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, table, id string, expect Filter, patch Record) (Record, error) {
	p := normalizeRecord(patch)
	canonicalTimes(s.schema, table, p)
	return s.swap(ctx, table, id, func(cur Record) error {
		if !matches(cur, []Filter{expect}) {
			return &apperr.ConflictError{Stage: "compare_and_swap " + table, ID: id}
		}
		applyPatch(cur, p)
		return nil
	})
}

// swap runs mutate against the current row inside a WATCH/MULTI block and
// retries when another writer touched the key first.
func (s *RedisStore) swap(ctx context.Context, table, id string, mutate func(Record) error) (Record, error) {
	key := rowKey(table, id)
	var out Record

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return &apperr.NotFoundError{Kind: apperr.UnknownRecord, ID: id}
		}
		if err != nil {
			return err
		}
		var cur Record
		if err := json.Unmarshal([]byte(raw), &cur); err != nil {
			return fmt.Errorf("decode %s row: %w", table, err)
		}
		if err := mutate(cur); err != nil {
			return err
		}
		data, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("encode %s row: %w", table, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			out = cur
		}
		return err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, &apperr.ConflictError{Stage: "compare_and_swap " + table, ID: id}
}

// Delete drops the row and its entry in the table's id list.
func (s *RedisStore) Delete(ctx context.Context, table, id string) error {
	var removed *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, rowKey(table, id))
		pipe.LRem(ctx, idsKey(table), 0, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s row: %w", table, err)
	}
	if removed.Val() == 0 {
		return &apperr.NotFoundError{Kind: apperr.UnknownRecord, ID: id}
	}
	return nil
}
