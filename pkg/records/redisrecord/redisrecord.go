// Package redisrecord implements the records.Store contract on Redis. Each
// originator's stream lives in one hash keyed by position; appends run as a
// single Lua script so the conditional multi-set is atomic server-side.
package redisrecord

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// appendScript checks that every target position is absent, then writes the
// whole batch and advances the head, in one atomic step.
// KEYS[1] = events hash key
// KEYS[2] = head key
// ARGV[1] = item count N
// ARGV[2..2N+1] = N pairs of (position, payload)
// Returns {1, head} on success or {0, position} on the first conflict.
var appendScript = redis.NewScript(`
local events = KEYS[1]
local head = KEYS[2]
local n = tonumber(ARGV[1])

for i = 0, n - 1 do
    local pos = ARGV[2 + i * 2]
    if redis.call("HEXISTS", events, pos) == 1 then
        return {0, tonumber(pos)}
    end
end

local max = tonumber(redis.call("GET", head) or "-1")
for i = 0, n - 1 do
    local pos = ARGV[2 + i * 2]
    local payload = ARGV[3 + i * 2]
    redis.call("HSET", events, pos, payload)
    local p = tonumber(pos)
    if p > max then max = p end
end
redis.call("SET", head, max)
return {1, max}
`)

type Store struct {
	client *redis.Client
	prefix string
}

type Option func(*Store)

// WithPrefix namespaces all keys; the default is "keel".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: "keel"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromAddr dials a standalone Redis and wraps it in a Store.
func NewFromAddr(addr, password string, db int, opts ...Option) *Store {
	return New(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), opts...)
}

// Both keys carry the originator id inside a hash tag so the append script
// stays single-slot under Redis Cluster.
func (s *Store) eventsKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:{%s}:events", s.prefix, id)
}

func (s *Store) headKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:{%s}:head", s.prefix, id)
}

func (s *Store) AppendItems(ctx context.Context, items []sequenced.Item) error {
	if len(items) == 0 {
		return nil
	}
	id := items[0].OriginatorID
	seen := make(map[int64]bool, len(items))
	args := make([]any, 0, 1+len(items)*2)
	args = append(args, len(items))
	for _, it := range items {
		if it.OriginatorID != id {
			return &sequenced.DatastoreError{Op: "append_items",
				Err: fmt.Errorf("mixed originators in batch: %s and %s", id, it.OriginatorID)}
		}
		if seen[it.Position] {
			return &sequenced.ConcurrencyError{OriginatorID: id, Position: it.Position}
		}
		seen[it.Position] = true

		payload, err := json.Marshal(it)
		if err != nil {
			return &sequenced.DatastoreError{Op: "append_items", Err: err}
		}
		args = append(args, strconv.FormatInt(it.Position, 10), payload)
	}

	res, err := appendScript.Run(ctx, s.client, []string{s.eventsKey(id), s.headKey(id)}, args...).Result()
	if err != nil {
		return &sequenced.DatastoreError{Op: "append_items", Err: err}
	}
	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return &sequenced.DatastoreError{Op: "append_items", Err: fmt.Errorf("invalid script reply %v", res)}
	}
	if okFlag, _ := reply[0].(int64); okFlag != 1 {
		pos, _ := reply[1].(int64)
		return &sequenced.ConcurrencyError{OriginatorID: id, Position: pos}
	}
	return nil
}

func (s *Store) GetItems(ctx context.Context, originatorID uuid.UUID, r sequenced.Range) ([]sequenced.Item, error) {
	fields, err := s.client.HGetAll(ctx, s.eventsKey(originatorID)).Result()
	if err != nil {
		return nil, &sequenced.DatastoreError{Op: "get_items", Err: err}
	}

	items := make([]sequenced.Item, 0, len(fields))
	for field, payload := range fields {
		pos, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, &sequenced.DatastoreError{Op: "get_items", Err: fmt.Errorf("malformed position field %q: %w", field, err)}
		}
		if r.GTE != nil && pos < *r.GTE {
			continue
		}
		if r.LTE != nil && pos > *r.LTE {
			continue
		}
		var it sequenced.Item
		if err := json.Unmarshal([]byte(payload), &it); err != nil {
			return nil, &sequenced.DatastoreError{Op: "get_items", Err: err}
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if r.Desc {
			return items[i].Position > items[j].Position
		}
		return items[i].Position < items[j].Position
	})
	if r.Limit > 0 && len(items) > r.Limit {
		items = items[:r.Limit]
	}
	return items, nil
}

func (s *Store) LastItem(ctx context.Context, originatorID uuid.UUID) (*sequenced.Item, error) {
	head, err := s.client.Get(ctx, s.headKey(originatorID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, &sequenced.DatastoreError{Op: "last_item", Err: err}
	}

	payload, err := s.client.HGet(ctx, s.eventsKey(originatorID), head).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, &sequenced.DatastoreError{Op: "last_item", Err: err}
	}
	var it sequenced.Item
	if err := json.Unmarshal([]byte(payload), &it); err != nil {
		return nil, &sequenced.DatastoreError{Op: "last_item", Err: err}
	}
	return &it, nil
}

// Close releases the underlying client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
