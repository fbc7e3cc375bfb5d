package redisrecord

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// Integration tests run only against a real server.
func testStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("KEEL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KEEL_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return New(client, WithPrefix(fmt.Sprintf("keeltest:%s", uuid.NewString()[:8])))
}

func testItem(id uuid.UUID, pos int64) sequenced.Item {
	return sequenced.Item{
		OriginatorID:   id,
		Position:       pos,
		Topic:          "test.event",
		State:          []byte(fmt.Sprintf(`{"n":%d}`, pos)),
		OriginatorHash: fmt.Sprintf("sha256:prev%d", pos),
		EventHash:      fmt.Sprintf("sha256:this%d", pos),
	}
}

func TestRedisAppendAndGet(t *testing.T) {
	s := testStore(t)
	id := uuid.New()
	ctx := context.Background()

	batch := []sequenced.Item{testItem(id, 0), testItem(id, 1), testItem(id, 2)}
	if err := s.AppendItems(ctx, batch); err != nil {
		t.Fatalf("AppendItems failed: %v", err)
	}

	got, err := s.GetItems(ctx, id, sequenced.Range{})
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d items, want 3", len(got))
	}
	for i, it := range got {
		if it.Position != int64(i) {
			t.Errorf("position %d at index %d", it.Position, i)
		}
	}
}

func TestRedisConflictRejectsWholeBatch(t *testing.T) {
	s := testStore(t)
	id := uuid.New()
	ctx := context.Background()

	if err := s.AppendItems(ctx, []sequenced.Item{testItem(id, 0)}); err != nil {
		t.Fatalf("AppendItems failed: %v", err)
	}

	err := s.AppendItems(ctx, []sequenced.Item{testItem(id, 1), testItem(id, 0)})
	var ce *sequenced.ConcurrencyError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConcurrencyError, got %v", err)
	}
	if ce.Position != 0 {
		t.Errorf("conflict at position %d, want 0", ce.Position)
	}

	got, err := s.GetItems(ctx, id, sequenced.Range{})
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("batch partially applied: %d items", len(got))
	}
}

func TestRedisLastItem(t *testing.T) {
	s := testStore(t)
	id := uuid.New()
	ctx := context.Background()

	last, err := s.LastItem(ctx, id)
	if err != nil {
		t.Fatalf("LastItem failed: %v", err)
	}
	if last != nil {
		t.Fatalf("expected nil for empty stream, got %+v", last)
	}

	if err := s.AppendItems(ctx, []sequenced.Item{testItem(id, 0), testItem(id, 1)}); err != nil {
		t.Fatalf("AppendItems failed: %v", err)
	}
	last, err = s.LastItem(ctx, id)
	if err != nil {
		t.Fatalf("LastItem failed: %v", err)
	}
	if last == nil || last.Position != 1 {
		t.Errorf("LastItem = %+v, want position 1", last)
	}
}

func TestRedisRangeBounds(t *testing.T) {
	s := testStore(t)
	id := uuid.New()
	ctx := context.Background()

	items := make([]sequenced.Item, 0, 6)
	for i := int64(0); i < 6; i++ {
		items = append(items, testItem(id, i))
	}
	if err := s.AppendItems(ctx, items); err != nil {
		t.Fatalf("AppendItems failed: %v", err)
	}

	got, err := s.GetItems(ctx, id, sequenced.Range{GTE: sequenced.Pos(2), LTE: sequenced.Pos(4)})
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(got) != 3 || got[0].Position != 2 || got[2].Position != 4 {
		t.Errorf("bounded read wrong: %+v", got)
	}

	got, err = s.GetItems(ctx, id, sequenced.Range{Desc: true, Limit: 2})
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(got) != 2 || got[0].Position != 5 || got[1].Position != 4 {
		t.Errorf("descending read wrong: %+v", got)
	}
}

func TestRedisInBatchDuplicateRejectedLocally(t *testing.T) {
	// Local guard, no server needed.
	s := New(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
	id := uuid.New()
	err := s.AppendItems(context.Background(), []sequenced.Item{testItem(id, 0), testItem(id, 0)})
	if !errors.Is(err, sequenced.ErrConcurrency) {
		t.Fatalf("expected ErrConcurrency, got %v", err)
	}
}

func TestRedisMixedOriginatorsRejectedLocally(t *testing.T) {
	s := New(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
	err := s.AppendItems(context.Background(), []sequenced.Item{testItem(uuid.New(), 0), testItem(uuid.New(), 0)})
	if !errors.Is(err, sequenced.ErrDatastore) {
		t.Fatalf("expected ErrDatastore, got %v", err)
	}
}
