package records

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// Memory is a mutex-guarded in-process Store. It defines the reference
// semantics every backend must match and doubles as the test fixture.
type Memory struct {
	mu      sync.RWMutex
	streams map[uuid.UUID]map[int64]sequenced.Item
}

func NewMemory() *Memory {
	return &Memory{streams: make(map[uuid.UUID]map[int64]sequenced.Item)}
}

func (m *Memory) AppendItems(ctx context.Context, items []sequenced.Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &sequenced.DatastoreError{Op: "append_items", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Conflict check across the whole batch before any write, so a
	// rejection leaves every stream unchanged.
	seen := make(map[uuid.UUID]map[int64]bool, 1)
	for _, it := range items {
		if stream, ok := m.streams[it.OriginatorID]; ok {
			if _, exists := stream[it.Position]; exists {
				return &sequenced.ConcurrencyError{OriginatorID: it.OriginatorID, Position: it.Position}
			}
		}
		batch := seen[it.OriginatorID]
		if batch == nil {
			batch = make(map[int64]bool)
			seen[it.OriginatorID] = batch
		}
		if batch[it.Position] {
			return &sequenced.ConcurrencyError{OriginatorID: it.OriginatorID, Position: it.Position}
		}
		batch[it.Position] = true
	}

	for _, it := range items {
		stream := m.streams[it.OriginatorID]
		if stream == nil {
			stream = make(map[int64]sequenced.Item)
			m.streams[it.OriginatorID] = stream
		}
		stream[it.Position] = copyItem(it)
	}
	return nil
}

func (m *Memory) GetItems(ctx context.Context, originatorID uuid.UUID, r sequenced.Range) ([]sequenced.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, &sequenced.DatastoreError{Op: "get_items", Err: err}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stream := m.streams[originatorID]
	out := make([]sequenced.Item, 0, len(stream))
	for pos, it := range stream {
		if r.GTE != nil && pos < *r.GTE {
			continue
		}
		if r.LTE != nil && pos > *r.LTE {
			continue
		}
		out = append(out, copyItem(it))
	}
	sort.Slice(out, func(i, j int) bool {
		if r.Desc {
			return out[i].Position > out[j].Position
		}
		return out[i].Position < out[j].Position
	})
	if r.Limit > 0 && len(out) > r.Limit {
		out = out[:r.Limit]
	}
	return out, nil
}

func (m *Memory) LastItem(ctx context.Context, originatorID uuid.UUID) (*sequenced.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, &sequenced.DatastoreError{Op: "last_item", Err: err}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stream := m.streams[originatorID]
	if len(stream) == 0 {
		return nil, nil
	}
	var last sequenced.Item
	found := false
	for _, it := range stream {
		if !found || it.Position > last.Position {
			last = it
			found = true
		}
	}
	out := copyItem(last)
	return &out, nil
}

// copyItem detaches the State bytes so callers can never mutate storage
// through a returned slice.
func copyItem(it sequenced.Item) sequenced.Item {
	if it.State != nil {
		state := make([]byte, len(it.State))
		copy(state, it.State)
		it.State = state
	}
	return it
}
