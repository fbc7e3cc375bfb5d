// Package aggregate provides the embeddable building blocks for
// event-sourced entities: an identity-carrying event model and an entity
// base whose state changes only by triggering events. The zero value of
// Base is an empty entity at version -1.
package aggregate

import (
	"errors"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// ErrDiscarded means a discard marker has been applied and the entity
// accepts no further events.
var ErrDiscarded = errors.New("entity is discarded")

// Applier mutates entity state from one event.
type Applier interface {
	Apply(ev sequenced.Event) error
}

// Entity is satisfied by any type embedding Base that implements Apply.
type Entity interface {
	Applier
	base() *Base
}

// Stamped is satisfied by pointers to events embedding Model; Trigger
// stamps the identity fields through it.
type Stamped interface {
	sequenced.Event
	stampIdentity(id uuid.UUID, version int64)
}

// Model is the embeddable identity carrier for domain events. Its fields
// are stamped by Trigger and serialize under the canonical attribute
// names.
type Model struct {
	ID      uuid.UUID `json:"originator_id"`
	Version int64     `json:"originator_version"`
}

func (m Model) OriginatorID() uuid.UUID  { return m.ID }
func (m Model) OriginatorVersion() int64 { return m.Version }

func (m *Model) stampIdentity(id uuid.UUID, version int64) {
	m.ID = id
	m.Version = version
}

// DiscardModel marks its event as a stream-terminating discard marker.
type DiscardModel struct {
	Model
}

// Discarded reports the marker.
func (DiscardModel) Discarded() bool { return true }

// Base is the embeddable entity core: identity, version, the pending
// events not yet saved, and the discard latch.
type Base struct {
	id        uuid.UUID
	height    int64 // events applied; version is height-1
	discarded bool
	pending   []sequenced.Event
}

func (b *Base) base() *Base { return b }

// OriginatorID returns the entity identity, uuid.Nil before the first
// event.
func (b *Base) OriginatorID() uuid.UUID { return b.id }

// Version returns the position of the last applied event, -1 when none.
func (b *Base) Version() int64 { return b.height - 1 }

// Discarded reports whether a discard marker has been applied.
func (b *Base) Discarded() bool { return b.discarded }

// PendingEvents returns a copy of the events triggered since the last
// save.
func (b *Base) PendingEvents() []sequenced.Event {
	out := make([]sequenced.Event, len(b.pending))
	copy(out, b.pending)
	return out
}

// ClearPending drops the pending events after a successful save.
func (b *Base) ClearPending() { b.pending = nil }

// Advance records ev as applied: it adopts the event's identity, moves
// the version to the event's position, and latches the discard marker.
// Domain Apply implementations call it after their own mutation.
func (b *Base) Advance(ev sequenced.Event) {
	b.id = ev.OriginatorID()
	b.height = ev.OriginatorVersion() + 1
	if d, ok := ev.(sequenced.Discarder); ok && d.Discarded() {
		b.discarded = true
	}
}

// Restore resets identity and version from a snapshot capture, clearing
// any pending events.
func (b *Base) Restore(id uuid.UUID, version int64) {
	b.id = id
	b.height = version + 1
	b.discarded = false
	b.pending = nil
}

// Trigger is the only path to state change: it stamps ev with the entity
// identity at the next version, applies it, and records it as pending.
// The first trigger mints a fresh identity unless the event arrives with
// one pre-set. Triggering a discarded entity fails with ErrDiscarded.
func Trigger(e Entity, ev Stamped) error {
	b := e.base()
	if b.discarded {
		return ErrDiscarded
	}
	id := b.id
	if id == uuid.Nil {
		if evID := ev.OriginatorID(); evID != uuid.Nil {
			id = evID
		} else {
			id = uuid.New()
		}
	}
	ev.stampIdentity(id, b.Version()+1)
	if err := e.Apply(ev); err != nil {
		return err
	}
	b.pending = append(b.pending, ev)
	return nil
}
