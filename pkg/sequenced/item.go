// Package sequenced defines the stored record model of the event store: the
// sequenced item, the domain event contract, position ranges, and the error
// taxonomy shared by every layer above the storage backends.
package sequenced

import (
	"github.com/google/uuid"
)

// GenesisHash is the predecessor hash recorded for the first item of a
// stream.
const GenesisHash = "genesis"

// Item is the atomic stored record. Exactly one item may exist per
// (OriginatorID, Position) pair; the items of one originator, ordered by
// position, form a singly linked hash chain in which each EventHash becomes
// the next item's OriginatorHash.
type Item struct {
	OriginatorID   uuid.UUID `json:"originator_id"`
	Position       int64     `json:"position"`
	Topic          string    `json:"topic"`
	State          []byte    `json:"state"`
	OriginatorHash string    `json:"originator_hash"`
	EventHash      string    `json:"event_hash"`
}

// Event is the capability a domain event must expose to be mapped and
// stored. OriginatorVersion equals the item position the event occupies.
type Event interface {
	OriginatorID() uuid.UUID
	OriginatorVersion() int64
}

// Discarder marks a terminal event. Once the last event of a stream reports
// Discarded() == true, the originator is treated as absent by replay.
type Discarder interface {
	Discarded() bool
}

// Range bounds a position-ordered read. Nil bounds are open ended. Limit of
// zero means unlimited. StartHash, when set, anchors chain verification for
// the first returned item; otherwise the first item's stored predecessor
// hash is used, except at position 0 where the genesis sentinel is required.
type Range struct {
	GTE       *int64
	LTE       *int64
	Limit     int
	Desc      bool
	StartHash string
}

// Pos returns a pointer to p, for building Range bounds inline.
func Pos(p int64) *int64 { return &p }
