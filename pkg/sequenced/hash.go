package sequenced

import (
	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/canonical"
)

// hashInput is the fixed field set EventHash is computed over. State enters
// as stored, so hashes stay verifiable without decryption.
type hashInput struct {
	OriginatorID   uuid.UUID `json:"originator_id"`
	Position       int64     `json:"position"`
	Topic          string    `json:"topic"`
	State          []byte    `json:"state"`
	OriginatorHash string    `json:"originator_hash"`
}

// HashItem recomputes the event hash from the item's own stored fields. It
// is a pure function: recomputing and comparing against the stored
// EventHash detects tampering with this item or any predecessor, since
// every hash folds in the previous one.
func HashItem(it Item) (string, error) {
	h, err := canonical.Hash(hashInput{
		OriginatorID:   it.OriginatorID,
		Position:       it.Position,
		Topic:          canonical.NormalizeString(it.Topic),
		State:          it.State,
		OriginatorHash: it.OriginatorHash,
	})
	if err != nil {
		return "", &MappingError{Topic: it.Topic, Err: err}
	}
	return h, nil
}

// VerifyChain walks items in ascending position order, checking per-item
// hashes, link continuity, and gap-free positions. startHash anchors the
// first item: pass GenesisHash when the slice begins at position 0, the
// known preceding EventHash for a mid-stream slice, or the empty string to
// trust the first item's stored predecessor hash. The first break is
// reported as a DataIntegrityError carrying its position.
func VerifyChain(items []Item, startHash string) error {
	expected := startHash
	for i, it := range items {
		if i > 0 && it.Position != items[i-1].Position+1 {
			return &DataIntegrityError{OriginatorID: it.OriginatorID, Position: it.Position, Reason: "position gap"}
		}
		if i == 0 && expected == "" {
			if it.Position == 0 {
				expected = GenesisHash
			} else {
				expected = it.OriginatorHash
			}
		}
		if it.OriginatorHash != expected {
			return &DataIntegrityError{OriginatorID: it.OriginatorID, Position: it.Position, Reason: "broken chain link"}
		}
		h, err := HashItem(it)
		if err != nil {
			return err
		}
		if h != it.EventHash {
			return &DataIntegrityError{OriginatorID: it.OriginatorID, Position: it.Position, Reason: "event hash mismatch"}
		}
		expected = it.EventHash
	}
	return nil
}
