// Package mapper converts domain events to and from sequenced items:
// serialization, optional payload encryption, and per-event hash
// computation and verification.
package mapper

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/canonical"
	"github.com/Mindburn-Labs/keel/pkg/cipher"
	"github.com/Mindburn-Labs/keel/pkg/sequenced"
	"github.com/Mindburn-Labs/keel/pkg/topics"
)

// Mapper converts between domain events and sequenced items. Topic and
// identifying fields stay plaintext even when a cipher is configured, so
// chain verification never requires decryption.
type Mapper struct {
	registry *topics.Registry
	cipher   cipher.Cipher
}

type Option func(*Mapper)

// WithCipher encrypts serialized payloads before storage and decrypts them
// on read.
func WithCipher(c cipher.Cipher) Option {
	return func(m *Mapper) { m.cipher = c }
}

func New(registry *topics.Registry, opts ...Option) *Mapper {
	m := &Mapper{registry: registry}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ToItem serializes ev into a sequenced item whose predecessor hash is
// prevHash, encrypting the payload when a cipher is configured and
// computing the event hash over the stored form.
func (m *Mapper) ToItem(ev sequenced.Event, prevHash string) (sequenced.Item, error) {
	topic, err := m.registry.TopicOf(ev)
	if err != nil {
		return sequenced.Item{}, err
	}
	if ev.OriginatorID() == uuid.Nil {
		return sequenced.Item{}, &sequenced.MappingError{Topic: topic, Err: errors.New("missing originator id")}
	}
	if ev.OriginatorVersion() < 0 {
		return sequenced.Item{}, &sequenced.MappingError{Topic: topic, Err: fmt.Errorf("negative originator version %d", ev.OriginatorVersion())}
	}
	if prevHash == "" {
		return sequenced.Item{}, &sequenced.MappingError{Topic: topic, Err: errors.New("missing predecessor hash")}
	}

	state, err := json.Marshal(ev)
	if err != nil {
		return sequenced.Item{}, &sequenced.MappingError{Topic: topic, Err: err}
	}
	if m.cipher != nil {
		state, err = m.cipher.Encrypt(state)
		if err != nil {
			return sequenced.Item{}, &sequenced.MappingError{Topic: topic, Err: err}
		}
	}

	it := sequenced.Item{
		OriginatorID:   ev.OriginatorID(),
		Position:       ev.OriginatorVersion(),
		Topic:          canonical.NormalizeString(topic),
		State:          state,
		OriginatorHash: prevHash,
	}
	it.EventHash, err = sequenced.HashItem(it)
	if err != nil {
		return sequenced.Item{}, err
	}
	return it, nil
}

// FromItem verifies the item's own hash and its link to expectedPrevHash,
// then decrypts, validates, and deserializes the payload back into its
// registered event type. Pass the empty string to accept the item's stored
// predecessor hash.
func (m *Mapper) FromItem(it sequenced.Item, expectedPrevHash string) (sequenced.Event, error) {
	recomputed, err := sequenced.HashItem(it)
	if err != nil {
		return nil, err
	}
	if recomputed != it.EventHash {
		return nil, &sequenced.DataIntegrityError{OriginatorID: it.OriginatorID, Position: it.Position, Reason: "event hash mismatch"}
	}
	if expectedPrevHash != "" && it.OriginatorHash != expectedPrevHash {
		return nil, &sequenced.DataIntegrityError{OriginatorID: it.OriginatorID, Position: it.Position, Reason: "broken chain link"}
	}

	state := it.State
	if m.cipher != nil {
		state, err = m.cipher.Decrypt(state)
		if err != nil {
			return nil, &sequenced.MappingError{Topic: it.Topic, Err: err}
		}
	}
	if err := m.registry.Validate(it.Topic, state); err != nil {
		return nil, err
	}
	ev, err := m.registry.New(it.Topic)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(state, ev); err != nil {
		return nil, &sequenced.MappingError{Topic: it.Topic, Err: err}
	}
	return ev, nil
}
