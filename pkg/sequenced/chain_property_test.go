//go:build property
// +build property

// Package sequenced_test contains property-based tests for hash chain
// construction, tamper detection, and truncation detection.
package sequenced_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// buildChain links states into a valid chain starting at genesis.
func buildChain(id uuid.UUID, states []string) ([]sequenced.Item, error) {
	prev := sequenced.GenesisHash
	items := make([]sequenced.Item, 0, len(states))
	for i, st := range states {
		it := sequenced.Item{
			OriginatorID:   id,
			Position:       int64(i),
			Topic:          "meter.ticked",
			State:          []byte(st),
			OriginatorHash: prev,
		}
		h, err := sequenced.HashItem(it)
		if err != nil {
			return nil, err
		}
		it.EventHash = h
		items = append(items, it)
		prev = h
	}
	return items, nil
}

// TestChainConstructionAlwaysVerifies verifies that any linked chain passes.
// Property: VerifyChain(buildChain(states), genesis) == nil
func TestChainConstructionAlwaysVerifies(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Linked chains always verify", prop.ForAll(
		func(states []string) bool {
			items, err := buildChain(uuid.New(), states)
			if err != nil {
				return false
			}
			if err := sequenced.VerifyChain(items, sequenced.GenesisHash); err != nil {
				return false
			}
			// The empty anchor resolves to genesis for position 0.
			return sequenced.VerifyChain(items, "") == nil
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}

// TestHashItemDeterminism verifies hashing is a pure function.
// Property: HashItem(it) == HashItem(it) for any it
func TestHashItemDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Item hashing is deterministic", prop.ForAll(
		func(topic, state, prev string, position int64) bool {
			it := sequenced.Item{
				OriginatorID:   uuid.New(),
				Position:       position,
				Topic:          topic,
				State:          []byte(state),
				OriginatorHash: prev,
			}
			h1, err1 := sequenced.HashItem(it)
			h2, err2 := sequenced.HashItem(it)
			if err1 != nil || err2 != nil {
				return false
			}
			return h1 == h2
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.AlphaString(),
		gen.Int64Range(0, 1<<40),
	))

	properties.TestingRun(t)
}

// TestHashCoversEveryField verifies each hashed field contributes.
// Property: changing any one field changes the hash
func TestHashCoversEveryField(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Every field feeds the hash", prop.ForAll(
		func(topic, state string, position int64) bool {
			base := sequenced.Item{
				OriginatorID:   uuid.New(),
				Position:       position,
				Topic:          topic,
				State:          []byte(state),
				OriginatorHash: sequenced.GenesisHash,
			}
			h0, err := sequenced.HashItem(base)
			if err != nil {
				return false
			}

			variants := []sequenced.Item{base, base, base, base}
			variants[0].Position++
			variants[1].Topic += "x"
			variants[2].State = append(append([]byte{}, base.State...), 'x')
			variants[3].OriginatorHash += "x"

			for _, v := range variants {
				h, err := sequenced.HashItem(v)
				if err != nil {
					return false
				}
				if h == h0 {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
		gen.AnyString(),
		gen.Int64Range(0, 1<<40),
	))

	properties.TestingRun(t)
}

// TestTamperAnyItemBreaksChain verifies no position escapes detection.
// Property: mutating State at any index fails VerifyChain at that position
func TestTamperAnyItemBreaksChain(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Tampering is detected at the tampered position", prop.ForAll(
		func(states []string, pick int) bool {
			if len(states) == 0 {
				return true
			}
			items, err := buildChain(uuid.New(), states)
			if err != nil {
				return false
			}
			idx := pick % len(items)
			items[idx].State = append(append([]byte{}, items[idx].State...), 'x')

			verifyErr := sequenced.VerifyChain(items, sequenced.GenesisHash)
			if verifyErr == nil {
				return false
			}
			var integrity *sequenced.DataIntegrityError
			if !errors.As(verifyErr, &integrity) {
				return false
			}
			return integrity.Position == int64(idx)
		},
		gen.SliceOf(gen.AnyString()),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}

// TestSwapBreaksChain verifies reordering never passes.
// Property: swapping two adjacent items fails VerifyChain
func TestSwapBreaksChain(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Swapped items fail verification", prop.ForAll(
		func(states []string, pick int) bool {
			if len(states) < 2 {
				return true
			}
			items, err := buildChain(uuid.New(), states)
			if err != nil {
				return false
			}
			i := pick % (len(items) - 1)
			items[i], items[i+1] = items[i+1], items[i]

			return sequenced.VerifyChain(items, sequenced.GenesisHash) != nil
		},
		gen.SliceOf(gen.AnyString()),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}

// TestTruncationAnchoring verifies the two anchor modes.
// Property: a chain cut at the front fails the genesis anchor but passes
// the empty anchor, which trusts the first stored link for mid-stream reads
func TestTruncationAnchoring(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Truncated chains fail genesis anchoring", prop.ForAll(
		func(states []string, pick int) bool {
			if len(states) < 2 {
				return true
			}
			items, err := buildChain(uuid.New(), states)
			if err != nil {
				return false
			}
			k := 1 + pick%(len(items)-1)
			cut := items[k:]

			if sequenced.VerifyChain(cut, sequenced.GenesisHash) == nil {
				return false
			}
			if sequenced.VerifyChain(cut, "") != nil {
				return false
			}
			// The exact predecessor hash also anchors a mid-stream slice.
			return sequenced.VerifyChain(cut, items[k-1].EventHash) == nil
		},
		gen.SliceOf(gen.AnyString()),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}
