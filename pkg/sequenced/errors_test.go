package sequenced

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		err      error
		sentinel error
	}{
		{&ConcurrencyError{OriginatorID: id, Position: 3}, ErrConcurrency},
		{&DataIntegrityError{OriginatorID: id, Position: 1, Reason: "event hash mismatch"}, ErrIntegrity},
		{&MappingError{Topic: "x", Err: errors.New("boom")}, ErrMapping},
		{&DatastoreError{Op: "append", Err: errors.New("down")}, ErrDatastore},
	}
	for _, c := range cases {
		if !errors.Is(c.err, c.sentinel) {
			t.Errorf("%T does not match its sentinel", c.err)
		}
		wrapped := fmt.Errorf("outer: %w", c.err)
		if !errors.Is(wrapped, c.sentinel) {
			t.Errorf("wrapped %T lost its sentinel", c.err)
		}
	}
}

func TestConcurrencyErrorCarriesPosition(t *testing.T) {
	id := uuid.New()
	err := fmt.Errorf("append: %w", &ConcurrencyError{OriginatorID: id, Position: 7})

	var ce *ConcurrencyError
	if !errors.As(err, &ce) {
		t.Fatal("errors.As failed to recover ConcurrencyError")
	}
	if ce.Position != 7 || ce.OriginatorID != id {
		t.Errorf("recovered wrong fields: %+v", ce)
	}
}

func TestDatastoreErrorExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := &DatastoreError{Op: "get_items", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("underlying cause not reachable through Unwrap")
	}
	if !errors.Is(err, ErrDatastore) {
		t.Error("sentinel not reachable through Is")
	}
}
