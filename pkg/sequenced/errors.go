package sequenced

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors, matched with errors.Is across all layers.
var (
	ErrConcurrency = errors.New("concurrency conflict")
	ErrIntegrity   = errors.New("data integrity violation")
	ErrMapping     = errors.New("mapping failed")
	ErrDatastore   = errors.New("datastore failure")
	ErrNotFound    = errors.New("originator not found")
)

// ConcurrencyError reports a conditional insert rejected because an item
// already exists at a target position. Recovery is re-read and retry in the
// caller; the store never retries on its own.
type ConcurrencyError struct {
	OriginatorID uuid.UUID
	Position     int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict: item exists for %s at position %d", e.OriginatorID, e.Position)
}

func (e *ConcurrencyError) Unwrap() error { return ErrConcurrency }

// DataIntegrityError reports a recomputed hash mismatch, a broken chain
// link, or a position gap, carrying the position at which the break was
// detected. Fatal for the read; the offending item is never skipped.
type DataIntegrityError struct {
	OriginatorID uuid.UUID
	Position     int64
	Reason       string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation for %s at position %d: %s", e.OriginatorID, e.Position, e.Reason)
}

func (e *DataIntegrityError) Unwrap() error { return ErrIntegrity }

// MappingError reports an unknown topic or a malformed payload during
// (de)serialization.
type MappingError struct {
	Topic string
	Err   error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping failed for topic %q: %v", e.Topic, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

func (e *MappingError) Is(target error) bool { return target == ErrMapping }

// DatastoreError wraps a backend failure that is not a concurrency
// conflict. It is surfaced unchanged; retry policy belongs to the backend
// adapter or the caller.
type DatastoreError struct {
	Op  string
	Err error
}

func (e *DatastoreError) Error() string {
	return fmt.Sprintf("datastore failure in %s: %v", e.Op, e.Err)
}

func (e *DatastoreError) Unwrap() error { return e.Err }

func (e *DatastoreError) Is(target error) bool { return target == ErrDatastore }
