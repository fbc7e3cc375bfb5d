package sequenced

import (
	"github.com/google/uuid"
)

// Snapshot is the payload of a snapshot record: a complete capture of an
// entity's serialized state plus the version at which it was taken. In the
// chained deployment scheme it is appended like a regular event and
// occupies its own stream position; in the separate scheme it lives in a
// parallel sequence at the captured version. Snapshots are append-only and
// never overwritten.
type Snapshot struct {
	ID             uuid.UUID `json:"originator_id"`
	Position       int64     `json:"position"`
	EntityTopic    string    `json:"entity_topic"`
	State          []byte    `json:"state"`
	TakenAtVersion int64     `json:"taken_at_version"`
}

func (s Snapshot) OriginatorID() uuid.UUID  { return s.ID }
func (s Snapshot) OriginatorVersion() int64 { return s.Position }
