package topics

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

type accountOpened struct {
	ID      uuid.UUID `json:"originator_id"`
	Version int64     `json:"originator_version"`
	Owner   string    `json:"owner"`
}

func (e accountOpened) OriginatorID() uuid.UUID  { return e.ID }
func (e accountOpened) OriginatorVersion() int64 { return e.Version }

type accountCredited struct {
	ID      uuid.UUID `json:"originator_id"`
	Version int64     `json:"originator_version"`
	Amount  int64     `json:"amount"`
}

func (e accountCredited) OriginatorID() uuid.UUID  { return e.ID }
func (e accountCredited) OriginatorVersion() int64 { return e.Version }

func TestRegisterAndNew(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("account.opened", accountOpened{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	ev, err := r.New("account.opened")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := ev.(*accountOpened); !ok {
		t.Fatalf("New returned %T, want *accountOpened", ev)
	}
}

func TestTopicOf(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("account.opened", accountOpened{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	topic, err := r.TopicOf(accountOpened{})
	if err != nil {
		t.Fatalf("TopicOf failed: %v", err)
	}
	if topic != "account.opened" {
		t.Errorf("TopicOf = %q", topic)
	}

	// Pointer and value forms resolve to the same topic.
	topic, err = r.TopicOf(&accountOpened{})
	if err != nil {
		t.Fatalf("TopicOf pointer form failed: %v", err)
	}
	if topic != "account.opened" {
		t.Errorf("TopicOf pointer form = %q", topic)
	}
}

func TestUnknownTopicIsMappingError(t *testing.T) {
	r := NewRegistry()
	_, err := r.New("nope")
	if !errors.Is(err, sequenced.ErrMapping) {
		t.Fatalf("expected ErrMapping, got %v", err)
	}
	_, err = r.TopicOf(accountCredited{})
	if !errors.Is(err, sequenced.ErrMapping) {
		t.Fatalf("expected ErrMapping, got %v", err)
	}
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("account.opened", accountOpened{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("account.opened", accountCredited{}); err == nil {
		t.Error("duplicate topic accepted")
	}
	if err := r.Register("account.opened.v2", accountOpened{}); err == nil {
		t.Error("duplicate type accepted")
	}
}

func TestSnapshotTopicReserved(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(SnapshotTopic, accountOpened{}); err == nil {
		t.Fatal("reserved topic accepted")
	}

	ev, err := r.New(SnapshotTopic)
	if err != nil {
		t.Fatalf("New(SnapshotTopic) failed: %v", err)
	}
	if _, ok := ev.(*sequenced.Snapshot); !ok {
		t.Fatalf("New(SnapshotTopic) returned %T", ev)
	}
}

func TestSchemaValidation(t *testing.T) {
	r := NewRegistry()
	schema := []byte(`{
		"type": "object",
		"required": ["originator_id", "originator_version", "amount"],
		"properties": {"amount": {"type": "integer", "minimum": 1}}
	}`)
	if err := r.RegisterWithSchema("account.credited", accountCredited{}, schema); err != nil {
		t.Fatalf("RegisterWithSchema failed: %v", err)
	}

	good := []byte(`{"originator_id":"e5a1c9a0-0000-0000-0000-000000000001","originator_version":1,"amount":10}`)
	if err := r.Validate("account.credited", good); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}

	bad := []byte(`{"originator_id":"e5a1c9a0-0000-0000-0000-000000000001","originator_version":1,"amount":0}`)
	err := r.Validate("account.credited", bad)
	if !errors.Is(err, sequenced.ErrMapping) {
		t.Errorf("invalid payload passed validation: %v", err)
	}
}

func TestValidateWithoutSchema(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("account.opened", accountOpened{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Validate("account.opened", []byte(`{"anything":true}`)); err != nil {
		t.Errorf("schemaless topic failed validation: %v", err)
	}
}

func TestBadSchemaRejectedAtRegistration(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterWithSchema("account.opened", accountOpened{}, []byte(`{"type":`)); err == nil {
		t.Fatal("malformed schema accepted")
	}
}
