package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

type accountOpened struct {
	Model
	Owner string `json:"owner"`
}

type accountCredited struct {
	Model
	Amount int64 `json:"amount"`
}

type accountClosed struct {
	DiscardModel
}

type bogusEvent struct {
	Model
}

type account struct {
	Base
	Owner   string
	Balance int64
}

func (a *account) Apply(ev sequenced.Event) error {
	switch e := ev.(type) {
	case *accountOpened:
		a.Owner = e.Owner
	case *accountCredited:
		a.Balance += e.Amount
	case *accountClosed:
		// discard latch handled by Advance
	default:
		return fmt.Errorf("account cannot apply %T", ev)
	}
	a.Advance(ev)
	return nil
}

func openAccount(t *testing.T, owner string) *account {
	t.Helper()
	a := &account{}
	if err := Trigger(a, &accountOpened{Owner: owner}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return a
}

func TestZeroValueEntity(t *testing.T) {
	a := &account{}
	if a.Version() != -1 {
		t.Errorf("fresh entity at version %d, want -1", a.Version())
	}
	if a.OriginatorID() != uuid.Nil {
		t.Errorf("fresh entity has identity %s", a.OriginatorID())
	}
	if len(a.PendingEvents()) != 0 {
		t.Error("fresh entity has pending events")
	}
	if a.Discarded() {
		t.Error("fresh entity is discarded")
	}
}

func TestTriggerStampsAndApplies(t *testing.T) {
	a := openAccount(t, "ada")
	if a.Version() != 0 {
		t.Errorf("version %d after first event, want 0", a.Version())
	}
	if a.OriginatorID() == uuid.Nil {
		t.Error("first trigger did not mint an identity")
	}
	if a.Owner != "ada" {
		t.Errorf("owner %q, want ada", a.Owner)
	}

	for _, amount := range []int64{100, 50} {
		if err := Trigger(a, &accountCredited{Amount: amount}); err != nil {
			t.Fatalf("credit failed: %v", err)
		}
	}
	if a.Version() != 2 || a.Balance != 150 {
		t.Errorf("version %d balance %d, want 2 and 150", a.Version(), a.Balance)
	}

	pending := a.PendingEvents()
	if len(pending) != 3 {
		t.Fatalf("%d pending events, want 3", len(pending))
	}
	for i, ev := range pending {
		if ev.OriginatorVersion() != int64(i) {
			t.Errorf("pending event %d stamped version %d", i, ev.OriginatorVersion())
		}
		if ev.OriginatorID() != a.OriginatorID() {
			t.Errorf("pending event %d carries foreign identity", i)
		}
	}
}

func TestTriggerAdoptsPresetIdentity(t *testing.T) {
	want := uuid.New()
	a := &account{}
	if err := Trigger(a, &accountOpened{Model: Model{ID: want}, Owner: "ada"}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if a.OriginatorID() != want {
		t.Errorf("identity %s, want preset %s", a.OriginatorID(), want)
	}
}

func TestClearPending(t *testing.T) {
	a := openAccount(t, "ada")
	a.ClearPending()
	if len(a.PendingEvents()) != 0 {
		t.Error("pending events survived ClearPending")
	}
	if a.Version() != 0 {
		t.Errorf("ClearPending moved version to %d", a.Version())
	}
}

func TestDiscardLatch(t *testing.T) {
	a := openAccount(t, "ada")
	if err := Trigger(a, &accountClosed{}); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !a.Discarded() {
		t.Error("entity not discarded after marker")
	}
	if a.Version() != 1 {
		t.Errorf("version %d after marker, want 1", a.Version())
	}

	err := Trigger(a, &accountCredited{Amount: 1})
	if !errors.Is(err, ErrDiscarded) {
		t.Fatalf("got %v, want ErrDiscarded", err)
	}
	if a.Version() != 1 || len(a.PendingEvents()) != 2 {
		t.Error("rejected trigger changed entity state")
	}
}

func TestApplyFailureLeavesEntityUnchanged(t *testing.T) {
	a := openAccount(t, "ada")
	before := a.Version()

	if err := Trigger(a, &bogusEvent{}); err == nil {
		t.Fatal("unknown event type applied without error")
	}
	if a.Version() != before {
		t.Errorf("failed trigger advanced version to %d", a.Version())
	}
	if len(a.PendingEvents()) != 1 {
		t.Errorf("failed trigger recorded a pending event")
	}
}

func TestReplayThroughApply(t *testing.T) {
	id := uuid.New()
	history := []sequenced.Event{
		&accountOpened{Model: Model{ID: id, Version: 0}, Owner: "ada"},
		&accountCredited{Model: Model{ID: id, Version: 1}, Amount: 75},
	}

	a := &account{}
	for _, ev := range history {
		if err := a.Apply(ev); err != nil {
			t.Fatalf("replay failed: %v", err)
		}
	}
	if a.OriginatorID() != id || a.Version() != 1 {
		t.Errorf("replayed to %s/%d, want %s/1", a.OriginatorID(), a.Version(), id)
	}
	if a.Balance != 75 || a.Owner != "ada" {
		t.Errorf("replayed state owner %q balance %d", a.Owner, a.Balance)
	}
	if len(a.PendingEvents()) != 0 {
		t.Error("replay recorded pending events")
	}
}

func TestRestore(t *testing.T) {
	a := openAccount(t, "ada")
	id := uuid.New()
	a.Restore(id, 5)
	if a.OriginatorID() != id || a.Version() != 5 {
		t.Errorf("restored to %s/%d, want %s/5", a.OriginatorID(), a.Version(), id)
	}
	if len(a.PendingEvents()) != 0 {
		t.Error("restore kept pending events")
	}
}

func TestModelAttributeNames(t *testing.T) {
	ev := &accountCredited{Model: Model{ID: uuid.New(), Version: 3}, Amount: 9}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"originator_id", "originator_version", "amount"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("serialized event missing %q: %s", key, raw)
		}
	}
}
