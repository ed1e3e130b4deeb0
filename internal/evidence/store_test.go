package evidence

import (
	"strings"
	"testing"
	"time"

	"github.com/factgraph/factgraph/internal/model"
)

func msg(id string, ts time.Time) model.Message {
	return model.Message{ID: id, Sender: "a@example.com", Body: "body " + id, Timestamp: ts}
}

func TestNewMemoryStore_RejectsDuplicates(t *testing.T) {
	now := time.Now()
	_, err := NewMemoryStore([]model.Message{msg("m1", now), msg("m1", now)})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if !strings.Contains(err.Error(), "m1") {
		t.Errorf("error should name the duplicate id: %v", err)
	}
}

func TestNewMemoryStore_RejectsEmptyID(t *testing.T) {
	if _, err := NewMemoryStore([]model.Message{{Body: "x"}}); err == nil {
		t.Fatal("expected empty id error")
	}
}

func TestMemoryStore_AllOrdersByTimestamp(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store, err := NewMemoryStore([]model.Message{
		msg("m3", base.Add(2*time.Hour)),
		msg("m1", base),
		msg("m2", base.Add(time.Hour)),
	})
	if err != nil {
		t.Fatal(err)
	}

	all := store.All()
	want := []string{"m1", "m2", "m3"}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, all[i].ID, id)
		}
	}
	if store.Len() != 3 {
		t.Errorf("Len = %d, want 3", store.Len())
	}
}

func TestMemoryStore_SameTimestampOrdersByID(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store, err := NewMemoryStore([]model.Message{msg("b", ts), msg("a", ts)})
	if err != nil {
		t.Fatal(err)
	}
	all := store.All()
	if all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("same-timestamp order = [%s %s], want [a b]", all[0].ID, all[1].ID)
	}
}

func TestResolve_UnknownID(t *testing.T) {
	store, _ := NewMemoryStore([]model.Message{msg("m1", time.Now())})

	if _, err := Resolve(store, []string{"m1"}); err != nil {
		t.Fatalf("known id: %v", err)
	}

	_, err := Resolve(store, []string{"m1", "ghost"})
	if err == nil {
		t.Fatal("expected error for unknown id")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error should name the missing id: %v", err)
	}
}
