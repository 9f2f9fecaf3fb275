package chat_test

import (
	"testing"

	"github.com/omochice/presence-relay/internal/chat"
	"github.com/omochice/presence-relay/pkg/protocol"
)

func TestPresenceStore_UpsertAndGet(t *testing.T) {
	store := chat.NewPresenceStore()

	if _, ok := store.Get("u1"); ok {
		t.Error("Get() found a user in an empty store")
	}

	alice := protocol.PresenceUser{ID: "u1", Username: "alice", Status: protocol.StatusOnline}
	store.Upsert(alice)

	got, ok := store.Get("u1")
	if !ok || got != alice {
		t.Errorf("Get() = (%+v, %v), want (%+v, true)", got, ok, alice)
	}

	// A later announce replaces the whole record.
	renamed := protocol.PresenceUser{ID: "u1", Username: "alice2", Status: protocol.StatusIdle}
	store.Upsert(renamed)
	got, _ = store.Get("u1")
	if got != renamed {
		t.Errorf("Get() after re-announce = %+v, want %+v", got, renamed)
	}
}

func TestPresenceStore_SetStatus(t *testing.T) {
	store := chat.NewPresenceStore()
	store.Upsert(protocol.PresenceUser{ID: "u1", Username: "alice", Status: protocol.StatusOnline})

	got, ok := store.SetStatus("u1", protocol.StatusDnd)
	if !ok {
		t.Fatal("SetStatus() failed for a known user")
	}
	if got.Status != protocol.StatusDnd || got.Username != "alice" {
		t.Errorf("SetStatus() = %+v", got)
	}

	if _, ok := store.SetStatus("ghost", protocol.StatusIdle); ok {
		t.Error("SetStatus() succeeded for a user that never announced")
	}
	if _, ok := store.Get("ghost"); ok {
		t.Error("SetStatus() created a record for an unknown user")
	}
}

func TestPresenceStore_Snapshot(t *testing.T) {
	store := chat.NewPresenceStore()

	if got := store.Snapshot(); len(got) != 0 {
		t.Errorf("Snapshot() of empty store has %d entries", len(got))
	}

	store.Upsert(protocol.PresenceUser{ID: "u1", Username: "alice", Status: protocol.StatusOnline})
	store.Upsert(protocol.PresenceUser{ID: "u2", Username: "bob", Status: protocol.StatusIdle})

	snapshot := store.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Snapshot() has %d entries, want 2", len(snapshot))
	}

	// Mutating the snapshot must not leak back into the store.
	snapshot[0].Status = protocol.StatusOffline
	for _, id := range []string{"u1", "u2"} {
		if got, _ := store.Get(id); got.Status == protocol.StatusOffline {
			t.Errorf("snapshot mutation leaked into stored record %s", id)
		}
	}
}

func TestRefCounter(t *testing.T) {
	counter := chat.NewRefCounter()

	if got := counter.Increment("u1"); got != 1 {
		t.Errorf("first Increment() = %d, want 1", got)
	}
	if got := counter.Increment("u1"); got != 2 {
		t.Errorf("second Increment() = %d, want 2", got)
	}
	if got := counter.Count("u1"); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}

	if got := counter.Decrement("u1"); got != 1 {
		t.Errorf("Decrement() = %d, want 1", got)
	}
	if got := counter.Decrement("u1"); got != 0 {
		t.Errorf("Decrement() = %d, want 0", got)
	}
	if got := counter.Count("u1"); got != 0 {
		t.Errorf("Count() after removal = %d, want 0", got)
	}
}

func TestRefCounter_DecrementMissingEntry(t *testing.T) {
	counter := chat.NewRefCounter()

	// A missing entry counts as the last connection going away.
	if got := counter.Decrement("ghost"); got != 0 {
		t.Errorf("Decrement() = %d, want 0", got)
	}
}
