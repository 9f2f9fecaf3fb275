package test

import (
	"testing"
	"time"

	"github.com/omochice/presence-relay/internal/chat"
	client "github.com/omochice/presence-relay/internal/client/ws"
	"github.com/omochice/presence-relay/internal/crypto"
	server "github.com/omochice/presence-relay/internal/transport/ws"
	"github.com/omochice/presence-relay/pkg/protocol"
)

// waitForEvent drains a client's event channel until match holds.
func waitForEvent(t *testing.T, c *client.Client, match func(protocol.Event) bool, desc string) protocol.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-c.Events():
			if match(event) {
				return event
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", desc)
		}
	}
}

// TestIntegration_PresenceLifecycle runs the full announce, status
// change, and disconnect flow through a real WebSocket server.
func TestIntegration_PresenceLifecycle(t *testing.T) {
	core := chat.NewCore()
	srv := server.New(":0", core, crypto.NewCodec(), 16)
	go func() {
		_ = srv.Start()
	}()
	defer srv.Stop()

	time.Sleep(100 * time.Millisecond)

	serverAddr := "ws://" + srv.Addr()
	if srv.Addr() == "" {
		t.Fatal("Server address is empty")
	}

	client1 := client.New(serverAddr)
	if err := client1.Connect(); err != nil {
		t.Fatalf("Client 1 failed to connect: %v", err)
	}
	defer client1.Disconnect()

	// The first frame every connection receives is the presence snapshot.
	snapshot := waitForEvent(t, client1, func(e protocol.Event) bool {
		return e.Type == protocol.TypePresenceSnapshot
	}, "client 1 snapshot")
	if len(snapshot.Users) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snapshot.Users)
	}

	alice := protocol.PresenceUser{ID: "u-alice", Username: "alice", Status: protocol.StatusOnline}
	if err := client1.Announce(alice); err != nil {
		t.Fatalf("Client 1 failed to announce: %v", err)
	}

	// The announce is broadcast to everyone, the announcer included.
	waitForEvent(t, client1, func(e protocol.Event) bool {
		return e.Type == protocol.TypePresenceUpdate && e.User.ID == "u-alice"
	}, "client 1 announce echo")

	client2 := client.New(serverAddr)
	if err := client2.Connect(); err != nil {
		t.Fatalf("Client 2 failed to connect: %v", err)
	}
	defer client2.Disconnect()

	// A later connection's snapshot includes users announced before it.
	snapshot = waitForEvent(t, client2, func(e protocol.Event) bool {
		return e.Type == protocol.TypePresenceSnapshot
	}, "client 2 snapshot")
	if len(snapshot.Users) != 1 || snapshot.Users[0].ID != "u-alice" {
		t.Errorf("client 2 snapshot = %+v, want alice online", snapshot.Users)
	}

	bob := protocol.PresenceUser{ID: "u-bob", Username: "bob", Status: protocol.StatusOnline}
	if err := client2.Announce(bob); err != nil {
		t.Fatalf("Client 2 failed to announce: %v", err)
	}

	waitForEvent(t, client1, func(e protocol.Event) bool {
		return e.Type == protocol.TypePresenceUpdate && e.User.ID == "u-bob"
	}, "client 1 to see bob online")

	// Status changes propagate to every connection.
	if err := client2.SetStatus("u-bob", protocol.StatusDnd); err != nil {
		t.Fatalf("Client 2 failed to set status: %v", err)
	}
	event := waitForEvent(t, client1, func(e protocol.Event) bool {
		return e.Type == protocol.TypePresenceUpdate && e.User.ID == "u-bob" && e.User.Status == protocol.StatusDnd
	}, "client 1 to see bob dnd")
	if event.User.Username != "bob" {
		t.Errorf("status update lost the username: %+v", event.User)
	}

	// Chat messages are accepted without disturbing presence.
	if err := client1.SendChat("hello bob"); err != nil {
		t.Fatalf("Client 1 failed to send chat: %v", err)
	}

	// Disconnecting the last connection for a user marks it offline.
	client2.Disconnect()
	waitForEvent(t, client1, func(e protocol.Event) bool {
		return e.Type == protocol.TypePresenceUpdate && e.User.ID == "u-bob" && e.User.Status == protocol.StatusOffline
	}, "client 1 to see bob offline")

	if user, ok := core.Presence.Get("u-alice"); !ok || user.Status != protocol.StatusOnline {
		t.Errorf("alice = (%+v, %v), want online", user, ok)
	}
}

// TestIntegration_MultiDevicePresence checks that a user stays online
// while any of its connections remains.
func TestIntegration_MultiDevicePresence(t *testing.T) {
	core := chat.NewCore()
	srv := server.New(":0", core, crypto.NewCodec(), 16)
	go func() {
		_ = srv.Start()
	}()
	defer srv.Stop()

	time.Sleep(100 * time.Millisecond)

	serverAddr := "ws://" + srv.Addr()
	alice := protocol.PresenceUser{ID: "u-alice", Username: "alice", Status: protocol.StatusOnline}

	watcher := client.New(serverAddr)
	if err := watcher.Connect(); err != nil {
		t.Fatalf("Watcher failed to connect: %v", err)
	}
	defer watcher.Disconnect()

	devices := make([]*client.Client, 2)
	for i := range devices {
		c := client.New(serverAddr)
		if err := c.Connect(); err != nil {
			t.Fatalf("Device %d failed to connect: %v", i, err)
		}
		if err := c.Announce(alice); err != nil {
			t.Fatalf("Device %d failed to announce: %v", i, err)
		}
		devices[i] = c
	}

	time.Sleep(200 * time.Millisecond)
	if got := core.Counter.Count("u-alice"); got != 2 {
		t.Fatalf("connection count = %d, want 2", got)
	}

	devices[0].Disconnect()
	time.Sleep(200 * time.Millisecond)

	if user, _ := core.Presence.Get("u-alice"); user.Status != protocol.StatusOnline {
		t.Errorf("alice went offline while a device was still connected: %q", user.Status)
	}

	devices[1].Disconnect()
	waitForEvent(t, watcher, func(e protocol.Event) bool {
		return e.Type == protocol.TypePresenceUpdate && e.User.ID == "u-alice" && e.User.Status == protocol.StatusOffline
	}, "watcher to see alice offline")

	if got := core.Counter.Count("u-alice"); got != 0 {
		t.Errorf("connection count = %d, want 0", got)
	}
}
