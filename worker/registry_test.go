package worker

import (
	"testing"

	"github.com/coolray-dev/rayfleet/models"
)

func TestRegistryTransitions(t *testing.T) {
	registry := NewNodeRegistry()
	registry.Register(models.Node{ID: 1, Name: "n1", Host: "127.0.0.1", APIPort: 8000}, &fakeNodeClient{})

	if status, _ := registry.Status(1); status != models.NodeDisconnected {
		t.Fatalf("fresh node should be disconnected, got %s", status)
	}

	// disconnected -> connected skips connecting and must be rejected
	if err := registry.SetStatus(1, models.NodeConnected); err == nil {
		t.Fatal("connected must only be reachable from connecting")
	}

	if err := registry.SetStatus(1, models.NodeConnecting); err != nil {
		t.Fatalf("connecting: %v", err)
	}
	// connecting -> connecting is not a retryable state
	if err := registry.SetStatus(1, models.NodeConnecting); err == nil {
		t.Fatal("connecting from connecting must be rejected")
	}
	if err := registry.SetStatus(1, models.NodeConnected); err != nil {
		t.Fatalf("connected: %v", err)
	}

	// error is reachable from any state, and eligible to retry
	if err := registry.SetStatus(1, models.NodeError); err != nil {
		t.Fatalf("error: %v", err)
	}
	if err := registry.SetStatus(1, models.NodeConnecting); err != nil {
		t.Fatalf("retry from error: %v", err)
	}

	if err := registry.SetStatus(1, models.NodeDisconnected); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := registry.SetStatus(2, models.NodeError); err == nil {
		t.Fatal("unregistered node must error")
	}
}

func TestListConnectedIsSnapshot(t *testing.T) {
	registry := NewNodeRegistry()
	registerConnected(t, registry, 1, &fakeNodeClient{})
	registerConnected(t, registry, 2, &fakeNodeClient{})
	registry.Register(models.Node{ID: 3, Name: "n3", Host: "127.0.0.1", APIPort: 8002}, &fakeNodeClient{})

	snapshot := registry.ListConnected()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 connected nodes, got %d", len(snapshot))
	}

	// Mutations after the snapshot must not be visible in it.
	if err := registry.SetStatus(1, models.NodeError); err != nil {
		t.Fatalf("set error: %v", err)
	}
	registry.Unregister(2)

	if len(snapshot) != 2 {
		t.Fatalf("snapshot changed size to %d", len(snapshot))
	}
	for _, handle := range snapshot {
		if handle.Status != models.NodeConnected {
			t.Fatalf("snapshot mutated: node %d is %s", handle.Node.ID, handle.Status)
		}
	}
}
