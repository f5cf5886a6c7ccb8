package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/coolray-dev/rayfleet/models"
)

// NodeClient is the transport surface for one remote node's agent.
type NodeClient interface {
	Ping(ctx context.Context) error
	PushConfig(ctx context.Context, cfg *models.StartupConfig) error
	PushUser(ctx context.Context, user *models.User) error
	Restart(ctx context.Context) error
}

// NodeHandle pairs a node record with its connection state and transport.
type NodeHandle struct {
	Node   models.Node
	Status models.NodeStatus
	Client NodeClient
}

// NodeRegistry is the process-wide map of registered nodes. Node state
// changes concurrently with restart sweeps, so every listing returns a
// point-in-time snapshot rather than the live map.
type NodeRegistry struct {
	mu    sync.RWMutex
	nodes map[uint64]*NodeHandle
}

func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{nodes: make(map[uint64]*NodeHandle)}
}

// Register adds a node in the disconnected state. Registering an existing
// id replaces its handle.
func (r *NodeRegistry) Register(node models.Node, client NodeClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[node.ID] = &NodeHandle{
		Node:   node,
		Status: models.NodeDisconnected,
		Client: client,
	}
}

// Unregister drops a node from the registry.
func (r *NodeRegistry) Unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, id)
}

// List snapshots every registered node.
func (r *NodeRegistry) List() []NodeHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]NodeHandle, 0, len(r.nodes))
	for _, handle := range r.nodes {
		handles = append(handles, *handle)
	}
	return handles
}

// ListConnected snapshots the nodes currently in the connected state.
func (r *NodeRegistry) ListConnected() []NodeHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]NodeHandle, 0, len(r.nodes))
	for _, handle := range r.nodes {
		if handle.Status == models.NodeConnected {
			handles = append(handles, *handle)
		}
	}
	return handles
}

// Status returns the current connection state of a node.
func (r *NodeRegistry) Status(id uint64) (models.NodeStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.nodes[id]
	if !ok {
		return "", fmt.Errorf("node %d not registered", id)
	}
	return handle.Status, nil
}

// SetStatus applies a state transition. Connecting is only reachable from
// disconnected or error, connected only from connecting; error and
// disconnected can be entered from any state.
func (r *NodeRegistry) SetStatus(id uint64, status models.NodeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle, ok := r.nodes[id]
	if !ok {
		return fmt.Errorf("node %d not registered", id)
	}
	switch status {
	case models.NodeConnecting:
		if handle.Status != models.NodeDisconnected && handle.Status != models.NodeError {
			return fmt.Errorf("node %d: cannot connect from %s", id, handle.Status)
		}
	case models.NodeConnected:
		if handle.Status != models.NodeConnecting {
			return fmt.Errorf("node %d: cannot mark connected from %s", id, handle.Status)
		}
	case models.NodeError, models.NodeDisconnected:
	default:
		return fmt.Errorf("unknown node status %q", status)
	}
	handle.Status = status
	return nil
}
