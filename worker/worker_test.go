package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/coolray-dev/rayfleet/models"
	"github.com/coolray-dev/rayfleet/storage"
)

type fakeCore struct {
	mu         sync.Mutex
	restarts   []*models.StartupConfig
	updated    []string
	restartErr error
	updateErr  error
	onRestart  func()
}

func (f *fakeCore) Restart(cfg *models.StartupConfig) error {
	if f.onRestart != nil {
		f.onRestart()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restartErr != nil {
		return f.restartErr
	}
	f.restarts = append(f.restarts, cfg)
	return nil
}

func (f *fakeCore) UpdateUser(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, user.Username)
	return nil
}

func (f *fakeCore) restartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.restarts)
}

type fakeNodeClient struct {
	mu         sync.Mutex
	configs    int
	users      []string
	restarts   int
	pingErr    error
	pushErr    error
	restartErr error
}

func (f *fakeNodeClient) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeNodeClient) PushConfig(ctx context.Context, cfg *models.StartupConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.configs++
	return nil
}

func (f *fakeNodeClient) PushUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.users = append(f.users, user.Username)
	return nil
}

func (f *fakeNodeClient) Restart(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restartErr != nil {
		return f.restartErr
	}
	f.restarts++
	return nil
}

type fakeFleet struct {
	mu         sync.Mutex
	rebuilds   [][]models.User
	pushed     []string
	rebuildErr error
	pushErr    error
}

func (f *fakeFleet) RebuildAndRestartAll(users []models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rebuildErr != nil {
		return f.rebuildErr
	}
	f.rebuilds = append(f.rebuilds, users)
	return nil
}

func (f *fakeFleet) PushUserUpdate(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushed = append(f.pushed, user.Username)
	return nil
}

func newTestUser(t *testing.T, username, admin string, status models.UserStatus, inbounds map[models.ProxyType][]string) *models.User {
	t.Helper()
	proxies := make(models.ProxyMap)
	for proto := range inbounds {
		settings, err := models.DefaultSettings(proto)
		if err != nil {
			t.Fatalf("default settings for %s: %v", proto, err)
		}
		proxies[proto] = settings
	}
	return &models.User{
		Username: username,
		Admin:    admin,
		Status:   status,
		Inbounds: inbounds,
		Proxies:  proxies,
	}
}

func seedStore(t *testing.T, users ...*models.User) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	for _, user := range users {
		if err := store.AddUser(user); err != nil {
			t.Fatalf("seed %s: %v", user.Username, err)
		}
	}
	return store
}

// registerConnected walks a node through the connect transitions so tests
// can start from a connected fleet.
func registerConnected(t *testing.T, registry *NodeRegistry, id uint64, client NodeClient) {
	t.Helper()
	registry.Register(models.Node{ID: id, Name: "node", Host: "127.0.0.1", APIPort: 8000}, client)
	if err := registry.SetStatus(id, models.NodeConnecting); err != nil {
		t.Fatalf("connecting node %d: %v", id, err)
	}
	if err := registry.SetStatus(id, models.NodeConnected); err != nil {
		t.Fatalf("connecting node %d: %v", id, err)
	}
}
