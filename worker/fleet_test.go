package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coolray-dev/rayfleet/models"
	"github.com/coolray-dev/rayfleet/utils"
)

func testTemplates() []models.InboundTemplate {
	return []models.InboundTemplate{
		{Tag: "tag1", Protocol: models.VMess, Port: 443},
		{Tag: "ss-in", Protocol: models.Shadowsocks, Port: 8388},
	}
}

func TestRebuildAndRestartAllToleratesNodeFailure(t *testing.T) {
	core := &fakeCore{}
	registry := NewNodeRegistry()
	good1 := &fakeNodeClient{}
	bad := &fakeNodeClient{restartErr: errors.New("node down")}
	good2 := &fakeNodeClient{}
	registerConnected(t, registry, 1, good1)
	registerConnected(t, registry, 2, bad)
	registerConnected(t, registry, 3, good2)

	user := newTestUser(t, "alice", "root", models.StatusActive, map[models.ProxyType][]string{
		models.VMess: {"tag1"},
	})
	fleet := NewFleetController(core, registry, NewConfigBuilder(testTemplates()), seedStore(t, user))

	users := []models.User{*user}
	if err := fleet.RebuildAndRestartAll(users); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if core.restartCount() != 1 {
		t.Fatalf("local core restarted %d times", core.restartCount())
	}
	if good1.restarts != 1 || good2.restarts != 1 {
		t.Fatalf("healthy nodes restarted %d/%d times", good1.restarts, good2.restarts)
	}
	status, err := registry.Status(2)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != models.NodeError {
		t.Fatalf("failed node should be errored, got %s", status)
	}
}

func TestRebuildAndRestartAllLocalFailureIsFatal(t *testing.T) {
	core := &fakeCore{restartErr: errors.New("binary missing")}
	registry := NewNodeRegistry()
	node := &fakeNodeClient{}
	registerConnected(t, registry, 1, node)

	fleet := NewFleetController(core, registry, NewConfigBuilder(testTemplates()), seedStore(t))
	if err := fleet.RebuildAndRestartAll(nil); err == nil {
		t.Fatal("expected local restart failure to propagate")
	}
	if node.configs != 0 || node.restarts != 0 {
		t.Fatal("node sweep ran despite local restart failure")
	}
}

func TestRebuildAndRestartAllSkipsDisconnectedNodes(t *testing.T) {
	core := &fakeCore{}
	registry := NewNodeRegistry()
	connected := &fakeNodeClient{}
	offline := &fakeNodeClient{}
	registerConnected(t, registry, 1, connected)
	registry.Register(models.Node{ID: 2, Name: "offline", Host: "127.0.0.1", APIPort: 8001}, offline)

	fleet := NewFleetController(core, registry, NewConfigBuilder(testTemplates()), seedStore(t))
	if err := fleet.RebuildAndRestartAll(nil); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if connected.restarts != 1 {
		t.Fatalf("connected node restarted %d times", connected.restarts)
	}
	if offline.configs != 0 || offline.restarts != 0 {
		t.Fatal("disconnected node must not be touched")
	}
}

func TestConcurrentRestartsSerialize(t *testing.T) {
	var inflight int32
	var overlapped int32
	core := &fakeCore{}
	core.onRestart = func() {
		if atomic.AddInt32(&inflight, 1) > 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
	}

	fleet := NewFleetController(core, NewNodeRegistry(), NewConfigBuilder(testTemplates()), seedStore(t))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fleet.RebuildAndRestartAll(nil); err != nil {
				t.Errorf("rebuild: %v", err)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&overlapped) != 0 {
		t.Fatal("local core restarts overlapped")
	}
	if core.restartCount() != 4 {
		t.Fatalf("expected 4 serialized restarts, got %d", core.restartCount())
	}
}

func TestPushUserUpdateFansOut(t *testing.T) {
	core := &fakeCore{}
	registry := NewNodeRegistry()
	reachable := &fakeNodeClient{}
	unreachable := &fakeNodeClient{pushErr: errors.New("timeout")}
	registerConnected(t, registry, 1, reachable)
	registerConnected(t, registry, 2, unreachable)

	user := newTestUser(t, "alice", "root", models.StatusActive, map[models.ProxyType][]string{
		models.VMess: {"tag1"},
	})
	fleet := NewFleetController(core, registry, NewConfigBuilder(testTemplates()), seedStore(t, user))

	if err := fleet.PushUserUpdate(user); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(core.updated) != 1 || core.updated[0] != "alice" {
		t.Fatalf("local core update missing: %v", core.updated)
	}
	if len(reachable.users) != 1 {
		t.Fatalf("reachable node missing the push: %v", reachable.users)
	}
	status, _ := registry.Status(2)
	if status != models.NodeError {
		t.Fatalf("unreachable node should be errored, got %s", status)
	}
}

func TestPushUserUpdateDegradesToRestart(t *testing.T) {
	core := &fakeCore{updateErr: utils.ErrUnsupportedProtocol}
	registry := NewNodeRegistry()
	node := &fakeNodeClient{}
	registerConnected(t, registry, 1, node)

	user := newTestUser(t, "alice", "root", models.StatusActive, map[models.ProxyType][]string{
		models.Trojan: {"trojan-in"},
	})
	fleet := NewFleetController(core, registry, NewConfigBuilder(testTemplates()), seedStore(t, user))

	if err := fleet.PushUserUpdate(user); err != nil {
		t.Fatalf("push: %v", err)
	}
	if core.restartCount() != 1 {
		t.Fatalf("expected degrade to a full restart, got %d restarts", core.restartCount())
	}
	if node.configs != 1 || node.restarts != 1 {
		t.Fatalf("node should get the rebuilt config, got %d/%d", node.configs, node.restarts)
	}
}
