package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coolray-dev/rayfleet/models"
	"github.com/coolray-dev/rayfleet/storage"
	"github.com/coolray-dev/rayfleet/utils"
	"github.com/sirupsen/logrus"
)

// LocalCore is the control surface of the local proxy-core process.
type LocalCore interface {
	Restart(cfg *models.StartupConfig) error
	UpdateUser(user *models.User) error
}

// Fleet drives configuration across the local core and the remote nodes.
type Fleet interface {
	RebuildAndRestartAll(users []models.User) error
	PushUserUpdate(user *models.User) error
}

// FleetController owns the local core lifecycle and the per-node fan-out.
// The local core is the source of truth: its restart failures propagate to
// the caller, while an unreachable node is logged, marked errored and
// skipped.
type FleetController struct {
	Core        LocalCore
	Registry    *NodeRegistry
	Builder     *ConfigBuilder
	Store       storage.UserStore
	NodeTimeout time.Duration

	restartLock sync.Mutex
}

func NewFleetController(core LocalCore, registry *NodeRegistry, builder *ConfigBuilder, store storage.UserStore) *FleetController {
	return &FleetController{
		Core:        core,
		Registry:    registry,
		Builder:     builder,
		Store:       store,
		NodeTimeout: 30 * time.Second,
	}
}

// RebuildAndRestartAll serializes users into a startup configuration,
// restarts the local core with it and then pushes the same snapshot to
// every connected node in parallel. Concurrent local restarts serialize on
// the restart lock; the node sweep runs outside it.
func (f *FleetController) RebuildAndRestartAll(users []models.User) error {
	cfg := f.Builder.Build(users)

	f.restartLock.Lock()
	err := f.Core.Restart(cfg)
	f.restartLock.Unlock()
	if err != nil {
		return fmt.Errorf("restart local core: %w", err)
	}

	handles := f.Registry.ListConnected()
	var wg sync.WaitGroup
	for _, handle := range handles {
		wg.Add(1)
		go func(h NodeHandle) {
			defer wg.Done()
			f.restartNode(h, cfg)
		}(handle)
	}
	wg.Wait()
	return nil
}

func (f *FleetController) restartNode(handle NodeHandle, cfg *models.StartupConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), f.NodeTimeout)
	defer cancel()

	if err := handle.Client.PushConfig(ctx, cfg); err != nil {
		f.markErrored(handle, "Error Pushing Config To Node", err)
		return
	}
	if err := handle.Client.Restart(ctx); err != nil {
		f.markErrored(handle, "Error Restarting Node", err)
		return
	}
	utils.Log.WithField("node", handle.Node.ID).Info("Node Restarted")
}

// PushUserUpdate hot-applies one user's assignment to the local core and
// every connected node. When the local core cannot hot-apply one of the
// user's protocols the whole update degrades to a full rebuild and restart
// from the current store state.
func (f *FleetController) PushUserUpdate(user *models.User) error {
	if err := f.Core.UpdateUser(user); err != nil {
		if errors.Is(err, utils.ErrUnsupportedProtocol) {
			users, serr := f.Store.GetActiveUsers()
			if serr != nil {
				return fmt.Errorf("list active users: %w", serr)
			}
			return f.RebuildAndRestartAll(users)
		}
		utils.Log.WithFields(logrus.Fields{
			"user":  user.Username,
			"error": err,
		}).Error("Error Updating User On Local Core")
	}

	handles := f.Registry.ListConnected()
	var wg sync.WaitGroup
	for _, handle := range handles {
		wg.Add(1)
		go func(h NodeHandle) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), f.NodeTimeout)
			defer cancel()
			if err := h.Client.PushUser(ctx, user); err != nil {
				f.markErrored(h, "Error Pushing User To Node", err)
			}
		}(handle)
	}
	wg.Wait()
	return nil
}

func (f *FleetController) markErrored(handle NodeHandle, msg string, err error) {
	utils.Log.WithFields(logrus.Fields{
		"node":  handle.Node.ID,
		"error": err,
	}).Warn(msg)
	if serr := f.Registry.SetStatus(handle.Node.ID, models.NodeError); serr != nil {
		utils.Log.WithError(serr).Debug("Node Status Not Updated")
	}
}
