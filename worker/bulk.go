package worker

import (
	"fmt"

	"github.com/coolray-dev/rayfleet/storage"
)

// BulkUpdater flips every user under an admin between disabled and active,
// then rebuilds and restarts the whole fleet. The restart is unconditional:
// even when no user actually changed state the fleet ends up on a fresh
// snapshot.
type BulkUpdater struct {
	Store storage.UserStore
	Fleet Fleet
}

func NewBulkUpdater(store storage.UserStore, fleet Fleet) *BulkUpdater {
	return &BulkUpdater{Store: store, Fleet: fleet}
}

// SetStatusForAdmin activates the admin's disabled users or disables its
// live ones, depending on activate.
func (b *BulkUpdater) SetStatusForAdmin(admin string, activate bool) error {
	var err error
	if activate {
		err = b.Store.ActivateAllDisabledUsers(admin)
	} else {
		err = b.Store.DisableAllActiveUsers(admin)
	}
	if err != nil {
		return fmt.Errorf("update users of %s: %w", admin, err)
	}

	users, err := b.Store.GetActiveUsers()
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}
	return b.Fleet.RebuildAndRestartAll(users)
}
