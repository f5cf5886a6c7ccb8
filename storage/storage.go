// Package storage defines the user store the reconciliation and fleet
// workers run against. Each update is atomic for the user it touches; a
// failed update leaves the stored record exactly as it was.
package storage

import (
	"errors"

	"github.com/coolray-dev/rayfleet/models"
)

var (
	// ErrNotFound is returned when a username has no record.
	ErrNotFound = errors.New("user not found")
	// ErrConflict is returned when inserting an existing username.
	ErrConflict = errors.New("user already exists")
)

// UserPatch is the set of fields an update may change. Nil fields are left
// untouched.
type UserPatch struct {
	Inbounds map[models.ProxyType][]string
	Proxies  models.ProxyMap
	Status   *models.UserStatus
}

// UserStore is the persistence surface the workers consume.
type UserStore interface {
	// GetUsers lists every user owned by the given admin.
	GetUsers(admin string) ([]models.User, error)
	// GetActiveUsers lists every live user across all admins, the input to
	// a startup-config rebuild.
	GetActiveUsers() ([]models.User, error)
	// UpdateUser applies patch to a single user atomically and returns the
	// updated record.
	UpdateUser(username string, patch UserPatch) (*models.User, error)
	// DisableAllActiveUsers flips every active or on-hold user under admin
	// to disabled.
	DisableAllActiveUsers(admin string) error
	// ActivateAllDisabledUsers flips every disabled user under admin back
	// to active.
	ActivateAllDisabledUsers(admin string) error
}
