package worker

import (
	"fmt"
	"reflect"

	"github.com/coolray-dev/rayfleet/models"
	"github.com/coolray-dev/rayfleet/storage"
	"github.com/coolray-dev/rayfleet/utils"
	"github.com/sirupsen/logrus"
)

// Reconciler aligns every user of an admin with the allowed-inbound policy
// supplied per sync request. Users are processed independently; one user's
// failure never aborts the batch.
type Reconciler struct {
	Store storage.UserStore
	Fleet Fleet
}

func NewReconciler(store storage.UserStore, fleet Fleet) *Reconciler {
	return &Reconciler{Store: store, Fleet: fleet}
}

// Sync recomputes each user's inbound and proxy assignment from policy and
// persists the result. Every protocol named in the policy is granted with
// its full tag list; protocols absent from the policy are dropped, together
// with their settings. Users whose record did not change are skipped
// without a store write.
func (r *Reconciler) Sync(admin string, policy models.AllowedInbounds) (*models.SyncReport, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	users, err := r.Store.GetUsers(admin)
	if err != nil {
		return nil, fmt.Errorf("list users of %s: %w", admin, err)
	}

	report := &models.SyncReport{Total: len(users)}
	for i := range users {
		if err := r.syncUser(&users[i], policy); err != nil {
			utils.Log.WithFields(logrus.Fields{
				"user":  users[i].Username,
				"error": err,
			}).Warn("User Sync Failed")
			report.Unsuccessful++
		}
	}
	report.Success = report.Total - report.Unsuccessful
	return report, nil
}

func (r *Reconciler) syncUser(user *models.User, policy models.AllowedInbounds) error {
	// Tags the user already holds that are still allowed. Protocols whose
	// tags are all gone from the policy drop out here.
	carried := make(map[models.ProxyType][]string)
	for proto, tags := range user.Inbounds {
		allowed, ok := policy[proto]
		if !ok {
			continue
		}
		kept := intersectTags(tags, allowed)
		if len(kept) > 0 {
			carried[proto] = kept
		}
	}

	// Every protocol in the policy gets the union of its carried tags with
	// the full allowed list. The carried set is a subset of the allowed
	// list, so this grants the complete policy to every user.
	newInbounds := make(map[models.ProxyType][]string, len(policy))
	for proto, tags := range policy {
		newInbounds[proto] = unionTags(tags, carried[proto])
	}

	newProxies := make(models.ProxyMap, len(newInbounds))
	for proto := range newInbounds {
		if settings, ok := user.Proxies[proto]; ok {
			newProxies[proto] = settings
		}
	}
	for proto := range newInbounds {
		if _, ok := newProxies[proto]; !ok {
			settings, err := models.DefaultSettings(proto)
			if err != nil {
				return err
			}
			newProxies[proto] = settings
		}
	}

	if inboundsEqual(newInbounds, user.Inbounds) && proxiesEqual(newProxies, user.Proxies) {
		return nil
	}

	updated, err := r.Store.UpdateUser(user.Username, storage.UserPatch{
		Inbounds: newInbounds,
		Proxies:  newProxies,
	})
	if err != nil {
		return err
	}

	if updated.Status.Live() {
		return r.Fleet.PushUserUpdate(updated)
	}
	return nil
}

// intersectTags keeps the tags of a that also appear in b, preserving a's
// order.
func intersectTags(a, b []string) []string {
	kept := make([]string, 0, len(a))
	for _, tag := range a {
		if containsTag(b, tag) {
			kept = append(kept, tag)
		}
	}
	return kept
}

// unionTags merges extra into base, keeping base's order and dropping
// duplicates.
func unionTags(base, extra []string) []string {
	merged := append([]string(nil), base...)
	for _, tag := range extra {
		if !containsTag(merged, tag) {
			merged = append(merged, tag)
		}
	}
	return merged
}

// inboundsEqual compares protocol keys and per-protocol tag sets. Tag order
// is irrelevant, so a repeated sync with the same policy never rewrites a
// user.
func inboundsEqual(a, b map[models.ProxyType][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for proto, atags := range a {
		btags, ok := b[proto]
		if !ok || len(atags) != len(btags) {
			return false
		}
		for _, tag := range atags {
			if !containsTag(btags, tag) {
				return false
			}
		}
	}
	return true
}

func proxiesEqual(a, b models.ProxyMap) bool {
	if len(a) != len(b) {
		return false
	}
	for proto, asettings := range a {
		bsettings, ok := b[proto]
		if !ok || !reflect.DeepEqual(asettings, bsettings) {
			return false
		}
	}
	return true
}
