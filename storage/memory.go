package storage

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"sort"
	"sync"

	"github.com/coolray-dev/rayfleet/models"
	"github.com/coolray-dev/rayfleet/modules"
)

// MemoryStore is a mutex-guarded in-memory UserStore. Reads hand out deep
// copies so callers can never mutate a stored record in place.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*models.User)}
}

// Load seeds the store from a JSON array of users.
func (s *MemoryStore) Load(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read user file: %w", err)
	}
	var users []models.User
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("parse user file: %w", err)
	}
	for i := range users {
		if err := s.AddUser(&users[i]); err != nil {
			return fmt.Errorf("seed user %s: %w", users[i].Username, err)
		}
	}
	return nil
}

// AddUser inserts a new user record.
func (s *MemoryStore) AddUser(user *models.User) error {
	if err := validateUser(user); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return ErrConflict
	}
	s.users[user.Username] = user.Clone()
	return nil
}

// GetUser returns a copy of a single record.
func (s *MemoryStore) GetUser(username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return user.Clone(), nil
}

// GetUsers lists every user owned by admin, ordered by username.
func (s *MemoryStore) GetUsers(admin string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0)
	for _, user := range s.users {
		if user.Admin == admin {
			users = append(users, *user.Clone())
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// GetActiveUsers lists every live user across all admins.
func (s *MemoryStore) GetActiveUsers() ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0)
	for _, user := range s.users {
		if user.Status.Live() {
			users = append(users, *user.Clone())
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// UpdateUser applies patch to a deep copy, validates it and swaps it in.
// The stored record is untouched when validation fails.
func (s *MemoryStore) UpdateUser(username string, patch UserPatch) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}

	candidate := current.Clone()
	if patch.Inbounds != nil {
		candidate.Inbounds = make(map[models.ProxyType][]string, len(patch.Inbounds))
		for proto, tags := range patch.Inbounds {
			candidate.Inbounds[proto] = append([]string(nil), tags...)
		}
	}
	if patch.Proxies != nil {
		candidate.Proxies = make(models.ProxyMap, len(patch.Proxies))
		for proto, settings := range patch.Proxies {
			candidate.Proxies[proto] = settings
		}
	}
	if patch.Status != nil {
		candidate.Status = *patch.Status
	}

	if err := validateUser(candidate); err != nil {
		return nil, err
	}

	s.users[username] = candidate
	return candidate.Clone(), nil
}

// DisableAllActiveUsers flips every active or on-hold user under admin to
// disabled.
func (s *MemoryStore) DisableAllActiveUsers(admin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Admin == admin && user.Status.Live() {
			user.Status = models.StatusDisabled
		}
	}
	return nil
}

// ActivateAllDisabledUsers flips every disabled user under admin back to
// active.
func (s *MemoryStore) ActivateAllDisabledUsers(admin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Admin == admin && user.Status == models.StatusDisabled {
			user.Status = models.StatusActive
		}
	}
	return nil
}

func validateUser(user *models.User) error {
	if err := modules.Validator.Struct(user); err != nil {
		return fmt.Errorf("invalid user %s: %w", user.Username, err)
	}
	for proto, settings := range user.Proxies {
		if err := modules.Validator.Struct(settings); err != nil {
			return fmt.Errorf("invalid %s settings for %s: %w", proto, user.Username, err)
		}
	}
	return nil
}
