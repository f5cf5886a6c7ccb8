package models

// UserStatus is the lifecycle state of a user record.
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
	StatusLimited  UserStatus = "limited"
	StatusExpired  UserStatus = "expired"
	StatusOnHold   UserStatus = "on_hold"
)

// Live reports whether the user should be present in running proxy cores.
func (s UserStatus) Live() bool {
	return s == StatusActive || s == StatusOnHold
}

// User model
type User struct {
	Username string                 `json:"username" validate:"required"`
	Admin    string                 `json:"admin" validate:"required"`
	Status   UserStatus             `json:"status" validate:"required,oneof=active disabled limited expired on_hold"`
	Inbounds map[ProxyType][]string `json:"inbounds"`
	Proxies  ProxyMap               `json:"proxies"`
}

// Clone returns a deep copy so callers can mutate a snapshot without
// touching the stored record.
func (u *User) Clone() *User {
	c := *u
	if u.Inbounds != nil {
		c.Inbounds = make(map[ProxyType][]string, len(u.Inbounds))
		for proto, tags := range u.Inbounds {
			c.Inbounds[proto] = append([]string(nil), tags...)
		}
	}
	if u.Proxies != nil {
		c.Proxies = make(ProxyMap, len(u.Proxies))
		for proto, settings := range u.Proxies {
			c.Proxies[proto] = settings
		}
	}
	return &c
}

// SyncReport summarizes one reconciliation pass over an admin's users.
type SyncReport struct {
	Total        int `json:"total"`
	Success      int `json:"success"`
	Unsuccessful int `json:"unsuccessful"`
}
