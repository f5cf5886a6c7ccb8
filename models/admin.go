package models

// Admin model
type Admin struct {
	Username string `json:"username" validate:"required"`
	IsSudo   bool   `json:"is_sudo"`
}
