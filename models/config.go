package models

import "encoding/json"

// InboundTemplate describes a listener the proxy core should open. Templates
// come from the panel configuration; users are attached to them by tag.
type InboundTemplate struct {
	Tag      string    `json:"tag" mapstructure:"tag" validate:"required"`
	Protocol ProxyType `json:"protocol" mapstructure:"protocol" validate:"required"`
	Listen   string    `json:"listen" mapstructure:"listen"`
	Port     uint      `json:"port" mapstructure:"port" validate:"required,min=1,max=65535"`
}

// ClientConfig is one user's credential entry inside an inbound. Fields are
// protocol-specific; unused ones are omitted from the serialized form.
type ClientConfig struct {
	Email    string `json:"email"`
	ID       string `json:"id,omitempty"`
	Password string `json:"password,omitempty"`
	Method   string `json:"method,omitempty"`
	Flow     string `json:"flow,omitempty"`
}

// InboundConfig is a fully populated listener: template plus the clients
// assigned to it.
type InboundConfig struct {
	InboundTemplate
	Clients []ClientConfig `json:"clients"`
}

// StartupConfig is the serialized snapshot of all live users' proxy
// assignments, sufficient to initialize a proxy-core process.
type StartupConfig struct {
	Inbounds []InboundConfig `json:"inbounds"`
}

// Marshal renders the config as the JSON document handed to a core process.
func (c *StartupConfig) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
