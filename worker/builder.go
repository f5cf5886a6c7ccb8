package worker

import (
	"sort"

	"github.com/coolray-dev/rayfleet/models"
)

// ConfigBuilder turns the configured inbound templates plus a set of users
// into a startup configuration. Build is a pure function of its input; the
// caller decides which users belong in the snapshot.
type ConfigBuilder struct {
	templates []models.InboundTemplate
}

func NewConfigBuilder(templates []models.InboundTemplate) *ConfigBuilder {
	return &ConfigBuilder{templates: templates}
}

// Build attaches every user assigned to a template's tag as a client of
// that inbound. Clients are ordered by email so identical input produces an
// identical document.
func (b *ConfigBuilder) Build(users []models.User) *models.StartupConfig {
	inbounds := make([]models.InboundConfig, 0, len(b.templates))
	for _, template := range b.templates {
		clients := make([]models.ClientConfig, 0)
		for i := range users {
			user := &users[i]
			tags, ok := user.Inbounds[template.Protocol]
			if !ok || !containsTag(tags, template.Tag) {
				continue
			}
			settings, ok := user.Proxies[template.Protocol]
			if !ok {
				continue
			}
			clients = append(clients, clientConfig(user.Username, settings))
		}
		sort.Slice(clients, func(i, j int) bool { return clients[i].Email < clients[j].Email })
		inbounds = append(inbounds, models.InboundConfig{
			InboundTemplate: template,
			Clients:         clients,
		})
	}
	return &models.StartupConfig{Inbounds: inbounds}
}

func clientConfig(email string, settings models.ProxySettings) models.ClientConfig {
	client := models.ClientConfig{Email: email}
	switch s := settings.(type) {
	case models.VMessSettings:
		client.ID = s.ID
	case models.VLESSSettings:
		client.ID = s.ID
		client.Flow = s.Flow
	case models.TrojanSettings:
		client.Password = s.Password
		client.Flow = s.Flow
	case models.ShadowsocksSettings:
		client.Password = s.Password
		client.Method = s.Method
	}
	return client
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
