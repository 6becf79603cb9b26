package config

import (
	"context"

	"db-relay/internal/engine"
	"db-relay/internal/model"
)

// Catalog serves a loaded Config to the orchestrator.
type Catalog struct {
	integrations []model.Integration
	byID         map[string]int
	connections  map[string]model.Connection
	mappings     map[string][]model.Mapping
}

var _ engine.Store = (*Catalog)(nil)

func NewCatalog(cfg *Config) *Catalog {
	c := &Catalog{
		byID:        make(map[string]int, len(cfg.Integrations)),
		connections: make(map[string]model.Connection, len(cfg.Connections)),
		mappings:    make(map[string][]model.Mapping, len(cfg.Integrations)),
	}
	for _, conn := range cfg.Connections {
		c.connections[conn.ID] = conn
	}
	for _, it := range cfg.Integrations {
		c.byID[it.ID] = len(c.integrations)
		c.integrations = append(c.integrations, it.Integration)
		c.mappings[it.ID] = it.Mappings
	}
	return c
}

func (c *Catalog) Integration(_ context.Context, id string) (model.Integration, error) {
	i, ok := c.byID[id]
	if !ok {
		return model.Integration{}, model.ErrNotFound
	}
	return c.integrations[i], nil
}

// IntegrationsByGroup returns the group's members in declaration order.
func (c *Catalog) IntegrationsByGroup(_ context.Context, group string) ([]model.Integration, error) {
	var out []model.Integration
	for _, it := range c.integrations {
		if it.GroupName == group {
			out = append(out, it)
		}
	}
	return out, nil
}

func (c *Catalog) Connection(_ context.Context, id string) (model.Connection, error) {
	conn, ok := c.connections[id]
	if !ok {
		return model.Connection{}, model.ErrNotFound
	}
	return conn, nil
}

func (c *Catalog) Mappings(_ context.Context, integrationID string) ([]model.Mapping, error) {
	if _, ok := c.byID[integrationID]; !ok {
		return nil, model.ErrNotFound
	}
	return c.mappings[integrationID], nil
}

// Groups lists group names in first-seen order.
func (c *Catalog) Groups() []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range c.integrations {
		if it.GroupName == "" || seen[it.GroupName] {
			continue
		}
		seen[it.GroupName] = true
		out = append(out, it.GroupName)
	}
	return out
}
