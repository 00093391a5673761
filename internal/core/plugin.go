package core

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Plugin is a game system: it contributes the rules that guard squad
// records and the JSON Schema of the token data it reads.
type Plugin interface {
	Name() string
	Version() string
	Register(registry *PluginRegistry) error
}

// PluginRegistry collects what a plugin contributes while it registers.
type PluginRegistry struct {
	rules   []Rule
	schemas map[string]map[string]any
}

// NewPluginRegistry returns an empty registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{schemas: map[string]map[string]any{}}
}

// RegisterRule queues rule for the store's rules engine. Nil is ignored.
func (r *PluginRegistry) RegisterRule(rule Rule) {
	if rule != nil {
		r.rules = append(r.rules, rule)
	}
}

// RegisterSchema records the schema fragment for entity ("token", "actor").
// A later call for the same entity wins.
func (r *PluginRegistry) RegisterSchema(entity string, schema map[string]any) {
	if entity != "" && schema != nil {
		r.schemas[entity] = maps.Clone(schema)
	}
}

// Rules returns the queued rules in registration order.
func (r *PluginRegistry) Rules() []Rule { return slices.Clone(r.rules) }

// Schemas returns a copy of the schema fragments by entity.
func (r *PluginRegistry) Schemas() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.schemas))
	for entity, schema := range r.schemas {
		out[entity] = maps.Clone(schema)
	}
	return out
}

// PluginMetadata is what /plugins reports for an installed game system.
type PluginMetadata struct {
	Name    string                    `json:"name"`
	Version string                    `json:"version"`
	Rules   []string                  `json:"rules"`
	Schemas map[string]map[string]any `json:"schemas,omitempty"`
}

// InstallPlugin runs plugin's registration and adds its rules to the store's
// engine. A name can be installed once.
func (s *Service) InstallPlugin(plugin Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, errors.New("install plugin: nil plugin")
	}
	if s.engine == nil {
		return PluginMetadata{}, fmt.Errorf("install plugin %s: store %T has no rules engine", plugin.Name(), s.store)
	}
	s.pluginMu.Lock()
	defer s.pluginMu.Unlock()
	name := plugin.Name()
	if _, dup := s.plugins[name]; dup {
		return PluginMetadata{}, fmt.Errorf("install plugin %s: already installed", name)
	}

	reg := NewPluginRegistry()
	if err := plugin.Register(reg); err != nil {
		return PluginMetadata{}, fmt.Errorf("install plugin %s: %w", name, err)
	}
	meta := PluginMetadata{Name: name, Version: plugin.Version(), Schemas: reg.Schemas()}
	for _, rule := range reg.Rules() {
		s.engine.Register(rule)
		meta.Rules = append(meta.Rules, rule.Name())
	}
	s.plugins[name] = meta
	s.logger.Info("plugin installed", "component", "core", "plugin", name, "version", meta.Version, "rules", len(meta.Rules))
	return meta, nil
}

// RegisteredPlugins lists installed plugins by name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	s.pluginMu.Lock()
	defer s.pluginMu.Unlock()
	out := slices.Collect(maps.Values(s.plugins))
	slices.SortFunc(out, func(a, b PluginMetadata) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
