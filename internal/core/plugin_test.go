package core

import (
	"context"
	"errors"
	"testing"
)

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all_tokens" }

func (blockAllRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, tok := range ChangedTokens(changes) {
		res.Violations = append(res.Violations, Violation{Rule: "block_all_tokens", Severity: SeverityBlock, Entity: EntityToken, EntityID: tok.ID})
	}
	return res, nil
}

type testPlugin struct {
	name string
	err  error
}

func (p testPlugin) Name() string    { return p.name }
func (p testPlugin) Version() string { return "1.0.0" }
func (p testPlugin) Register(r *PluginRegistry) error {
	if p.err != nil {
		return p.err
	}
	r.RegisterRule(blockAllRule{})
	r.RegisterRule(nil)
	r.RegisterSchema("token", map[string]any{"type": "object"})
	r.RegisterSchema("", map[string]any{"ignored": true})
	return nil
}

func TestInstallPluginWiresRules(t *testing.T) {
	s := newScene(t)
	meta, err := s.svc.InstallPlugin(testPlugin{name: "blocker"})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if len(meta.Rules) != 1 || meta.Rules[0] != "block_all_tokens" || len(meta.Schemas) != 1 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	_, _, err = s.svc.PlaceToken(context.Background(), s.minion.ID, Placement{})
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected plugin rule to block placement, got %v", err)
	}
}

func TestInstallPluginErrors(t *testing.T) {
	s := newScene(t)
	if _, err := s.svc.InstallPlugin(nil); err == nil {
		t.Fatalf("expected nil plugin to fail")
	}
	boom := errors.New("boom")
	if _, err := s.svc.InstallPlugin(testPlugin{name: "broken", err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected registration error, got %v", err)
	}
	if _, err := s.svc.InstallPlugin(testPlugin{name: "b"}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := s.svc.InstallPlugin(testPlugin{name: "b"}); err == nil {
		t.Fatalf("expected duplicate plugin to fail")
	}
	if _, err := s.svc.InstallPlugin(testPlugin{name: "a"}); err != nil {
		t.Fatalf("install: %v", err)
	}
	plugins := s.svc.RegisteredPlugins()
	if len(plugins) != 2 || plugins[0].Name != "a" || plugins[1].Name != "b" {
		t.Fatalf("unexpected plugins %+v", plugins)
	}
}

func TestPluginRegistryCopies(t *testing.T) {
	r := NewPluginRegistry()
	schema := map[string]any{"type": "object"}
	r.RegisterSchema("token", schema)
	schema["type"] = "mutated"
	if got := r.Schemas()["token"]["type"]; got != "object" {
		t.Fatalf("expected registry to copy schema, got %v", got)
	}
}
