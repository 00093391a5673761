package drawsteel

import (
	"context"
	"errors"
	"testing"

	"squadcore/internal/core"
)

func TestPluginRegistration(t *testing.T) {
	registry := core.NewPluginRegistry()
	if err := New().Register(registry); err != nil {
		t.Fatalf("register plugin: %v", err)
	}
	schema, ok := registry.Schemas()["token"]
	if !ok {
		t.Fatalf("expected token schema to be registered")
	}
	if schema["$id"].(string) != "squadcore:drawsteel:token" {
		t.Fatalf("unexpected schema id: %v", schema["$id"])
	}
	if got := len(registry.Rules()); got != 2 {
		t.Fatalf("expected two rules, got %d", got)
	}
}

func newService(t *testing.T) (*core.Service, core.Token, core.Token, core.Token) {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	if _, err := svc.InstallPlugin(New()); err != nil {
		t.Fatalf("install plugin: %v", err)
	}
	ctx := context.Background()
	place := func(kind core.ActorKind) core.Token {
		actor, _, err := svc.CreateActor(ctx, core.Actor{Name: string(kind), Kind: kind, System: core.ActorSystem{Stamina: core.Stamina{Max: 10}}})
		if err != nil {
			t.Fatalf("create actor: %v", err)
		}
		tok, _, err := svc.PlaceToken(ctx, actor.ID, core.Placement{})
		if err != nil {
			t.Fatalf("place token: %v", err)
		}
		return tok
	}
	return svc, place(core.KindMinion), place(core.KindEnemy), place(core.KindHero)
}

func TestSquadAffiliationBlocksHeroes(t *testing.T) {
	svc, minion, _, hero := newService(t)
	ctx := context.Background()

	_, err := svc.UpdateToken(ctx, hero.ID, core.TokenPatch{SquadID: ptr("s1")})
	var violation core.RuleViolationError
	if !errors.As(err, &violation) || violation.Result.Violations[0].Rule != affiliationRule {
		t.Fatalf("expected hero squad assignment to be blocked, got %v", err)
	}
	if _, err := svc.AddMember(ctx, minion.ID, hero.ID); !errors.Is(err, core.ErrTypeMismatch) {
		t.Fatalf("expected hero recruitment to fail, got %v", err)
	}
}

func TestSquadAffiliationAllowsCaptains(t *testing.T) {
	svc, minion, enemy, _ := newService(t)
	view, err := svc.AssignCaptain(context.Background(), minion.ID, enemy.ID)
	if err != nil {
		t.Fatalf("assign captain: %v", err)
	}
	if view.CaptainID != enemy.ID {
		t.Fatalf("expected captain %s, got %+v", enemy.ID, view)
	}

	_, err = svc.UpdateToken(context.Background(), enemy.ID, core.TokenPatch{CaptainID: ptr(enemy.ID)})
	var violation core.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected enemy membership to be blocked, got %v", err)
	}
}

func TestCaptainReferenceWarns(t *testing.T) {
	svc, minion, _, hero := newService(t)
	res, err := svc.Store().RunInTransaction(context.Background(), func(tx core.Transaction) error {
		_, err := tx.UpdateToken(minion.ID, func(tok *core.Token) error {
			tok.System.CaptainID = hero.ID
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("warnings must not block: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Rule != captainRefRule || res.Violations[0].Severity != core.SeverityWarn {
		t.Fatalf("expected one captain warning, got %+v", res.Violations)
	}
}

func ptr[T any](v T) *T { return &v }
