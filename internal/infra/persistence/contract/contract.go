// Package contract holds the behavioural test suite every scene store backend
// must pass.
package contract

import (
	"context"
	"errors"
	"testing"

	"squadcore/pkg/domain"
)

// Factory opens a fresh, empty store for a single subtest.
type Factory func(t *testing.T) domain.PersistentStore

// Run executes the shared persistence contract against stores built by open.
func Run(t *testing.T, open Factory) {
	t.Helper()
	t.Run("create and read", func(t *testing.T) { testCreateAndRead(t, open(t)) })
	t.Run("partial update", func(t *testing.T) { testUpdate(t, open(t)) })
	t.Run("rollback on error", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, open(t)) })
	t.Run("view", func(t *testing.T) { testView(t, open(t)) })
}

// Seed places an actor and one token per id of the given kind.
func Seed(t *testing.T, store domain.PersistentStore, kind domain.ActorKind, ids ...string) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		actorID := "actor-" + string(kind)
		if _, ok := tx.FindActor(actorID); !ok {
			if _, err := tx.CreateActor(domain.Actor{Base: domain.Base{ID: actorID}, Name: string(kind), Kind: kind}); err != nil {
				return err
			}
		}
		for _, id := range ids {
			tok := domain.Token{
				Base:    domain.Base{ID: id},
				Name:    id,
				ActorID: actorID,
				System:  domain.ActorSystem{Stamina: domain.Stamina{Max: 10, Value: 10, PerMember: 10}},
			}
			if _, err := tx.CreateToken(tok); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed %s tokens: %v", kind, err)
	}
}

func testCreateAndRead(t *testing.T, store domain.PersistentStore) {
	Seed(t, store, domain.KindMinion, "m2", "m1")
	tokens := store.ListTokens()
	if len(tokens) != 2 || tokens[0].ID != "m1" || tokens[1].ID != "m2" {
		t.Fatalf("expected tokens ordered by id, got %+v", tokens)
	}
	tok, ok := store.GetToken("m1")
	if !ok {
		t.Fatalf("expected token m1")
	}
	if tok.Kind != domain.KindMinion {
		t.Fatalf("expected kind inherited from actor, got %q", tok.Kind)
	}
	if tok.CreatedAt.IsZero() {
		t.Fatalf("expected created timestamp")
	}
	if _, ok := store.GetActor("actor-minion"); !ok {
		t.Fatalf("expected actor")
	}
	if len(store.ListActors()) != 1 {
		t.Fatalf("expected one actor")
	}
}

func testUpdate(t *testing.T, store domain.PersistentStore) {
	Seed(t, store, domain.KindMinion, "m1")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateToken("m1", func(tok *domain.Token) error {
			domain.TokenPatch{SquadID: domain.Ptr("s1"), Stamina: &domain.StaminaPatch{Value: domain.Ptr(4)}}.Apply(tok)
			tok.Kind = domain.KindHero
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	tok, _ := store.GetToken("m1")
	if tok.System.SquadID != "s1" || tok.System.Stamina.Value != 4 || tok.System.Stamina.Max != 10 {
		t.Fatalf("unexpected token after update: %+v", tok.System)
	}
	if tok.Kind != domain.KindMinion {
		t.Fatalf("kind must not change on update")
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateToken("ghost", func(*domain.Token) error { return nil })
		return err
	})
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) || nf.ID != "ghost" {
		t.Fatalf("expected not found for ghost, got %v", err)
	}
}

func testRollback(t *testing.T, store domain.PersistentStore) {
	Seed(t, store, domain.KindEnemy, "e1")
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpdateToken("e1", func(tok *domain.Token) error {
			tok.Name = "changed"
			return nil
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if tok, _ := store.GetToken("e1"); tok.Name != "e1" {
		t.Fatalf("expected rollback, got name %q", tok.Name)
	}
}

func testDelete(t *testing.T, store domain.PersistentStore) {
	Seed(t, store, domain.KindMinion, "m1")
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteActor("actor-minion")
	}); err == nil {
		t.Fatalf("expected referenced actor delete to fail")
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteToken("m1")
	}); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if _, ok := store.GetToken("m1"); ok {
		t.Fatalf("expected token removed")
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteActor("actor-minion")
	}); err != nil {
		t.Fatalf("delete actor: %v", err)
	}
}

func testView(t *testing.T, store domain.PersistentStore) {
	Seed(t, store, domain.KindMinion, "m1", "m2")
	err := store.View(context.Background(), func(v domain.TransactionView) error {
		if len(v.ListTokens()) != 2 {
			t.Fatalf("expected two tokens in view")
		}
		if _, ok := v.FindToken("m2"); !ok {
			t.Fatalf("expected m2 in view")
		}
		if _, ok := v.FindActor("actor-minion"); !ok {
			t.Fatalf("expected actor in view")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
