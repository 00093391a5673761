package squad

import (
	"context"
	"errors"
	"fmt"

	"squadcore/pkg/domain"
)

// Accessor resolves token ids into typed records and persists partial
// updates. Every Update runs in its own store transaction, so concurrent
// calls for different tokens never block on each other beyond the store's
// own serialization.
type Accessor struct {
	store domain.PersistentStore
}

// NewAccessor wraps a scene store.
func NewAccessor(store domain.PersistentStore) *Accessor {
	return &Accessor{store: store}
}

// Resolve returns the committed token for id.
func (a *Accessor) Resolve(ctx context.Context, id string) (domain.Token, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Token{}, false, err
	}
	if id == "" {
		return domain.Token{}, false, nil
	}
	tok, ok := a.store.GetToken(id)
	return tok, ok, nil
}

func (a *Accessor) resolveKind(ctx context.Context, id string, want domain.ActorKind) (domain.Token, error) {
	tok, ok, err := a.Resolve(ctx, id)
	if err != nil {
		return domain.Token{}, err
	}
	if !ok {
		return domain.Token{}, domain.ErrNotFound{Entity: domain.EntityToken, ID: id}
	}
	if tok.Kind != want {
		return domain.Token{}, domain.TypeMismatchError{ID: id, Want: want, Got: tok.Kind}
	}
	return tok, nil
}

// Minion resolves id as a minion member record.
func (a *Accessor) Minion(ctx context.Context, id string) (Member, error) {
	tok, err := a.resolveKind(ctx, id, domain.KindMinion)
	if err != nil {
		return Member{}, err
	}
	return Member{record{token: tok, acc: a}}, nil
}

// Captain resolves id as an enemy record able to lead a squad.
func (a *Accessor) Captain(ctx context.Context, id string) (Captain, error) {
	tok, err := a.resolveKind(ctx, id, domain.KindEnemy)
	if err != nil {
		return Captain{}, err
	}
	return Captain{record{token: tok, acc: a}}, nil
}

// List returns every token currently on the scene.
func (a *Accessor) List(ctx context.Context) ([]domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.store.ListTokens(), nil
}

// Update persists a partial patch to one token. Unset fields are untouched.
func (a *Accessor) Update(ctx context.Context, id string, patch domain.TokenPatch) (domain.Token, error) {
	var updated domain.Token
	_, err := a.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateToken(id, func(tok *domain.Token) error {
			patch.Apply(tok)
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Token{}, fmt.Errorf("update token %s: %w", id, err)
	}
	return updated, nil
}

// Create places a new token on the scene.
func (a *Accessor) Create(ctx context.Context, tok domain.Token) (domain.Token, error) {
	var created domain.Token
	_, err := a.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateToken(tok)
		return err
	})
	if err != nil {
		return domain.Token{}, fmt.Errorf("create token: %w", err)
	}
	return created, nil
}

// unresolvable reports errors that squad membership resolution filters silently.
func unresolvable(err error) bool {
	return domain.IsNotFound(err) || errors.Is(err, domain.ErrTypeMismatch)
}

type record struct {
	token domain.Token
	acc   *Accessor
}

// ID returns the token id.
func (r record) ID() string { return r.token.ID }

// Token returns a copy of the token as read at resolution time.
func (r record) Token() domain.Token { return r.token.Clone() }

// System returns a copy of the rules state as read at resolution time.
func (r record) System() domain.ActorSystem { return r.token.System.Clone() }

// Update persists patch and refreshes the local copy.
func (r *record) Update(ctx context.Context, patch domain.TokenPatch) error {
	updated, err := r.acc.Update(ctx, r.token.ID, patch)
	if err != nil {
		return err
	}
	r.token = updated
	return nil
}

// Member is a minion record.
type Member struct{ record }

// Captain is an enemy record that may command a squad.
type Captain struct{ record }
