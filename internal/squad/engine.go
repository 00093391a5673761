// Package squad keeps groups of minion tokens consistent as one collective
// unit. A squad is never stored: it is recomputed from the squad fields that
// every member token carries and written back to all members on each change.
package squad

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"squadcore/internal/logging"
	"squadcore/pkg/domain"
)

// IDGenerator returns a fresh squad id.
type IDGenerator func() string

// UUIDGenerator returns random v4 UUIDs.
func UUIDGenerator() string { return uuid.NewString() }

// Engine hands out squads and reacts to host events.
type Engine struct {
	acc      *Accessor
	newID    IDGenerator
	renderer Renderer
	notifier Notifier
	logger   logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator overrides squad id generation.
func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithRenderer sets the render sink.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) {
		if r != nil {
			e.renderer = r
		}
	}
}

// WithNotifier sets the notice sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrNoop(l)
	}
}

// NewEngine builds an engine over the given scene store.
func NewEngine(store domain.PersistentStore, opts ...Option) *Engine {
	e := &Engine{
		acc:      NewAccessor(store),
		newID:    UUIDGenerator,
		renderer: nopRenderer{},
		notifier: nopNotifier{},
		logger:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Accessor exposes the token resolver used by the engine.
func (e *Engine) Accessor() *Accessor { return e.acc }

// Notify forwards a notice to the configured sink.
func (e *Engine) Notify(ctx context.Context, n Notice) { e.notifier.Notify(ctx, n) }

// GetSquad returns the squad of a minion. A minion without a squad id gets a
// freshly generated one, and a minion missing from its own member list is
// recruited into it, so the result always contains the minion itself.
func (e *Engine) GetSquad(ctx context.Context, memberID string) (*Squad, error) {
	m, err := e.acc.Minion(ctx, memberID)
	if err != nil {
		return nil, err
	}
	sq := newSquad(e, m.ID(), m.System())
	generated := false
	if sq.data.SquadID == "" {
		sq.data.SquadID = e.newID()
		generated = true
		e.logger.Debug("generated squad id", "component", "squad", "token_id", memberID, "squad_id", sq.data.SquadID)
	}
	if !slices.Contains(sq.data.SquadMemberIDs, memberID) {
		if err := sq.AddMember(ctx, memberID); err != nil {
			return nil, err
		}
		return sq, nil
	}
	if generated {
		if err := sq.Propagate(ctx); err != nil {
			return nil, err
		}
	}
	return sq, nil
}

// squadOf returns a view of the squad squadID built from a minion carrying
// it, preferring one that lists itself as a member. It never recruits, so
// scanning for a squad leaves the shared pool untouched.
func (e *Engine) squadOf(ctx context.Context, squadID string, exclude string) (*Squad, bool, error) {
	if squadID == "" {
		return nil, false, nil
	}
	tokens, err := e.acc.List(ctx)
	if err != nil {
		return nil, false, err
	}
	var fallback *domain.Token
	for i, tok := range tokens {
		if tok.Kind != domain.KindMinion || tok.ID == exclude || tok.System.SquadID != squadID {
			continue
		}
		if slices.Contains(tok.System.SquadMemberIDs, tok.ID) {
			return newSquad(e, tok.ID, tok.System.Clone()), true, nil
		}
		if fallback == nil {
			fallback = &tokens[i]
		}
	}
	if fallback == nil {
		return nil, false, nil
	}
	return newSquad(e, fallback.ID, fallback.System.Clone()), true, nil
}
