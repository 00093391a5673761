// Package core exposes the squadcore service facade: the host entry points
// wrapped with tracing, metrics, audit and logging around the squad engine.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"squadcore/internal/highlight"
	"squadcore/internal/infra/persistence/memory"
	"squadcore/internal/logging"
	"squadcore/internal/squad"
)

// DefaultGridSize is the clone offset used when none is configured.
const DefaultGridSize = 100

// Service wires the scene store, squad engine and highlight registry
// behind the operations a host calls.
type Service struct {
	store      PersistentStore
	engine     *RulesEngine
	squads     *squad.Engine
	highlights *highlight.Registry

	pluginMu sync.Mutex
	plugins  map[string]PluginMetadata

	logger   logging.Logger
	clock    Clock
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
	gridSize int

	renderer    squad.Renderer
	notifier    squad.Notifier
	newID       squad.IDGenerator
	onHighlight highlight.Observer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used by the service and the squad engine.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNoop(l) }
}

// WithClock overrides the clock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.audit = r
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(r MetricsRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithRenderer sets the render sink handed to the squad engine.
func WithRenderer(r squad.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithNotifier sets the notice sink handed to the squad engine.
func WithNotifier(n squad.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithIDGenerator overrides squad id generation.
func WithIDGenerator(gen squad.IDGenerator) Option {
	return func(s *Service) { s.newID = gen }
}

// WithHighlightObserver is told about every highlight change.
func WithHighlightObserver(o highlight.Observer) Option {
	return func(s *Service) { s.onHighlight = o }
}

// WithGridSize sets the clone offset in scene units.
func WithGridSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.gridSize = size
		}
	}
}

type engineProvider interface {
	RulesEngine() *RulesEngine
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		plugins:  make(map[string]PluginMetadata),
		logger:   logging.Noop(),
		clock:    systemClock{},
		audit:    noopAudit{},
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		gridSize: DefaultGridSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if p, ok := store.(engineProvider); ok {
		s.engine = p.RulesEngine()
	}
	s.squads = squad.NewEngine(store,
		squad.WithLogger(s.logger),
		squad.WithRenderer(s.renderer),
		squad.WithNotifier(s.notifier),
		squad.WithIDGenerator(s.newID),
	)
	s.highlights = highlight.NewRegistry(s.onHighlight)
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying scene store.
func (s *Service) Store() PersistentStore { return s.store }

// Squads returns the squad engine.
func (s *Service) Squads() *squad.Engine { return s.squads }

// Highlights returns the hover overlay registry.
func (s *Service) Highlights() *highlight.Registry { return s.highlights }

// GridSize returns the clone offset.
func (s *Service) GridSize() int { return s.gridSize }

// run wraps one operation with tracing, metrics, audit and logging. fn
// returns the id of the entity it acted on.
func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) (string, error)) error {
	started := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	entityID, err := fn(ctx)
	duration := s.clock.Now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "component", "core", "operation", operation, "entity_id", entityID, "error", err)
		s.recordAuditError(ctx, operation, entityID, duration, err)
		return err
	}
	s.logger.Debug("operation completed", "component", "core", "operation", operation, "entity_id", entityID, "duration", duration)
	s.recordAuditSuccess(ctx, operation, entityID, duration)
	return nil
}

// SquadView is a read-only copy of the squad-wide fields.
type SquadView struct {
	ID        string   `json:"id"`
	CaptainID string   `json:"captain_id"`
	MemberIDs []string `json:"member_ids"`
	Stamina   Stamina  `json:"stamina"`
}

func viewOf(sq *squad.Squad) SquadView {
	return SquadView{
		ID:        sq.ID(),
		CaptainID: sq.CaptainID(),
		MemberIDs: sq.MemberIDs(),
		Stamina:   sq.Stamina(),
	}
}

// ErrNoSelection is returned when a captain assignment names no token.
var ErrNoSelection = errors.New("no token selected")

// CreateActor stores a prototype. Stamina starts full, and a minion's
// per-member stamina is its own maximum.
func (s *Service) CreateActor(ctx context.Context, actor Actor) (Actor, Result, error) {
	var created Actor
	var res Result
	err := s.run(ctx, "create_actor", func(ctx context.Context) (string, error) {
		actor.System.Stamina.Value = actor.System.Stamina.Max
		if actor.Kind == KindMinion {
			actor.System.Stamina.PerMember = actor.System.Stamina.Max
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateActor(actor)
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

// ListActors returns every actor prototype.
func (s *Service) ListActors(ctx context.Context) ([]Actor, error) {
	var out []Actor
	err := s.run(ctx, "list_actors", func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out = s.store.ListActors()
		return "", nil
	})
	return out, err
}

// Placement positions a new token.
type Placement struct {
	Name string `json:"name,omitempty"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// PlaceToken places a token from an actor. The token copies the actor's
// rules state with full stamina and no squad association.
func (s *Service) PlaceToken(ctx context.Context, actorID string, at Placement) (Token, Result, error) {
	var placed Token
	var res Result
	err := s.run(ctx, "place_token", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			actor, ok := tx.FindActor(actorID)
			if !ok {
				return fmt.Errorf("place token: %w", notFound(EntityActor, actorID))
			}
			sys := actor.System.Clone()
			sys.Stamina.Value = sys.Stamina.Max
			sys.SquadID, sys.CaptainID, sys.SquadMemberIDs = "", "", nil
			name := at.Name
			if name == "" {
				name = actor.Name
			}
			var err error
			placed, err = tx.CreateToken(Token{
				Name:    name,
				ActorID: actor.ID,
				Kind:    actor.Kind,
				X:       at.X,
				Y:       at.Y,
				System:  sys,
			})
			return err
		})
		return placed.ID, err
	})
	return placed, res, err
}

// GetToken returns one token.
func (s *Service) GetToken(ctx context.Context, id string) (Token, error) {
	var tok Token
	err := s.run(ctx, "get_token", func(ctx context.Context) (string, error) {
		t, ok, err := s.squads.Accessor().Resolve(ctx, id)
		if err != nil {
			return id, err
		}
		if !ok {
			return id, notFound(EntityToken, id)
		}
		tok = t
		return id, nil
	})
	return tok, err
}

// ListTokens returns every token on the scene.
func (s *Service) ListTokens(ctx context.Context) ([]Token, error) {
	var out []Token
	err := s.run(ctx, "list_tokens", func(ctx context.Context) (string, error) {
		var err error
		out, err = s.squads.Accessor().List(ctx)
		return "", err
	})
	return out, err
}

// UpdateOutcome reports how a host update was handled.
type UpdateOutcome struct {
	Token      Token `json:"token"`
	Redirected bool  `json:"redirected"`
	Casualties int   `json:"casualties"`
}

// UpdateToken applies a host update. Direct stamina edits on minions are
// redirected to their squad; the rest of the patch is applied as given.
func (s *Service) UpdateToken(ctx context.Context, id string, patch TokenPatch) (UpdateOutcome, error) {
	var out UpdateOutcome
	err := s.run(ctx, "update_token", func(ctx context.Context) (string, error) {
		res, err := s.squads.Intercept(ctx, id, patch)
		if err != nil {
			return id, err
		}
		out.Redirected = res.Redirected
		out.Casualties = res.Casualties
		if res.Patch != nil && !res.Patch.Empty() {
			if _, err := s.squads.Accessor().Update(ctx, id, *res.Patch); err != nil {
				return id, err
			}
		}
		tok, ok, err := s.squads.Accessor().Resolve(ctx, id)
		if err != nil {
			return id, err
		}
		if !ok {
			return id, notFound(EntityToken, id)
		}
		out.Token = tok
		return id, nil
	})
	return out, err
}

// RemoveToken deletes a token and repairs the squad it belonged to or
// commanded.
func (s *Service) RemoveToken(ctx context.Context, id string) error {
	return s.run(ctx, "remove_token", func(ctx context.Context) (string, error) {
		var removed Token
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			tok, ok := tx.FindToken(id)
			if !ok {
				return notFound(EntityToken, id)
			}
			removed = tok
			return tx.DeleteToken(id)
		})
		if err != nil {
			return id, err
		}
		if _, marked := s.highlights.Get(id); marked {
			s.highlights.Clear()
		}
		return id, s.squads.HandleTokenRemoved(ctx, removed)
	})
}

func (s *Service) squadOp(ctx context.Context, operation, memberID string, fn func(context.Context, *squad.Squad) error) (SquadView, error) {
	var view SquadView
	err := s.run(ctx, operation, func(ctx context.Context) (string, error) {
		sq, err := s.squads.GetSquad(ctx, memberID)
		if err != nil {
			return memberID, err
		}
		if fn != nil {
			if err := fn(ctx, sq); err != nil {
				return sq.ID(), err
			}
		}
		view = viewOf(sq)
		return sq.ID(), nil
	})
	return view, err
}

// GetSquad returns the squad of a minion, creating it on first access.
func (s *Service) GetSquad(ctx context.Context, memberID string) (SquadView, error) {
	return s.squadOp(ctx, "get_squad", memberID, nil)
}

// AddMember recruits recruitID into the squad of memberID.
func (s *Service) AddMember(ctx context.Context, memberID, recruitID string) (SquadView, error) {
	return s.squadOp(ctx, "add_member", memberID, func(ctx context.Context, sq *squad.Squad) error {
		return sq.AddMember(ctx, recruitID)
	})
}

// RemoveMember drops targetID from the squad of memberID.
func (s *Service) RemoveMember(ctx context.Context, memberID, targetID string) (SquadView, error) {
	return s.squadOp(ctx, "remove_member", memberID, func(ctx context.Context, sq *squad.Squad) error {
		return sq.RemoveMember(ctx, targetID)
	})
}

// AssignCaptain makes captainID the captain of the squad of minionID. The
// user is told when nothing or something other than an enemy was selected.
func (s *Service) AssignCaptain(ctx context.Context, minionID, captainID string) (SquadView, error) {
	return s.squadOp(ctx, "assign_captain", minionID, func(ctx context.Context, sq *squad.Squad) error {
		if captainID == "" {
			s.squads.Notify(ctx, squad.Notice{Level: squad.NoticeInfo, Message: "No token selected.", TokenID: minionID})
			return ErrNoSelection
		}
		if _, err := s.squads.Accessor().Captain(ctx, captainID); err != nil {
			if domainUnresolvable(err) {
				s.squads.Notify(ctx, squad.Notice{Level: squad.NoticeError, Message: "Selected token is not a valid enemy token.", TokenID: captainID})
			}
			return fmt.Errorf("assign captain: %w", err)
		}
		return sq.AddCaptain(ctx, captainID)
	})
}

// RemoveCaptain detaches the captain from the squad of memberID.
func (s *Service) RemoveCaptain(ctx context.Context, memberID string) (SquadView, error) {
	return s.squadOp(ctx, "remove_captain", memberID, func(ctx context.Context, sq *squad.Squad) error {
		return sq.RemoveCaptain(ctx, squad.RemoveCaptainOptions{UpdateSquad: true})
	})
}

// ModifySquadStamina adds delta to the shared stamina.
func (s *Service) ModifySquadStamina(ctx context.Context, memberID string, delta int) (SquadView, error) {
	return s.squadOp(ctx, "modify_squad_stamina", memberID, func(ctx context.Context, sq *squad.Squad) error {
		return sq.ModifyStaminaValue(ctx, delta)
	})
}

// SetSquadStamina sets the shared stamina.
func (s *Service) SetSquadStamina(ctx context.Context, memberID string, value int) (SquadView, error) {
	return s.squadOp(ctx, "set_squad_stamina", memberID, func(ctx context.Context, sq *squad.Squad) error {
		return sq.SetStaminaValue(ctx, value)
	})
}

// CloneMinion places a copy of a minion next to it and adds it to the squad.
func (s *Service) CloneMinion(ctx context.Context, memberID string) (Token, error) {
	var clone Token
	err := s.run(ctx, "clone_minion", func(ctx context.Context) (string, error) {
		var err error
		clone, err = s.squads.CloneMinion(ctx, memberID, s.gridSize)
		return clone.ID, err
	})
	return clone, err
}

// ApplyCaptainEffects spreads the temporary stamina bonus of memberID to its squad.
func (s *Service) ApplyCaptainEffects(ctx context.Context, memberID string) error {
	return s.run(ctx, "apply_captain_effects", func(ctx context.Context) (string, error) {
		return memberID, s.squads.ApplyCaptainEffects(ctx, memberID)
	})
}

// HoverToken drives the highlight overlay. Hovering marks the squad of the
// token; leaving it clears every mark.
func (s *Service) HoverToken(ctx context.Context, tokenID string, hovered bool) (map[string]highlight.Symbol, error) {
	var marks map[string]highlight.Symbol
	err := s.run(ctx, "hover_token", func(ctx context.Context) (string, error) {
		if !hovered {
			s.highlights.Clear()
			marks = map[string]highlight.Symbol{}
			return tokenID, nil
		}
		acc := s.squads.Accessor()
		focus, ok, err := acc.Resolve(ctx, tokenID)
		if err != nil {
			return tokenID, err
		}
		if !ok {
			return tokenID, notFound(EntityToken, tokenID)
		}
		scene, err := acc.List(ctx)
		if err != nil {
			return tokenID, err
		}
		marks = s.highlights.HighlightSquad(scene, focus)
		return tokenID, nil
	})
	return marks, err
}

// VerifySquads reports every squad whose member records disagree.
func (s *Service) VerifySquads(ctx context.Context) ([]Violation, error) {
	var out []Violation
	err := s.run(ctx, "verify_squads", func(ctx context.Context) (string, error) {
		tokens, err := s.squads.Accessor().List(ctx)
		if err != nil {
			return "", err
		}
		out = squad.CheckInvariants(tokens)
		if len(out) > 0 {
			s.logger.Warn("squad invariants violated", "component", "core", "violations", len(out))
		}
		return "", nil
	})
	return out, err
}
