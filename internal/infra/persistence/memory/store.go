// Package memory holds the scene in process memory. It backs tests and
// ephemeral sessions, and is the working set the durable drivers embed.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"squadcore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

type (
	// Actor is the stored actor prototype.
	Actor = domain.Actor
	// Token is the stored placed token.
	Token = domain.Token
)

// Snapshot is a detached copy of every actor and token, keyed by id.
type Snapshot struct {
	Actors map[string]Actor `json:"actors"`
	Tokens map[string]Token `json:"tokens"`
}

func emptySnapshot() Snapshot {
	return Snapshot{Actors: map[string]Actor{}, Tokens: map[string]Token{}}
}

// deepCopy clones every record so the copy shares no slices with s.
func (s Snapshot) deepCopy() Snapshot {
	out := Snapshot{
		Actors: make(map[string]Actor, len(s.Actors)),
		Tokens: make(map[string]Token, len(s.Tokens)),
	}
	for id, a := range s.Actors {
		out.Actors[id] = a.Clone()
	}
	for id, t := range s.Tokens {
		out.Tokens[id] = t.Clone()
	}
	return out
}

// normalize repairs snapshots written by older builds: ids are taken from
// the map keys, kindless tokens inherit their actor's kind and repeated
// member ids are dropped.
func normalize(snapshot Snapshot) Snapshot {
	if snapshot.Actors == nil {
		snapshot.Actors = map[string]Actor{}
	}
	if snapshot.Tokens == nil {
		snapshot.Tokens = map[string]Token{}
	}
	for id, a := range snapshot.Actors {
		a.ID = id
		snapshot.Actors[id] = a
	}
	for id, t := range snapshot.Tokens {
		t.ID = id
		if a, ok := snapshot.Actors[t.ActorID]; ok && t.Kind == "" {
			t.Kind = a.Kind
		}
		t.System.SquadMemberIDs = uniqueIDs(t.System.SquadMemberIDs)
		snapshot.Tokens[id] = t
	}
	return snapshot
}

// uniqueIDs keeps the first occurrence of every id.
func uniqueIDs(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	out := ids[:0:0]
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

type cloner[T any] interface{ Clone() T }

// byKey clones the values of m ordered by key, which is always the record id.
func byKey[T cloner[T]](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k].Clone())
	}
	return out
}

// Store is a transactional scene store. Transactions run on a private copy
// of the scene which replaces the committed one on success.
type Store struct {
	mu     sync.RWMutex
	scene  Snapshot
	engine *domain.RulesEngine
	clock  func() time.Time
}

// NewStore returns an empty store. A nil engine evaluates no rules.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		scene:  emptySnapshot(),
		engine: engine,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// newID returns 32 random hex characters.
func newID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("memory: read random id: %v", err))
	}
	return hex.EncodeToString(buf)
}

// ExportState returns a copy of the committed scene.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scene.deepCopy()
}

// ImportState replaces the committed scene without evaluating rules.
func (s *Store) ImportState(snapshot Snapshot) {
	next := normalize(snapshot.deepCopy())
	s.mu.Lock()
	s.scene = next
	s.mu.Unlock()
}

// RulesEngine returns the engine transactions are checked against.
func (s *Store) RulesEngine() *domain.RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc replaces the clock used for CreatedAt and UpdatedAt.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.clock = fn
	s.mu.Unlock()
}

// RunInTransaction runs fn on a copy of the scene. The copy is committed when
// fn returns nil and the rules report nothing blocking; otherwise the scene
// is left untouched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{scene: s.scene.deepCopy(), at: s.clock()}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}
	res, err := s.engine.Evaluate(ctx, sceneView{&tx.scene}, tx.changes)
	if err != nil {
		return domain.Result{}, err
	}
	if res.HasBlocking() {
		return res, domain.RuleViolationError{Result: res}
	}
	s.scene = tx.scene
	return res, nil
}

// View runs fn against a copy of the committed scene.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	scene := s.ExportState()
	return fn(sceneView{&scene})
}

// GetActor returns a committed actor.
func (s *Store) GetActor(id string) (Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sceneView{&s.scene}.FindActor(id)
}

// ListActors returns the committed actors ordered by id.
func (s *Store) ListActors() []Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return byKey(s.scene.Actors)
}

// GetToken returns a committed token.
func (s *Store) GetToken(id string) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sceneView{&s.scene}.FindToken(id)
}

// ListTokens returns the committed tokens ordered by id.
func (s *Store) ListTokens() []Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return byKey(s.scene.Tokens)
}

type sceneView struct{ scene *Snapshot }

func (v sceneView) ListActors() []Actor { return byKey(v.scene.Actors) }

func (v sceneView) ListTokens() []Token { return byKey(v.scene.Tokens) }

func (v sceneView) FindActor(id string) (Actor, bool) {
	a, ok := v.scene.Actors[id]
	if !ok {
		return Actor{}, false
	}
	return a.Clone(), true
}

func (v sceneView) FindToken(id string) (Token, bool) {
	t, ok := v.scene.Tokens[id]
	if !ok {
		return Token{}, false
	}
	return t.Clone(), true
}

// transaction mutates its own scene copy and logs every change for the
// rules engine.
type transaction struct {
	scene   Snapshot
	changes []domain.Change
	at      time.Time
}

func (tx *transaction) log(entity domain.EntityType, action domain.Action, before, after any) {
	tx.changes = append(tx.changes, domain.Change{Entity: entity, Action: action, Before: before, After: after})
}

func (tx *transaction) Snapshot() domain.TransactionView { return sceneView{&tx.scene} }

func (tx *transaction) FindActor(id string) (Actor, bool) { return sceneView{&tx.scene}.FindActor(id) }

func (tx *transaction) FindToken(id string) (Token, bool) { return sceneView{&tx.scene}.FindToken(id) }

func (tx *transaction) CreateActor(a Actor) (Actor, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	if _, taken := tx.scene.Actors[a.ID]; taken {
		return Actor{}, fmt.Errorf("actor %q already exists", a.ID)
	}
	if !a.Kind.Valid() {
		return Actor{}, fmt.Errorf("actor %q: unknown kind %q", a.ID, a.Kind)
	}
	a.CreatedAt, a.UpdatedAt = tx.at, tx.at
	tx.scene.Actors[a.ID] = a.Clone()
	tx.log(domain.EntityActor, domain.ActionCreate, nil, a.Clone())
	return a, nil
}

func (tx *transaction) UpdateActor(id string, mutate func(*Actor) error) (Actor, error) {
	prev, ok := tx.scene.Actors[id]
	if !ok {
		return Actor{}, domain.ErrNotFound{Entity: domain.EntityActor, ID: id}
	}
	next := prev.Clone()
	if err := mutate(&next); err != nil {
		return Actor{}, err
	}
	next.ID, next.CreatedAt, next.UpdatedAt = id, prev.CreatedAt, tx.at
	tx.scene.Actors[id] = next.Clone()
	tx.log(domain.EntityActor, domain.ActionUpdate, prev.Clone(), next.Clone())
	return next, nil
}

// DeleteActor refuses while a placed token still references the actor.
func (tx *transaction) DeleteActor(id string) error {
	prev, ok := tx.scene.Actors[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityActor, ID: id}
	}
	for _, t := range tx.scene.Tokens {
		if t.ActorID == id {
			return fmt.Errorf("actor %q still referenced by token %q", id, t.ID)
		}
	}
	delete(tx.scene.Actors, id)
	tx.log(domain.EntityActor, domain.ActionDelete, prev, nil)
	return nil
}

// CreateToken places a token. A token placed from an actor takes the actor's
// kind unless it names one.
func (tx *transaction) CreateToken(t Token) (Token, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	if _, taken := tx.scene.Tokens[t.ID]; taken {
		return Token{}, fmt.Errorf("token %q already exists", t.ID)
	}
	if t.ActorID != "" {
		a, ok := tx.scene.Actors[t.ActorID]
		if !ok {
			return Token{}, domain.ErrNotFound{Entity: domain.EntityActor, ID: t.ActorID}
		}
		if t.Kind == "" {
			t.Kind = a.Kind
		}
	}
	if !t.Kind.Valid() {
		return Token{}, fmt.Errorf("token %q: unknown kind %q", t.ID, t.Kind)
	}
	t = t.Clone()
	t.System.SquadMemberIDs = uniqueIDs(t.System.SquadMemberIDs)
	t.CreatedAt, t.UpdatedAt = tx.at, tx.at
	tx.scene.Tokens[t.ID] = t.Clone()
	tx.log(domain.EntityToken, domain.ActionCreate, nil, t.Clone())
	return t, nil
}

// UpdateToken applies mutate to a copy of the token. The id, kind and actor
// reference cannot be changed through it.
func (tx *transaction) UpdateToken(id string, mutate func(*Token) error) (Token, error) {
	prev, ok := tx.scene.Tokens[id]
	if !ok {
		return Token{}, domain.ErrNotFound{Entity: domain.EntityToken, ID: id}
	}
	next := prev.Clone()
	if err := mutate(&next); err != nil {
		return Token{}, err
	}
	next.ID, next.Kind, next.ActorID = id, prev.Kind, prev.ActorID
	next.CreatedAt, next.UpdatedAt = prev.CreatedAt, tx.at
	tx.scene.Tokens[id] = next.Clone()
	tx.log(domain.EntityToken, domain.ActionUpdate, prev.Clone(), next.Clone())
	return next, nil
}

func (tx *transaction) DeleteToken(id string) error {
	prev, ok := tx.scene.Tokens[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityToken, ID: id}
	}
	delete(tx.scene.Tokens, id)
	tx.log(domain.EntityToken, domain.ActionDelete, prev, nil)
	return nil
}
