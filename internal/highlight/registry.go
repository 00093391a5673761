// Package highlight keeps the per-session overlay that marks the squad of a
// hovered token.
package highlight

import (
	"maps"
	"sync"

	"squadcore/pkg/domain"
)

// SymbolKind selects the overlay drawn on a token.
type SymbolKind string

// Overlay kinds.
const (
	SymbolCaptain SymbolKind = "captain"
	SymbolMember  SymbolKind = "member"
)

// Symbol is the overlay attached to one token.
type Symbol struct {
	Kind SymbolKind `json:"kind"`
}

// Observer is told about every change of the registry with a copy of the
// current marks.
type Observer func(marks map[string]Symbol)

// Registry maps token ids to overlay symbols. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	marks    map[string]Symbol
	observer Observer
}

// NewRegistry returns an empty registry. observer may be nil.
func NewRegistry(observer Observer) *Registry {
	return &Registry{marks: make(map[string]Symbol), observer: observer}
}

// Set marks a single token.
func (r *Registry) Set(tokenID string, sym Symbol) {
	r.mu.Lock()
	r.marks[tokenID] = sym
	snapshot := maps.Clone(r.marks)
	r.mu.Unlock()
	r.notify(snapshot)
}

// Clear removes every mark.
func (r *Registry) Clear() {
	r.mu.Lock()
	clear(r.marks)
	r.mu.Unlock()
	r.notify(map[string]Symbol{})
}

// Get returns the mark of a token.
func (r *Registry) Get(tokenID string) (Symbol, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sym, ok := r.marks[tokenID]
	return sym, ok
}

// Marks returns a copy of all marks.
func (r *Registry) Marks() map[string]Symbol {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.marks)
}

// HighlightSquad replaces the current marks with the squad of focus: every
// minion in that squad becomes a member, every enemy commanding it a
// captain. A token without a squad leaves the registry empty.
func (r *Registry) HighlightSquad(scene []domain.Token, focus domain.Token) map[string]Symbol {
	next := make(map[string]Symbol)
	if squadID := focus.System.SquadID; squadID != "" && (focus.Kind == domain.KindMinion || focus.Kind == domain.KindEnemy) {
		for _, tok := range scene {
			if tok.System.SquadID != squadID {
				continue
			}
			switch tok.Kind {
			case domain.KindMinion:
				next[tok.ID] = Symbol{Kind: SymbolMember}
			case domain.KindEnemy:
				next[tok.ID] = Symbol{Kind: SymbolCaptain}
			}
		}
	}
	r.mu.Lock()
	r.marks = next
	snapshot := maps.Clone(next)
	r.mu.Unlock()
	r.notify(snapshot)
	return snapshot
}

func (r *Registry) notify(marks map[string]Symbol) {
	if r.observer != nil {
		r.observer(marks)
	}
}
