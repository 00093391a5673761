package domain

import "context"

// Transaction exposes the scene operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateActor(Actor) (Actor, error)
	UpdateActor(id string, mutator func(*Actor) error) (Actor, error)
	DeleteActor(id string) error
	CreateToken(Token) (Token, error)
	UpdateToken(id string, mutator func(*Token) error) (Token, error)
	DeleteToken(id string) error
	FindActor(id string) (Actor, bool)
	FindToken(id string) (Token, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListActors() []Actor
	ListTokens() []Token
	FindActor(id string) (Actor, bool)
	FindToken(id string) (Token, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetActor(id string) (Actor, bool)
	ListActors() []Actor
	GetToken(id string) (Token, bool)
	ListTokens() []Token
}
