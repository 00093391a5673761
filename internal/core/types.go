package core

import "squadcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	ActorKind          = domain.ActorKind
	Severity           = domain.Severity
	Base               = domain.Base
	Actor              = domain.Actor
	Token              = domain.Token
	ActorSystem        = domain.ActorSystem
	Stamina            = domain.Stamina
	TokenPatch         = domain.TokenPatch
	StaminaPatch       = domain.StaminaPatch
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityActor = domain.EntityActor
	EntityToken = domain.EntityToken
	EntitySquad = domain.EntitySquad
)

const (
	KindHero   = domain.KindHero
	KindEnemy  = domain.KindEnemy
	KindMinion = domain.KindMinion
	KindObject = domain.KindObject
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// ChangedTokens returns the post-change state of created or updated tokens.
func ChangedTokens(changes []Change) []Token { return domain.ChangedTokens(changes) }
