// Package domain defines the persistent scene entities, value types, and
// rule evaluation primitives used by squadcore.
package domain

import (
	"slices"
	"time"
)

// EntityType identifies the type of record stored in the scene.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityActor identifies an actor prototype record.
	EntityActor EntityType = "actor"
	// EntityToken identifies a unit instance placed on the scene.
	EntityToken EntityType = "token"
	// EntitySquad identifies a squad; squads are never stored, only referenced in errors and violations.
	EntitySquad EntityType = "squad"
)

// ActorKind enumerates the unit categories known to the rules engine.
type ActorKind string

// Canonical unit kinds.
const (
	KindHero   ActorKind = "hero"
	KindEnemy  ActorKind = "enemy"
	KindMinion ActorKind = "minion"
	KindObject ActorKind = "object"
)

// Valid reports whether k is one of the canonical unit kinds.
func (k ActorKind) Valid() bool {
	switch k {
	case KindHero, KindEnemy, KindMinion, KindObject:
		return true
	}
	return false
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stamina is the hit-point pool of a unit. For minions Max is the pool of the
// whole squad and PerMember the contribution of a single member.
type Stamina struct {
	Max       int `json:"max"`
	Min       int `json:"min"`
	Value     int `json:"value"`
	Temporary int `json:"temporary"`
	PerMember int `json:"per_member"`
}

// CaptainEffects holds effects a captain has applied to its squad.
type CaptainEffects struct {
	TemporaryStamina int `json:"temporary_stamina"`
}

// CaptainBonuses are computed elsewhere and only carried along.
type CaptainBonuses struct {
	Speed               int `json:"speed"`
	MeleeDistanceBonus  int `json:"melee_distance_bonus"`
	RangedDistanceBonus int `json:"ranged_distance_bonus"`
	StrikeDamage        int `json:"strike_damage"`
	StrikeEdge          int `json:"strike_edge"`
}

// ActorSystem is the rules-engine state attached to actors and tokens.
//
// SquadID has two meanings: for minions it is the squad the unit belongs to,
// for enemies it is the squad the unit commands as captain.
type ActorSystem struct {
	Level                 int            `json:"level"`
	Stamina               Stamina        `json:"stamina"`
	SquadID               string         `json:"squad_id,omitempty"`
	CaptainID             string         `json:"captain_id,omitempty"`
	SquadMemberIDs        []string       `json:"squad_member_ids,omitempty"`
	AppliedCaptainEffects CaptainEffects `json:"applied_captain_effects"`
	DerivedCaptainBonuses CaptainBonuses `json:"derived_captain_bonuses"`
}

// Clone returns a deep copy of the system state.
func (s ActorSystem) Clone() ActorSystem {
	s.SquadMemberIDs = slices.Clone(s.SquadMemberIDs)
	return s
}

// Echelon derives the tier of a unit from its level.
func (s ActorSystem) Echelon() int {
	switch {
	case s.Level == 10:
		return 4
	case s.Level >= 7:
		return 3
	case s.Level >= 4:
		return 2
	default:
		return 1
	}
}

// WindedThreshold is half the maximum stamina, rounded down.
func (s ActorSystem) WindedThreshold() int {
	return floorDiv(s.Stamina.Max, 2)
}

// Actor is the prototype a token is placed from.
type Actor struct {
	Base
	Name   string      `json:"name"`
	Kind   ActorKind   `json:"kind"`
	System ActorSystem `json:"system"`
}

// Clone returns a deep copy of the actor.
func (a Actor) Clone() Actor {
	a.System = a.System.Clone()
	return a
}

// Token is a unit instance placed on the scene.
type Token struct {
	Base
	Name    string      `json:"name"`
	ActorID string      `json:"actor_id"`
	Kind    ActorKind   `json:"kind"`
	X       int         `json:"x"`
	Y       int         `json:"y"`
	System  ActorSystem `json:"system"`
}

// Clone returns a deep copy of the token.
func (t Token) Clone() Token {
	t.System = t.System.Clone()
	return t
}

// DeadThreshold is the stamina at or below which the unit is dead. Heroes
// survive down to the negative of their winded threshold.
func (t Token) DeadThreshold() int {
	if t.Kind == KindHero {
		return -t.System.WindedThreshold()
	}
	return 0
}

// DyingThreshold is the stamina at or below which a living unit is dying.
func (t Token) DyingThreshold() int { return 0 }

// IsDead reports whether stamina has dropped to the dead threshold.
func (t Token) IsDead() bool {
	return t.System.Stamina.Value <= t.DeadThreshold()
}

// IsDying reports whether the unit is alive but at or below the dying threshold.
func (t Token) IsDying() bool {
	return !t.IsDead() && t.System.Stamina.Value <= t.DyingThreshold()
}

// IsWinded reports whether the unit is alive but at or below half stamina.
func (t Token) IsWinded() bool {
	return !t.IsDead() && t.System.Stamina.Value <= t.System.WindedThreshold()
}

// StaminaBar describes how the host should draw a token's stamina bar.
type StaminaBar struct {
	Max       int  `json:"max"`
	Min       int  `json:"min"`
	Value     int  `json:"value"`
	Segments  int  `json:"segments"`
	ShowTicks bool `json:"show_ticks"`
}

// StaminaBar returns the bar configuration. Minion bars are split into one
// segment per squad member.
func (t Token) StaminaBar() StaminaBar {
	bar := StaminaBar{
		Max:   t.System.Stamina.Max,
		Min:   t.DeadThreshold(),
		Value: t.System.Stamina.Value,
	}
	if t.Kind == KindMinion {
		bar.Segments = max(len(t.System.SquadMemberIDs), 1)
		bar.ShowTicks = true
		return bar
	}
	bar.Segments = 3
	if t.DeadThreshold() == t.DyingThreshold() {
		bar.Segments = 2
	}
	return bar
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
