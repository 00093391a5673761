// Package drawsteel contributes the token schema and affiliation rules of the
// Draw Steel game system.
package drawsteel

import (
	"context"
	"fmt"

	"squadcore/internal/core"
)

const (
	affiliationRule = "squad_affiliation"
	captainRefRule  = "captain_reference"
)

// Plugin implements the Draw Steel rules module.
type Plugin struct{}

// New constructs a Draw Steel plugin instance.
func New() Plugin {
	return Plugin{}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "drawsteel" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.3.0" }

// Register wires the token schema and affiliation rules.
func (Plugin) Register(registry *core.PluginRegistry) error {
	registry.RegisterSchema("token", map[string]any{
		"$id":  "squadcore:drawsteel:token",
		"type": "object",
		"properties": map[string]any{
			"level": map[string]any{
				"type":    "integer",
				"minimum": 1,
				"maximum": 10,
			},
			"squad_id": map[string]any{
				"type":        "string",
				"description": "Squad a minion belongs to, or the squad an enemy commands",
			},
			"captain_id": map[string]any{
				"type":        "string",
				"description": "Enemy token commanding the minion's squad",
			},
			"squad_member_ids": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"stamina": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"max":        map[string]any{"type": "integer", "minimum": 0},
					"value":      map[string]any{"type": "integer"},
					"temporary":  map[string]any{"type": "integer", "minimum": 0},
					"per_member": map[string]any{"type": "integer", "minimum": 0},
				},
			},
		},
	})

	registry.RegisterRule(squadAffiliationRule{})
	registry.RegisterRule(captainReferenceRule{})
	return nil
}

// squadAffiliationRule keeps squad fields on the kinds that may carry them:
// only minions join squads and name captains, only enemies command squads.
type squadAffiliationRule struct{}

func (squadAffiliationRule) Name() string { return affiliationRule }

func (squadAffiliationRule) Evaluate(_ context.Context, _ core.RuleView, changes []core.Change) (core.Result, error) {
	var result core.Result
	for _, tok := range core.ChangedTokens(changes) {
		sys := tok.System
		var msg string
		switch tok.Kind {
		case core.KindMinion:
			continue
		case core.KindEnemy:
			if sys.CaptainID != "" || len(sys.SquadMemberIDs) > 0 {
				msg = fmt.Sprintf("enemy %s cannot be a squad member", tok.ID)
			}
		default:
			if sys.SquadID != "" || sys.CaptainID != "" || len(sys.SquadMemberIDs) > 0 {
				msg = fmt.Sprintf("%s %s cannot join or command a squad", tok.Kind, tok.ID)
			}
		}
		if msg == "" {
			continue
		}
		result.Violations = append(result.Violations, core.Violation{
			Rule:     affiliationRule,
			Severity: core.SeverityBlock,
			Message:  msg,
			Entity:   core.EntityToken,
			EntityID: tok.ID,
		})
	}
	return result, nil
}

// captainReferenceRule warns when a minion names a captain that is not an enemy.
type captainReferenceRule struct{}

func (captainReferenceRule) Name() string { return captainRefRule }

func (captainReferenceRule) Evaluate(_ context.Context, view core.RuleView, changes []core.Change) (core.Result, error) {
	var result core.Result
	for _, tok := range core.ChangedTokens(changes) {
		if tok.Kind != core.KindMinion || tok.System.CaptainID == "" {
			continue
		}
		captain, ok := view.FindToken(tok.System.CaptainID)
		if !ok || captain.Kind == core.KindEnemy {
			continue
		}
		result.Violations = append(result.Violations, core.Violation{
			Rule:     captainRefRule,
			Severity: core.SeverityWarn,
			Message:  fmt.Sprintf("minion %s names %s %s as captain", tok.ID, captain.Kind, captain.ID),
			Entity:   core.EntityToken,
			EntityID: tok.ID,
		})
	}
	return result, nil
}
