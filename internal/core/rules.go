package core

import (
	"context"
	"fmt"

	"squadcore/pkg/domain"
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewStaminaBoundsRule())
	return engine
}

// NewStaminaBoundsRule blocks writes that leave a token with an impossible
// stamina block: negative pools, or a value above the maximum.
func NewStaminaBoundsRule() Rule {
	return staminaBoundsRule{}
}

type staminaBoundsRule struct{}

func (staminaBoundsRule) Name() string { return "stamina_bounds" }

func (staminaBoundsRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, tok := range ChangedTokens(changes) {
		st := tok.System.Stamina
		var msg string
		switch {
		case st.Max < 0:
			msg = fmt.Sprintf("token %s has negative max stamina %d", tok.ID, st.Max)
		case st.PerMember < 0:
			msg = fmt.Sprintf("token %s has negative per-member stamina %d", tok.ID, st.PerMember)
		case st.Temporary < 0:
			msg = fmt.Sprintf("token %s has negative temporary stamina %d", tok.ID, st.Temporary)
		case st.Value > st.Max:
			msg = fmt.Sprintf("token %s stamina %d exceeds max %d", tok.ID, st.Value, st.Max)
		default:
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     "stamina_bounds",
			Severity: SeverityBlock,
			Message:  msg,
			Entity:   EntityToken,
			EntityID: tok.ID,
		})
	}
	return res, nil
}
