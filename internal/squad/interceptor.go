package squad

import (
	"context"
	"math"

	"squadcore/pkg/domain"
)

// InterceptResult describes what happened to a proposed token update.
type InterceptResult struct {
	// Patch is what remains to be applied by the caller; nil means nothing.
	Patch *domain.TokenPatch
	// Redirected is set when the stamina change went through the squad.
	Redirected bool
	// Casualties is the number of member-equivalents lost.
	Casualties int
}

// Casualties counts how many whole member-equivalents of stamina were lost
// going from oldValue to newValue. Negative results mean stamina was gained.
// A non-positive perMember yields zero.
func Casualties(oldValue, newValue, perMember int) int {
	if perMember <= 0 {
		return 0
	}
	per := float64(perMember)
	before := math.Floor(float64(oldValue-1)/per + 1)
	after := math.Floor(float64(newValue-1)/per + 1)
	return int(before - after)
}

// Intercept guards minion stamina against direct edits. A change to
// stamina.value that does not come from squad propagation is stripped from
// the patch and applied to the whole squad instead; the user is told how
// many minion tokens to remove. Everything else passes through untouched.
func (e *Engine) Intercept(ctx context.Context, tokenID string, patch domain.TokenPatch) (InterceptResult, error) {
	pass := InterceptResult{Patch: &patch}
	if patch.IsSquadUpdate() || patch.Stamina == nil || patch.Stamina.Value == nil {
		return pass, nil
	}
	tok, ok, err := e.acc.Resolve(ctx, tokenID)
	if err != nil {
		return InterceptResult{}, err
	}
	if !ok || tok.Kind != domain.KindMinion {
		return pass, nil
	}

	newValue := *patch.Stamina.Value
	rest := patch.Clone()
	rest.Stamina.Value = nil
	if rest.Stamina.Empty() {
		rest.Stamina = nil
	}
	res := InterceptResult{Redirected: true}
	if !rest.Empty() {
		res.Patch = &rest
	}

	oldValue := tok.System.Stamina.Value
	perMember := tok.System.Stamina.PerMember
	if perMember <= 0 {
		e.logger.Warn("minion has no per-member stamina, skipping casualty count", "component", "squad", "token_id", tokenID, "per_member", perMember)
	}
	res.Casualties = Casualties(oldValue, newValue, perMember)
	e.logger.Debug("intercepted stamina edit", "component", "squad", "token_id", tokenID, "old", oldValue, "new", newValue, "casualties", res.Casualties)
	if res.Casualties > 0 {
		e.notifier.Notify(ctx, CasualtyNotice(tokenID, res.Casualties))
	}

	sq, err := e.GetSquad(ctx, tokenID)
	if err != nil {
		return InterceptResult{}, err
	}
	if err := sq.SetStaminaValue(ctx, newValue); err != nil {
		return res, err
	}
	return res, nil
}
