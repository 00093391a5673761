package squad

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"squadcore/pkg/domain"
)

// Squad is a transient view over one context member. It must not be kept
// across operations: every call works from the context record read when the
// squad was obtained plus the changes made through this value.
type Squad struct {
	e         *Engine
	contextID string
	data      domain.ActorSystem
}

func newSquad(e *Engine, contextID string, data domain.ActorSystem) *Squad {
	return &Squad{e: e, contextID: contextID, data: data}
}

// RemoveCaptainOptions tunes RemoveCaptain.
type RemoveCaptainOptions struct {
	// UpdateSquad propagates the captain-less state to every member.
	UpdateSquad bool
}

// ID returns the squad id.
func (s *Squad) ID() string { return s.data.SquadID }

// ContextID returns the id of the member the squad was obtained through.
func (s *Squad) ContextID() string { return s.contextID }

// CaptainID returns the captain id or "".
func (s *Squad) CaptainID() string { return s.data.CaptainID }

// MemberIDs returns the write-time member list.
func (s *Squad) MemberIDs() []string { return slices.Clone(s.data.SquadMemberIDs) }

// Stamina returns the squad stamina as tracked by the context record.
func (s *Squad) Stamina() domain.Stamina { return s.data.Stamina }

// Members resolves the member list. Ids that no longer name a minion are
// skipped.
func (s *Squad) Members(ctx context.Context) ([]Member, error) {
	out := make([]Member, 0, len(s.data.SquadMemberIDs))
	for _, id := range s.data.SquadMemberIDs {
		m, err := s.e.acc.Minion(ctx, id)
		if err != nil {
			if unresolvable(err) {
				continue
			}
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Captain resolves the captain. ok is false when there is none or it no
// longer resolves to an enemy.
func (s *Squad) Captain(ctx context.Context) (Captain, bool, error) {
	if s.data.CaptainID == "" {
		return Captain{}, false, nil
	}
	c, err := s.e.acc.Captain(ctx, s.data.CaptainID)
	if err != nil {
		if unresolvable(err) {
			return Captain{}, false, nil
		}
		return Captain{}, false, err
	}
	return c, true, nil
}

// AddCaptain makes the enemy candidateID the captain of this squad. A
// candidate still commanding another squad is released from it first.
func (s *Squad) AddCaptain(ctx context.Context, candidateID string) error {
	candidate, err := s.e.acc.Captain(ctx, candidateID)
	if err != nil {
		return err
	}
	if s.data.CaptainID != candidate.ID() {
		if err := s.RemoveCaptain(ctx, RemoveCaptainOptions{UpdateSquad: false}); err != nil {
			return err
		}
	}
	former := candidate.System().SquadID
	if former != "" && former != s.ID() {
		s.e.logger.Warn("captain already commands another squad, detaching", "component", "squad", "captain_id", candidate.ID(), "former_squad_id", former, "squad_id", s.ID())
		other, ok, err := s.e.squadOf(ctx, former, "")
		if err != nil {
			return err
		}
		if ok && other.CaptainID() == candidate.ID() {
			if err := other.RemoveCaptain(ctx, RemoveCaptainOptions{UpdateSquad: true}); err != nil {
				return err
			}
		}
	}
	s.data.CaptainID = candidate.ID()
	if err := candidate.Update(ctx, domain.TokenPatch{SquadID: domain.Ptr(s.ID())}); err != nil {
		return err
	}
	return s.Propagate(ctx)
}

// RemoveCaptain detaches the current captain, if any. The former captain's
// squad id is cleared only while it still points at this squad.
func (s *Squad) RemoveCaptain(ctx context.Context, opts RemoveCaptainOptions) error {
	if s.data.CaptainID == "" {
		return nil
	}
	prev, ok, err := s.Captain(ctx)
	if err != nil {
		return err
	}
	if ok {
		if sid := prev.System().SquadID; sid == s.ID() || sid == "" {
			if err := prev.Update(ctx, domain.TokenPatch{SquadID: domain.Ptr("")}); err != nil {
				return err
			}
		}
	}
	s.data.CaptainID = ""
	if !opts.UpdateSquad {
		return nil
	}
	return s.Propagate(ctx)
}

// AddMember recruits the minion id. The recruit leaves any other squad first
// and its full per-member stamina is added to the shared pool.
func (s *Squad) AddMember(ctx context.Context, id string) error {
	if slices.Contains(s.data.SquadMemberIDs, id) {
		return nil
	}
	recruit, err := s.e.acc.Minion(ctx, id)
	if err != nil {
		return err
	}
	if prior := recruit.System().SquadID; prior != "" && prior != s.ID() {
		other, err := s.e.GetSquad(ctx, id)
		if err != nil {
			return err
		}
		if err := other.RemoveMember(ctx, id); err != nil {
			return err
		}
	}
	s.data.SquadMemberIDs = append(s.data.SquadMemberIDs, id)
	if len(s.data.SquadMemberIDs) > 1 {
		s.data.Stamina.Value += s.data.Stamina.PerMember
	}
	return s.Propagate(ctx)
}

// RemoveMember drops the minion id from the squad. The shared pool is only
// clamped to the smaller maximum, never reduced proportionally. A removed
// minion still on the scene becomes squadless, and a squad left without
// members releases its captain.
func (s *Squad) RemoveMember(ctx context.Context, id string) error {
	if !slices.Contains(s.data.SquadMemberIDs, id) {
		return nil
	}
	s.data.SquadMemberIDs = slices.DeleteFunc(slices.Clone(s.data.SquadMemberIDs), func(v string) bool { return v == id })

	m, err := s.e.acc.Minion(ctx, id)
	switch {
	case err == nil:
		if m.System().SquadID == s.ID() {
			if err := m.Update(ctx, detachPatch(m.System())); err != nil {
				return err
			}
		}
	case !unresolvable(err):
		return err
	}

	if len(s.data.SquadMemberIDs) == 0 {
		if err := s.RemoveCaptain(ctx, RemoveCaptainOptions{UpdateSquad: false}); err != nil {
			return err
		}
	}
	return s.Propagate(ctx)
}

func detachPatch(sys domain.ActorSystem) domain.TokenPatch {
	per := sys.Stamina.PerMember
	return domain.TokenPatch{
		SquadID:        domain.Ptr(""),
		CaptainID:      domain.Ptr(""),
		SquadMemberIDs: &[]string{},
		Stamina: &domain.StaminaPatch{
			Max:   domain.Ptr(per),
			Value: domain.Ptr(max(min(sys.Stamina.Value, per), 0)),
		},
	}
}

// ModifyStaminaValue adds delta to the shared pool, clamped to [0, max].
func (s *Squad) ModifyStaminaValue(ctx context.Context, delta int) error {
	return s.SetStaminaValue(ctx, s.data.Stamina.Value+delta)
}

// SetStaminaValue sets the shared pool, clamped to [0, max]. Nothing is
// written when the clamped value equals the current one.
func (s *Squad) SetStaminaValue(ctx context.Context, value int) error {
	clamped := max(min(value, s.data.Stamina.Max), 0)
	if clamped == s.data.Stamina.Value {
		return nil
	}
	s.data.Stamina.Value = clamped
	return s.Propagate(ctx)
}

// Propagate recomputes the squad-wide fields from the resolvable members and
// writes them to every member concurrently. All writes settle before it
// returns; failures are logged, not retried, and the first one is returned.
// Members are then asked to re-render without waiting.
func (s *Squad) Propagate(ctx context.Context) error {
	members, err := s.Members(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID())
	}
	maxStamina := s.data.Stamina.PerMember * max(len(members), 1)
	value := min(s.data.Stamina.Value, maxStamina)
	s.data.SquadMemberIDs = ids
	s.data.Stamina.Max = maxStamina
	s.data.Stamina.Value = value

	s.e.logger.Debug("propagating squad", "component", "squad", "squad_id", s.ID(), "captain_id", s.data.CaptainID, "members", len(ids), "max", maxStamina, "value", value)

	var g errgroup.Group
	for _, m := range members {
		patch := domain.TokenPatch{
			CaptainID:      domain.Ptr(s.data.CaptainID),
			SquadID:        domain.Ptr(s.data.SquadID),
			SquadMemberIDs: domain.Ptr(slices.Clone(ids)),
			Stamina: &domain.StaminaPatch{
				Max:   domain.Ptr(maxStamina),
				Value: domain.Ptr(value),
			},
		}
		g.Go(func() error {
			if err := m.Update(ctx, patch); err != nil {
				s.e.logger.Warn("squad member update failed", "component", "squad", "squad_id", s.ID(), "token_id", m.ID(), "error", err)
				return err
			}
			return nil
		})
	}
	werr := g.Wait()

	renderCtx := context.WithoutCancel(ctx)
	for _, id := range ids {
		go s.e.renderer.Render(renderCtx, id)
	}
	return werr
}
