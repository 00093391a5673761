package domain

import "slices"

// StaminaPatch is a partial update of a Stamina block. Nil fields are left untouched.
type StaminaPatch struct {
	Max       *int `json:"max,omitempty"`
	Min       *int `json:"min,omitempty"`
	Value     *int `json:"value,omitempty"`
	Temporary *int `json:"temporary,omitempty"`
	PerMember *int `json:"per_member,omitempty"`
}

// Empty reports whether no stamina field is set.
func (p *StaminaPatch) Empty() bool {
	if p == nil {
		return true
	}
	return p.Max == nil && p.Min == nil && p.Value == nil && p.Temporary == nil && p.PerMember == nil
}

// TokenPatch is a partial token update as proposed by the host or written by
// squad propagation. Applying a patch never touches unset fields.
type TokenPatch struct {
	Name                    *string       `json:"name,omitempty"`
	X                       *int          `json:"x,omitempty"`
	Y                       *int          `json:"y,omitempty"`
	SquadID                 *string       `json:"squad_id,omitempty"`
	CaptainID               *string       `json:"captain_id,omitempty"`
	SquadMemberIDs          *[]string     `json:"squad_member_ids,omitempty"`
	Stamina                 *StaminaPatch `json:"stamina,omitempty"`
	AppliedTemporaryStamina *int          `json:"applied_temporary_stamina,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (p TokenPatch) Empty() bool {
	return p.Name == nil && p.X == nil && p.Y == nil &&
		p.SquadID == nil && p.CaptainID == nil && p.SquadMemberIDs == nil &&
		p.Stamina.Empty() && p.AppliedTemporaryStamina == nil
}

// IsSquadUpdate reports whether the patch carries a squad id. Squad-propagated
// writes always do; direct edits by the host never need to.
func (p TokenPatch) IsSquadUpdate() bool {
	return p.SquadID != nil
}

// Clone returns a deep copy of the patch.
func (p TokenPatch) Clone() TokenPatch {
	out := p
	out.Name = clonePtr(p.Name)
	out.X = clonePtr(p.X)
	out.Y = clonePtr(p.Y)
	out.SquadID = clonePtr(p.SquadID)
	out.CaptainID = clonePtr(p.CaptainID)
	out.AppliedTemporaryStamina = clonePtr(p.AppliedTemporaryStamina)
	if p.SquadMemberIDs != nil {
		ids := slices.Clone(*p.SquadMemberIDs)
		out.SquadMemberIDs = &ids
	}
	if p.Stamina != nil {
		out.Stamina = &StaminaPatch{
			Max:       clonePtr(p.Stamina.Max),
			Min:       clonePtr(p.Stamina.Min),
			Value:     clonePtr(p.Stamina.Value),
			Temporary: clonePtr(p.Stamina.Temporary),
			PerMember: clonePtr(p.Stamina.PerMember),
		}
	}
	return out
}

// Apply writes every set field of the patch onto t.
func (p TokenPatch) Apply(t *Token) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.X != nil {
		t.X = *p.X
	}
	if p.Y != nil {
		t.Y = *p.Y
	}
	sys := &t.System
	if p.SquadID != nil {
		sys.SquadID = *p.SquadID
	}
	if p.CaptainID != nil {
		sys.CaptainID = *p.CaptainID
	}
	if p.SquadMemberIDs != nil {
		sys.SquadMemberIDs = slices.Clone(*p.SquadMemberIDs)
	}
	if p.AppliedTemporaryStamina != nil {
		sys.AppliedCaptainEffects.TemporaryStamina = *p.AppliedTemporaryStamina
	}
	if s := p.Stamina; s != nil {
		if s.Max != nil {
			sys.Stamina.Max = *s.Max
		}
		if s.Min != nil {
			sys.Stamina.Min = *s.Min
		}
		if s.Value != nil {
			sys.Stamina.Value = *s.Value
		}
		if s.Temporary != nil {
			sys.Stamina.Temporary = *s.Temporary
		}
		if s.PerMember != nil {
			sys.Stamina.PerMember = *s.PerMember
		}
	}
}

// Ptr returns a pointer to v. Used to build patches inline.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
