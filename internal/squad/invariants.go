package squad

import (
	"fmt"
	"slices"
	"sort"

	"squadcore/pkg/domain"
)

// InvariantRule is the rule name reported by CheckInvariants.
const InvariantRule = "squad_invariants"

// CheckInvariants inspects a scene at rest and reports every squad whose
// member records disagree. It never mutates anything.
func CheckInvariants(tokens []domain.Token) []domain.Violation {
	byID := make(map[string]domain.Token, len(tokens))
	squads := make(map[string][]domain.Token)
	captains := make(map[string][]domain.Token)
	for _, tok := range tokens {
		byID[tok.ID] = tok
		switch {
		case tok.Kind == domain.KindMinion && tok.System.SquadID != "":
			squads[tok.System.SquadID] = append(squads[tok.System.SquadID], tok)
		case tok.Kind == domain.KindEnemy && tok.System.SquadID != "":
			captains[tok.System.SquadID] = append(captains[tok.System.SquadID], tok)
		}
	}

	var out []domain.Violation
	report := func(squadID, format string, args ...any) {
		out = append(out, domain.Violation{
			Rule:     InvariantRule,
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf(format, args...),
			Entity:   domain.EntitySquad,
			EntityID: squadID,
		})
	}

	ids := make([]string, 0, len(squads))
	for id := range squads {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, squadID := range ids {
		members := squads[squadID]
		ref := members[0]
		refSet := sortedSet(ref.System.SquadMemberIDs)
		for _, m := range members {
			sys := m.System
			if !slices.Contains(sys.SquadMemberIDs, m.ID) {
				report(squadID, "member %s does not list itself", m.ID)
			}
			for _, id := range sys.SquadMemberIDs {
				other, ok := byID[id]
				switch {
				case !ok:
					report(squadID, "member %s lists missing token %s", m.ID, id)
				case other.Kind != domain.KindMinion:
					report(squadID, "member %s lists non-minion token %s", m.ID, id)
				case other.System.SquadID != squadID:
					report(squadID, "member %s lists %s which belongs to squad %q", m.ID, id, other.System.SquadID)
				}
			}
			if !slices.Equal(sortedSet(sys.SquadMemberIDs), refSet) {
				report(squadID, "member lists of %s and %s differ", ref.ID, m.ID)
			}
			wantMax := sys.Stamina.PerMember * max(len(sys.SquadMemberIDs), 1)
			if sys.Stamina.Max != wantMax {
				report(squadID, "member %s has max stamina %d, expected %d", m.ID, sys.Stamina.Max, wantMax)
			}
			if sys.Stamina.Value != ref.System.Stamina.Value {
				report(squadID, "members %s and %s disagree on stamina (%d vs %d)", ref.ID, m.ID, ref.System.Stamina.Value, sys.Stamina.Value)
			}
			if sys.Stamina.Value < 0 || sys.Stamina.Value > sys.Stamina.Max {
				report(squadID, "member %s stamina %d outside [0, %d]", m.ID, sys.Stamina.Value, sys.Stamina.Max)
			}
			if sys.CaptainID != ref.System.CaptainID {
				report(squadID, "members %s and %s name different captains", ref.ID, m.ID)
			}
		}
		switch n := len(captains[squadID]); {
		case n > 1:
			report(squadID, "%d enemies claim to command the squad", n)
		case n == 1 && captains[squadID][0].ID != ref.System.CaptainID:
			report(squadID, "enemy %s commands the squad but members name %q", captains[squadID][0].ID, ref.System.CaptainID)
		}
		if cid := ref.System.CaptainID; cid != "" {
			if c, ok := byID[cid]; ok && c.System.SquadID != squadID {
				report(squadID, "captain %s commands squad %q", cid, c.System.SquadID)
			}
		}
	}

	capIDs := make([]string, 0, len(captains))
	for id := range captains {
		capIDs = append(capIDs, id)
	}
	sort.Strings(capIDs)
	for _, squadID := range capIDs {
		if _, ok := squads[squadID]; !ok {
			for _, c := range captains[squadID] {
				report(squadID, "captain %s commands a squad with no members", c.ID)
			}
		}
	}
	return out
}

func sortedSet(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
