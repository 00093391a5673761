package squad

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"testing"
	"time"

	"squadcore/pkg/domain"
)

func TestGetSquadCreatesSquadLazily(t *testing.T) {
	f := newFixture(t)
	f.minion(t, "m1", 10)

	sq := f.squad(t, "m1")
	if sq.ID() != "squad-1" {
		t.Fatalf("expected generated id squad-1, got %q", sq.ID())
	}
	if got := sq.MemberIDs(); !slices.Equal(got, []string{"m1"}) {
		t.Fatalf("expected members [m1], got %v", got)
	}
	tok := f.token(t, "m1")
	if tok.System.SquadID != "squad-1" || !slices.Equal(tok.System.SquadMemberIDs, []string{"m1"}) {
		t.Fatalf("squad fields not persisted: %+v", tok.System)
	}
	f.assertStamina(t, "m1", 10, 10)

	again := f.squad(t, "m1")
	if again.ID() != "squad-1" || f.ids != 1 {
		t.Fatalf("expected existing squad to be reused, got %q after %d ids", again.ID(), f.ids)
	}
	f.renders.waitFor(t, 1)
	f.assertInvariants(t)
}

func TestGetSquadPersistsGeneratedIDForSelfListedMember(t *testing.T) {
	f := newFixture(t)
	f.place(t, domain.Token{
		Base: domain.Base{ID: "m1"},
		Kind: domain.KindMinion,
		System: domain.ActorSystem{
			SquadMemberIDs: []string{"m1"},
			Stamina:        domain.Stamina{Max: 10, Value: 10, PerMember: 10},
		},
	})
	sq := f.squad(t, "m1")
	if got := f.token(t, "m1").System.SquadID; got != sq.ID() || got == "" {
		t.Fatalf("expected squad id %q persisted, got %q", sq.ID(), got)
	}
}

func TestGetSquadRejectsNonMinion(t *testing.T) {
	f := newFixture(t)
	f.enemy(t, "c1")
	if _, err := f.engine.GetSquad(context.Background(), "c1"); !errors.Is(err, domain.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	if _, err := f.engine.GetSquad(context.Background(), "ghost"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddMemberIsAdditive(t *testing.T) {
	f := newFixture(t)
	f.minion(t, "m1", 10)
	f.minion(t, "m2", 10)

	sq := f.squad(t, "m1")
	must(t, sq.AddMember(context.Background(), "m2"))

	for _, id := range []string{"m1", "m2"} {
		f.assertStamina(t, id, 20, 20)
		if got := f.token(t, id).System.SquadMemberIDs; !slices.Equal(got, []string{"m1", "m2"}) {
			t.Fatalf("%s: expected members [m1 m2], got %v", id, got)
		}
	}
	f.assertInvariants(t)
}

func TestAddMemberIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.minion(t, "m1", 10)
	f.minion(t, "m2", 10)

	sq := f.squad(t, "m1")
	must(t, sq.AddMember(context.Background(), "m2"))
	must(t, sq.AddMember(context.Background(), "m2"))
	must(t, f.squad(t, "m1").AddMember(context.Background(), "m2"))

	f.assertStamina(t, "m1", 20, 20)
	f.assertStamina(t, "m2", 20, 20)
	if got := f.token(t, "m2").System.SquadMemberIDs; len(got) != 2 {
		t.Fatalf("expected two members, got %v", got)
	}
}

func TestAddMemberRejectsEnemy(t *testing.T) {
	f := newFixture(t)
	f.minion(t, "m1", 10)
	f.enemy(t, "c1")
	if err := f.squad(t, "m1").AddMember(context.Background(), "c1"); !errors.Is(err, domain.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	if got := f.token(t, "m1").System.SquadMemberIDs; !slices.Equal(got, []string{"m1"}) {
		t.Fatalf("expected squad untouched, got %v", got)
	}
}

func TestAddMemberMovesRecruitBetweenSquads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a1", "a2", "b1"} {
		f.minion(t, id, 10)
	}
	must(t, f.squad(t, "a1").AddMember(ctx, "a2"))
	f.squad(t, "b1")

	must(t, f.squad(t, "b1").AddMember(ctx, "a2"))

	if got := f.token(t, "a1").System.SquadMemberIDs; !slices.Equal(got, []string{"a1"}) {
		t.Fatalf("expected a2 to leave squad A, got %v", got)
	}
	if got := f.token(t, "a2").System.SquadID; got != f.token(t, "b1").System.SquadID {
		t.Fatalf("expected a2 in squad B, got %q", got)
	}
	f.assertStamina(t, "a1", 10, 10)
	f.assertStamina(t, "b1", 20, 20)
	f.assertInvariants(t)
}

func TestRemoveMemberClampsWithoutProportionalLoss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"m1", "m2", "m3"} {
		f.minion(t, id, 10)
	}
	sq := f.squad(t, "m1")
	must(t, sq.AddMember(ctx, "m2"))
	must(t, sq.AddMember(ctx, "m3"))
	f.assertStamina(t, "m1", 30, 30)

	must(t, sq.SetStaminaValue(ctx, 25))
	must(t, sq.RemoveMember(ctx, "m3"))

	f.assertStamina(t, "m1", 20, 20)
	f.assertStamina(t, "m2", 20, 20)

	detached := f.token(t, "m3").System
	if detached.SquadID != "" || detached.CaptainID != "" || len(detached.SquadMemberIDs) != 0 {
		t.Fatalf("expected m3 detached, got %+v", detached)
	}
	f.assertStamina(t, "m3", 10, 10)
	f.assertInvariants(t)
}

func TestRemoveMemberWithoutSurvivorsReleasesCaptain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.minion(t, "m1", 10)
	f.enemy(t, "c1")

	sq := f.squad(t, "m1")
	must(t, sq.AddCaptain(ctx, "c1"))
	must(t, sq.RemoveMember(ctx, "m1"))

	if got := f.token(t, "c1").System.SquadID; got != "" {
		t.Fatalf("expected captain released, got squad %q", got)
	}
	if got := f.token(t, "m1").System.SquadID; got != "" {
		t.Fatalf("expected m1 squadless, got %q", got)
	}
	f.assertInvariants(t)
}

func TestRemoveMemberIgnoresOutsiders(t *testing.T) {
	f := newFixture(t)
	f.minion(t, "m1", 10)
	f.minion(t, "m2", 10)
	sq := f.squad(t, "m1")
	must(t, sq.RemoveMember(context.Background(), "m2"))
	if got := f.token(t, "m2").System.SquadID; got != "" {
		t.Fatalf("outsider should not be touched, got squad %q", got)
	}
	f.assertStamina(t, "m1", 10, 10)
}

func TestAddCaptainIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.minion(t, "a1", 10)
	f.minion(t, "b1", 10)
	f.enemy(t, "c1")

	sqA := f.squad(t, "a1")
	must(t, sqA.AddCaptain(ctx, "c1"))
	if got := f.token(t, "a1").System.CaptainID; got != "c1" {
		t.Fatalf("expected a1 captained by c1, got %q", got)
	}
	if got := f.token(t, "c1").System.SquadID; got != sqA.ID() {
		t.Fatalf("expected c1 to command %q, got %q", sqA.ID(), got)
	}

	sqB := f.squad(t, "b1")
	must(t, sqB.AddCaptain(ctx, "c1"))

	if got := f.token(t, "a1").System.CaptainID; got != "" {
		t.Fatalf("expected squad A captainless, got %q", got)
	}
	if got := f.token(t, "b1").System.CaptainID; got != "c1" {
		t.Fatalf("expected b1 captained by c1, got %q", got)
	}
	if got := f.token(t, "c1").System.SquadID; got != sqB.ID() {
		t.Fatalf("expected c1 to command %q, got %q", sqB.ID(), got)
	}
	f.assertInvariants(t)
}

func TestAddCaptainReplacesPreviousCaptain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.minion(t, "m1", 10)
	f.enemy(t, "c1")
	f.enemy(t, "c2")

	sq := f.squad(t, "m1")
	must(t, sq.AddCaptain(ctx, "c1"))
	must(t, sq.AddCaptain(ctx, "c2"))

	if got := f.token(t, "c1").System.SquadID; got != "" {
		t.Fatalf("expected c1 released, got %q", got)
	}
	if got := f.token(t, "m1").System.CaptainID; got != "c2" {
		t.Fatalf("expected c2 in command, got %q", got)
	}
	f.assertInvariants(t)
}

func TestAddCaptainRejectsNonEnemy(t *testing.T) {
	f := newFixture(t)
	f.minion(t, "m1", 10)
	f.minion(t, "m2", 10)
	sq := f.squad(t, "m1")
	if err := sq.AddCaptain(context.Background(), "m2"); !errors.Is(err, domain.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	if err := sq.AddCaptain(context.Background(), "ghost"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveCaptainKeepsForeignCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.minion(t, "m1", 10)
	f.enemy(t, "c1")
	sq := f.squad(t, "m1")
	must(t, sq.AddCaptain(ctx, "c1"))

	_, err := f.engine.Accessor().Update(ctx, "c1", domain.TokenPatch{SquadID: domain.Ptr("elsewhere")})
	must(t, err)
	must(t, f.squad(t, "m1").RemoveCaptain(ctx, RemoveCaptainOptions{UpdateSquad: true}))

	if got := f.token(t, "c1").System.SquadID; got != "elsewhere" {
		t.Fatalf("expected foreign command kept, got %q", got)
	}
	if got := f.token(t, "m1").System.CaptainID; got != "" {
		t.Fatalf("expected members captainless, got %q", got)
	}
}

func TestStaminaIsClamped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.minion(t, "m1", 10)
	f.minion(t, "m2", 10)
	sq := f.squad(t, "m1")
	must(t, sq.AddMember(ctx, "m2"))

	must(t, sq.ModifyStaminaValue(ctx, -5))
	f.assertStamina(t, "m2", 20, 15)
	must(t, sq.ModifyStaminaValue(ctx, 100))
	f.assertStamina(t, "m2", 20, 20)
	must(t, sq.SetStaminaValue(ctx, -7))
	f.assertStamina(t, "m2", 20, 0)
	f.assertInvariants(t)
}

func TestSetStaminaValueSkipsNoOp(t *testing.T) {
	f := newFixture(t)
	f.minion(t, "m1", 10)
	sq := f.squad(t, "m1")
	before := f.token(t, "m1").UpdatedAt
	f.store.SetNowFunc(func() time.Time { return before.Add(time.Hour) })
	must(t, sq.SetStaminaValue(context.Background(), 10))
	if got := f.token(t, "m1").UpdatedAt; !got.Equal(before) {
		t.Fatalf("expected no write, token updated at %v", got)
	}
}

func TestPropagateReturnsMemberFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.minion(t, "m1", 10)
	f.minion(t, "m2", 10)
	must(t, f.squad(t, "m1").AddMember(ctx, "m2"))

	f.store.setFail("m2")
	err := f.squad(t, "m1").SetStaminaValue(ctx, 5)
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	f.assertStamina(t, "m1", 20, 5)
	f.assertStamina(t, "m2", 20, 20)
	if len(f.warns.warns) == 0 {
		t.Fatalf("expected failed write to be logged")
	}

	f.store.setFail("")
	must(t, f.squad(t, "m1").Propagate(ctx))
	f.assertStamina(t, "m2", 20, 5)
	f.assertInvariants(t)
}

func TestSquadLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enemy(t, "E")
	f.minion(t, "M1", 10)
	f.minion(t, "M2", 10)

	sq := f.squad(t, "M1")
	must(t, sq.AddCaptain(ctx, "E"))
	must(t, sq.AddMember(ctx, "M2"))
	f.assertStamina(t, "M2", 20, 20)
	if got := f.token(t, "M2").System.CaptainID; got != "E" {
		t.Fatalf("expected recruit to follow captain E, got %q", got)
	}

	must(t, sq.RemoveCaptain(ctx, RemoveCaptainOptions{UpdateSquad: true}))
	for _, id := range []string{"M1", "M2"} {
		if got := f.token(t, id).System.CaptainID; got != "" {
			t.Fatalf("%s: expected no captain, got %q", id, got)
		}
	}
	if got := f.token(t, "E").System.SquadID; got != "" {
		t.Fatalf("expected E released, got %q", got)
	}

	must(t, sq.RemoveMember(ctx, "M1"))
	f.assertStamina(t, "M2", 10, 10)
	if got := f.token(t, "M2").System.SquadMemberIDs; !slices.Equal(got, []string{"M2"}) {
		t.Fatalf("expected [M2], got %v", got)
	}
	f.assertInvariants(t)
}

func TestInvariantsHoldAcrossRandomOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	minions := []string{"m1", "m2", "m3", "m4", "m5", "m6"}
	enemies := []string{"c1", "c2"}
	for _, id := range minions {
		f.minion(t, id, 8)
	}
	for _, id := range enemies {
		f.enemy(t, id)
	}

	rng := rand.New(rand.NewSource(7))
	for step := 0; step < 200; step++ {
		sq := f.squad(t, minions[rng.Intn(len(minions))])
		var err error
		switch op := rng.Intn(5); op {
		case 0:
			err = sq.AddMember(ctx, minions[rng.Intn(len(minions))])
		case 1:
			ids := sq.MemberIDs()
			err = sq.RemoveMember(ctx, ids[rng.Intn(len(ids))])
		case 2:
			err = sq.AddCaptain(ctx, enemies[rng.Intn(len(enemies))])
		case 3:
			err = sq.RemoveCaptain(ctx, RemoveCaptainOptions{UpdateSquad: true})
		case 4:
			err = sq.SetStaminaValue(ctx, rng.Intn(60)-5)
		}
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		if violations := CheckInvariants(f.store.ListTokens()); len(violations) > 0 {
			t.Fatalf("step %d: %s", step, violations[0].Message)
		}
	}
}
