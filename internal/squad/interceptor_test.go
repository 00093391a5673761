package squad

import (
	"context"
	"testing"

	"squadcore/pkg/domain"
)

func TestCasualties(t *testing.T) {
	cases := []struct {
		old, new, per, want int
	}{
		{25, 4, 10, 2},
		{25, 21, 10, 0},
		{25, 20, 10, 1},
		{10, 0, 10, 1},
		{30, 0, 10, 3},
		{4, 25, 10, -2},
		{25, 4, 0, 0},
		{25, 4, -3, 0},
	}
	for _, tc := range cases {
		if got := Casualties(tc.old, tc.new, tc.per); got != tc.want {
			t.Fatalf("Casualties(%d, %d, %d) = %d, want %d", tc.old, tc.new, tc.per, got, tc.want)
		}
	}
}

func TestCasualtyNoticeText(t *testing.T) {
	one := CasualtyNotice("m1", 1)
	if one.Message != "1 minion has been ruthlessly slain! Please remove 1 minion token from the scene." {
		t.Fatalf("unexpected singular notice: %q", one.Message)
	}
	two := CasualtyNotice("m1", 2)
	if two.Message != "2 minions have been ruthlessly slain! Please remove 2 minion tokens from the scene." {
		t.Fatalf("unexpected plural notice: %q", two.Message)
	}
	if two.Level != NoticeWarn || two.TokenID != "m1" {
		t.Fatalf("unexpected notice metadata: %+v", two)
	}
}

func threeMinionSquad(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"m1", "m2", "m3"} {
		f.minion(t, id, 10)
	}
	sq := f.squad(t, "m1")
	must(t, sq.AddMember(ctx, "m2"))
	must(t, sq.AddMember(ctx, "m3"))
	return f
}

func TestInterceptRedirectsMinionStamina(t *testing.T) {
	f := threeMinionSquad(t)
	patch := domain.TokenPatch{
		Name:    domain.Ptr("Grunt"),
		Stamina: &domain.StaminaPatch{Value: domain.Ptr(4)},
	}
	res, err := f.engine.Intercept(context.Background(), "m2", patch)
	must(t, err)

	if !res.Redirected || res.Casualties != 2 {
		t.Fatalf("expected redirect with 2 casualties, got %+v", res)
	}
	if res.Patch == nil || res.Patch.Name == nil || *res.Patch.Name != "Grunt" {
		t.Fatalf("expected remaining patch to keep the name, got %+v", res.Patch)
	}
	if res.Patch.Stamina != nil {
		t.Fatalf("expected stamina stripped, got %+v", res.Patch.Stamina)
	}
	if patch.Stamina.Value == nil {
		t.Fatalf("caller patch must not be mutated")
	}
	for _, id := range []string{"m1", "m2", "m3"} {
		f.assertStamina(t, id, 30, 4)
	}

	notices := f.notices.all()
	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notices))
	}
	if notices[0].Message != "2 minions have been ruthlessly slain! Please remove 2 minion tokens from the scene." {
		t.Fatalf("unexpected notice %q", notices[0].Message)
	}
	f.assertInvariants(t)
}

func TestInterceptDropsEmptyRemainder(t *testing.T) {
	f := threeMinionSquad(t)
	res, err := f.engine.Intercept(context.Background(), "m1", domain.TokenPatch{
		Stamina: &domain.StaminaPatch{Value: domain.Ptr(28)},
	})
	must(t, err)
	if res.Patch != nil {
		t.Fatalf("expected nothing left to apply, got %+v", res.Patch)
	}
	if res.Casualties != 0 || len(f.notices.all()) != 0 {
		t.Fatalf("expected no casualties, got %+v", res)
	}
	f.assertStamina(t, "m3", 30, 28)
}

func TestInterceptKeepsOtherStaminaFields(t *testing.T) {
	f := threeMinionSquad(t)
	res, err := f.engine.Intercept(context.Background(), "m1", domain.TokenPatch{
		Stamina: &domain.StaminaPatch{Value: domain.Ptr(30), Temporary: domain.Ptr(3)},
	})
	must(t, err)
	if res.Patch == nil || res.Patch.Stamina == nil || res.Patch.Stamina.Temporary == nil || res.Patch.Stamina.Value != nil {
		t.Fatalf("expected temporary stamina to remain, got %+v", res.Patch)
	}
}

func TestInterceptPassesThrough(t *testing.T) {
	f := threeMinionSquad(t)
	f.enemy(t, "c1")
	ctx := context.Background()

	cases := map[string]struct {
		id    string
		patch domain.TokenPatch
	}{
		"squad update": {"m1", domain.TokenPatch{SquadID: domain.Ptr("x"), Stamina: &domain.StaminaPatch{Value: domain.Ptr(1)}}},
		"no stamina":   {"m1", domain.TokenPatch{Name: domain.Ptr("n")}},
		"max only":     {"m1", domain.TokenPatch{Stamina: &domain.StaminaPatch{Max: domain.Ptr(99)}}},
		"enemy":        {"c1", domain.TokenPatch{Stamina: &domain.StaminaPatch{Value: domain.Ptr(1)}}},
		"missing":      {"ghost", domain.TokenPatch{Stamina: &domain.StaminaPatch{Value: domain.Ptr(1)}}},
	}
	for name, tc := range cases {
		res, err := f.engine.Intercept(ctx, tc.id, tc.patch)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.Redirected || res.Patch == nil {
			t.Fatalf("%s: expected pass-through, got %+v", name, res)
		}
	}
	f.assertStamina(t, "m1", 30, 30)
}

func TestInterceptWithoutPerMemberStamina(t *testing.T) {
	f := newFixture(t)
	f.minion(t, "m1", 0)
	res, err := f.engine.Intercept(context.Background(), "m1", domain.TokenPatch{
		Stamina: &domain.StaminaPatch{Value: domain.Ptr(5)},
	})
	must(t, err)
	if !res.Redirected || res.Casualties != 0 {
		t.Fatalf("expected redirect without casualties, got %+v", res)
	}
	if len(f.warns.warns) == 0 {
		t.Fatalf("expected a warning for missing per-member stamina")
	}
	f.assertStamina(t, "m1", 0, 0)
}
