package squad

import (
	"context"
	"testing"

	"squadcore/pkg/domain"
)

func TestApplyCaptainEffectsOnlyRaisesTemporaryStamina(t *testing.T) {
	f := threeMinionSquad(t)
	ctx := context.Background()
	acc := f.engine.Accessor()
	_, err := acc.Update(ctx, "m1", domain.TokenPatch{AppliedTemporaryStamina: domain.Ptr(5)})
	must(t, err)
	_, err = acc.Update(ctx, "m3", domain.TokenPatch{Stamina: &domain.StaminaPatch{Temporary: domain.Ptr(7)}})
	must(t, err)

	must(t, f.engine.ApplyCaptainEffects(ctx, "m1"))

	want := map[string]int{"m1": 5, "m2": 5, "m3": 7}
	for id, temp := range want {
		if got := f.token(t, id).System.Stamina.Temporary; got != temp {
			t.Fatalf("%s: expected temporary stamina %d, got %d", id, temp, got)
		}
	}
}
