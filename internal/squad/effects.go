package squad

import (
	"context"

	"golang.org/x/sync/errgroup"

	"squadcore/pkg/domain"
)

// ApplyCaptainEffects raises the temporary stamina of every member of the
// squad of memberID to the bonus recorded on that member. Temporary stamina
// is never lowered here.
func (e *Engine) ApplyCaptainEffects(ctx context.Context, memberID string) error {
	sq, err := e.GetSquad(ctx, memberID)
	if err != nil {
		return err
	}
	source, err := e.acc.Minion(ctx, memberID)
	if err != nil {
		return err
	}
	bonus := source.System().AppliedCaptainEffects.TemporaryStamina
	members, err := sq.Members(ctx)
	if err != nil {
		return err
	}
	var g errgroup.Group
	for _, m := range members {
		if m.System().Stamina.Temporary >= bonus {
			continue
		}
		g.Go(func() error {
			return m.Update(ctx, domain.TokenPatch{Stamina: &domain.StaminaPatch{Temporary: domain.Ptr(bonus)}})
		})
	}
	return g.Wait()
}
