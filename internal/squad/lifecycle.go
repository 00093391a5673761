package squad

import (
	"context"
	"slices"

	"squadcore/pkg/domain"
)

// HandleTokenRemoved restores squad consistency after a token has been
// deleted from the scene. removed is the token as it was before deletion.
func (e *Engine) HandleTokenRemoved(ctx context.Context, removed domain.Token) error {
	switch removed.Kind {
	case domain.KindMinion:
		return e.minionRemoved(ctx, removed)
	case domain.KindEnemy:
		return e.captainRemoved(ctx, removed)
	}
	return nil
}

func (e *Engine) minionRemoved(ctx context.Context, removed domain.Token) error {
	if removed.System.SquadID == "" {
		return nil
	}
	data := removed.System.Clone()
	data.SquadMemberIDs = slices.DeleteFunc(data.SquadMemberIDs, func(id string) bool { return id == removed.ID })
	sq := newSquad(e, removed.ID, data)
	members, err := sq.Members(ctx)
	if err != nil {
		return err
	}
	e.logger.Info("minion removed from scene", "component", "squad", "token_id", removed.ID, "squad_id", data.SquadID, "survivors", len(members))
	if len(members) == 0 {
		return sq.RemoveCaptain(ctx, RemoveCaptainOptions{UpdateSquad: false})
	}
	return sq.Propagate(ctx)
}

func (e *Engine) captainRemoved(ctx context.Context, removed domain.Token) error {
	if removed.System.SquadID == "" {
		return nil
	}
	sq, ok, err := e.squadOf(ctx, removed.System.SquadID, removed.ID)
	if err != nil || !ok {
		return err
	}
	if sq.CaptainID() != removed.ID {
		return nil
	}
	e.logger.Info("captain removed from scene", "component", "squad", "token_id", removed.ID, "squad_id", sq.ID())
	return sq.RemoveCaptain(ctx, RemoveCaptainOptions{UpdateSquad: true})
}
