package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squadcore/internal/core"
)

func newActorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actor",
		Short: "Create and list actor prototypes",
	}

	var (
		id, name, kind string
		level, max     int
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an actor prototype",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := core.ActorKind(kind)
			if !k.Valid() {
				return fmt.Errorf("unknown kind %q", kind)
			}
			actor, res, err := a.svc.CreateActor(cmd.Context(), core.Actor{
				Base: core.Base{ID: id},
				Name: name,
				Kind: k,
				System: core.ActorSystem{
					Level:   level,
					Stamina: core.Stamina{Max: max},
				},
			})
			if err != nil {
				return err
			}
			printViolations(cmd, res.Violations)
			return printJSON(cmd, actor)
		},
	}
	create.Flags().StringVar(&id, "id", "", "actor id (generated when empty)")
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&kind, "kind", string(core.KindMinion), "hero, enemy, minion or object")
	create.Flags().IntVar(&level, "level", 1, "actor level")
	create.Flags().IntVar(&max, "stamina", 0, "maximum stamina (per member for minions)")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List actor prototypes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actors, err := a.svc.ListActors(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, actors)
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func printViolations(cmd *cobra.Command, violations []core.Violation) {
	for _, v := range violations {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", v.Rule, v.Message)
	}
}
