package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squadcore/internal/core"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Place, edit and remove tokens",
	}

	var at core.Placement
	place := &cobra.Command{
		Use:   "place <actor-id>",
		Short: "Place a token from an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, res, err := a.svc.PlaceToken(cmd.Context(), args[0], at)
			if err != nil {
				return err
			}
			printViolations(cmd, res.Violations)
			return printJSON(cmd, tok)
		},
	}
	place.Flags().StringVar(&at.Name, "name", "", "token name (defaults to the actor name)")
	place.Flags().IntVar(&at.X, "x", 0, "x position")
	place.Flags().IntVar(&at.Y, "y", 0, "y position")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tokens on the scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, err := a.svc.ListTokens(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, tokens)
		},
	}

	show := &cobra.Command{
		Use:   "show <token-id>",
		Short: "Show one token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.svc.GetToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, tok)
		},
	}

	var (
		name        string
		x, y, value int
		temporary   int
	)
	update := &cobra.Command{
		Use:   "update <token-id>",
		Short: "Edit a token as the host would",
		Long: `Edit a token as the host would. A stamina edit on a minion that belongs
to a squad is redirected to the squad's shared pool.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch core.TokenPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("x") {
				patch.X = &x
			}
			if flags.Changed("y") {
				patch.Y = &y
			}
			if flags.Changed("stamina") || flags.Changed("temporary") {
				patch.Stamina = &core.StaminaPatch{}
				if flags.Changed("stamina") {
					patch.Stamina.Value = &value
				}
				if flags.Changed("temporary") {
					patch.Stamina.Temporary = &temporary
				}
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update")
			}
			out, err := a.svc.UpdateToken(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().IntVar(&x, "x", 0, "new x position")
	update.Flags().IntVar(&y, "y", 0, "new y position")
	update.Flags().IntVar(&value, "stamina", 0, "new stamina value")
	update.Flags().IntVar(&temporary, "temporary", 0, "new temporary stamina")

	remove := &cobra.Command{
		Use:   "remove <token-id>",
		Short: "Remove a token and repair its squad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.RemoveToken(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(place, list, show, update, remove)
	return cmd
}
