package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSquadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "squad",
		Short: "Inspect and edit minion squads",
		Long: `Inspect and edit minion squads. Every subcommand addresses a squad
through one of its member tokens; a minion without a squad gets a new one.`,
	}

	show := &cobra.Command{
		Use:   "show <member-id>",
		Short: "Show the squad of a minion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.svc.GetSquad(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}

	addMember := &cobra.Command{
		Use:   "add-member <member-id> <recruit-id>",
		Short: "Recruit a minion into a squad",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.svc.AddMember(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}

	removeMember := &cobra.Command{
		Use:   "remove-member <member-id> <target-id>",
		Short: "Drop a minion from a squad",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.svc.RemoveMember(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}

	var removeCaptain bool
	captain := &cobra.Command{
		Use:   "captain <member-id> [captain-id]",
		Short: "Assign or remove the squad captain",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if removeCaptain {
				if len(args) > 1 {
					return fmt.Errorf("--remove takes no captain id")
				}
				view, err := a.svc.RemoveCaptain(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, view)
			}
			captainID := ""
			if len(args) > 1 {
				captainID = args[1]
			}
			view, err := a.svc.AssignCaptain(cmd.Context(), args[0], captainID)
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}
	captain.Flags().BoolVar(&removeCaptain, "remove", false, "remove the current captain")

	var delta, set int
	stamina := &cobra.Command{
		Use:   "stamina <member-id>",
		Short: "Change the shared stamina of a squad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			switch {
			case flags.Changed("delta") && flags.Changed("set"):
				return fmt.Errorf("--delta and --set are exclusive")
			case flags.Changed("delta"):
				view, err := a.svc.ModifySquadStamina(cmd.Context(), args[0], delta)
				if err != nil {
					return err
				}
				return printJSON(cmd, view)
			case flags.Changed("set"):
				view, err := a.svc.SetSquadStamina(cmd.Context(), args[0], set)
				if err != nil {
					return err
				}
				return printJSON(cmd, view)
			default:
				return fmt.Errorf("--delta or --set required")
			}
		},
	}
	stamina.Flags().IntVar(&delta, "delta", 0, "amount to add (negative for damage)")
	stamina.Flags().IntVar(&set, "set", 0, "new shared stamina value")

	clone := &cobra.Command{
		Use:   "clone <member-id>",
		Short: "Clone a minion next to itself and add it to the squad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.svc.CloneMinion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, tok)
		},
	}

	effects := &cobra.Command{
		Use:   "effects <member-id>",
		Short: "Spread the captain's temporary stamina to the squad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.ApplyCaptainEffects(cmd.Context(), args[0]); err != nil {
				return err
			}
			view, err := a.svc.GetSquad(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Report squads whose member records disagree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			violations, err := a.svc.VerifySquads(cmd.Context())
			if err != nil {
				return err
			}
			if len(violations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "squads consistent")
				return nil
			}
			for _, v := range violations {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", v.Entity, v.EntityID, v.Message)
			}
			return exitError{code: 1}
		},
	}

	cmd.AddCommand(show, addMember, removeMember, captain, stamina, clone, effects, verify)
	return cmd
}
