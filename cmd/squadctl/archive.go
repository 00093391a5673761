package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newArchiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export and import scene archives",
	}

	export := &cobra.Command{
		Use:   "export <scene>",
		Short: "Write the scene to the blob store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := a.archive(cmd.Context())
			if err != nil {
				return err
			}
			info, err := arc.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}

	var latest string
	importCmd := &cobra.Command{
		Use:   "import [key]",
		Short: "Replace the scene with an archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (latest != "") {
				return fmt.Errorf("give either an archive key or --latest <scene>")
			}
			arc, err := a.archive(cmd.Context())
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else if key, err = arc.Latest(cmd.Context(), latest); err != nil {
				return err
			}
			res, err := arc.Import(cmd.Context(), key)
			if err != nil {
				return err
			}
			printViolations(cmd, res.Violations)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", key)
			return nil
		},
	}
	importCmd.Flags().StringVar(&latest, "latest", "", "import the newest archive of this scene")

	list := &cobra.Command{
		Use:   "list [scene]",
		Short: "List archives, optionally of one scene",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := a.archive(cmd.Context())
			if err != nil {
				return err
			}
			scene := ""
			if len(args) == 1 {
				scene = args[0]
			}
			infos, err := arc.List(cmd.Context(), scene)
			if err != nil {
				return err
			}
			return printJSON(cmd, infos)
		},
	}

	cmd.AddCommand(export, importCmd, list)
	return cmd
}
