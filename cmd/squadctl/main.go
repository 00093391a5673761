// Command squadctl operates on a squadcore scene store directly: it places
// tokens, manages squads, verifies squad records and archives scenes.
//
// squadctl opens the same store squadd is configured with (SQUADCORE_*
// variables), so it should not run against a file-backed store that a live
// squadd holds open.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"squadcore/internal/archive"
	"squadcore/internal/blob"
	"squadcore/internal/config"
	"squadcore/internal/core"
	"squadcore/internal/logging"
	"squadcore/internal/squad"
	"squadcore/plugins/drawsteel"
)

// app is the state shared by every subcommand for one invocation.
type app struct {
	cfg    config.Config
	svc    *core.Service
	closer io.Closer
	logger logging.Logger

	storageFlag string
	logLevel    string
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.storageFlag != "" {
		cfg.StorageDriver = a.storageFlag
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.Noop()
	if cfg.LogLevel == "debug" {
		zl, err := logging.NewZap(cfg.LogLevel)
		if err != nil {
			return err
		}
		a.logger = zl
	}

	store, closer, err := core.OpenPersistentStore(cmd.Context(), cfg, core.NewDefaultRulesEngine())
	if err != nil {
		return err
	}
	a.closer = closer
	stderr := cmd.ErrOrStderr()
	a.svc = core.NewService(store,
		core.WithLogger(a.logger),
		core.WithGridSize(cfg.GridSize),
		core.WithNotifier(squad.NotifierFunc(func(_ context.Context, n squad.Notice) {
			fmt.Fprintf(stderr, "[%s] %s\n", n.Level, n.Message)
		})),
	)
	if _, err := a.svc.InstallPlugin(drawsteel.New()); err != nil {
		return fmt.Errorf("install plugin: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.closer != nil {
		_ = a.closer.Close()
		a.closer = nil
	}
}

func (a *app) archive(ctx context.Context) (*archive.Archive, error) {
	blobs, err := blob.Open(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return archive.New(a.svc.Store(), blobs, archive.WithLogger(a.logger)), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "squadctl",
		Short:         "Manage minion squads in a squadcore scene",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.storageFlag, "storage", "", "storage driver override (memory|sqlite|postgres|bolt)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override; debug enables logging to stderr")

	root.AddCommand(newActorCmd(a), newTokenCmd(a), newSquadCmd(a), newArchiveCmd(a))
	return root
}

// execute runs one squadctl invocation and releases the store afterwards,
// including when the command failed.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		config.Exitf("squadctl: %v", err)
	}
}

// exitError carries a non-zero exit code whose cause was already printed.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
