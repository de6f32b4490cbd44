// Package cli is the tabctl command tree. Every command opens the
// configured store directly, runs, and closes it again.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"nicetab/api/internal/app"
	"nicetab/api/internal/config"
	"nicetab/api/internal/logging"
)

func Execute() error {
	return NewRoot().Execute()
}

func NewRoot() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "tabctl",
		Short:         "Manage saved NiceTab tabs from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("NICETAB_CONFIG"), "Path to a config file")

	open := func(cmd *cobra.Command) (*app.App, func(), error) {
		return openApp(cmd.Context(), configPath, cmd.ErrOrStderr())
	}
	root.AddCommand(
		tagsCmd(open),
		importCmd(open),
		exportCmd(open),
		captureCmd(open),
		recycleCmd(open),
		syncCmd(open),
		historyCmd(open),
		searchCmd(open),
		hashKeyCmd(),
	)
	return root
}

type opener func(cmd *cobra.Command) (*app.App, func(), error)

func openApp(ctx context.Context, configPath string, logOut io.Writer) (*app.App, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logs, err := logging.New().FromBuffer(logOut).Level(cfg.LogLevel).Pretty(true).Make()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Build(ctx, cfg, logs.Logger)
	if err != nil {
		_ = logs.Close()
		return nil, nil, err
	}
	return a, func() {
		_ = a.Close()
		_ = logs.Close()
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
