// Package admincmd implements the ecgadmin command line: bootstrapping the
// admin account and seeding users into whichever storage is configured.
package admincmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patric-chuzhbe/ecgstore/internal/app"
	"github.com/patric-chuzhbe/ecgstore/internal/config"
	"github.com/patric-chuzhbe/ecgstore/internal/logger"
)

type admin struct {
	configPath string
	cfg        *config.Config
}

func NewRootCmd(version, buildDate string) *cobra.Command {
	a := &admin{}
	root := &cobra.Command{
		Use:           "ecgadmin",
		Short:         "ECG store administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a JSON config file")

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(a.newInitCmd())
	root.AddCommand(a.newSeedCmd())

	return root
}

func newVersionCmd(version, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ecgadmin %s (%s)\n", version, buildDate)
		},
	}
}

// loadConfig reads env and the JSON file. Command-line flags belong to cobra.
func (a *admin) loadConfig() error {
	var args []string
	if a.configPath != "" {
		args = []string{"-c", a.configPath}
	}

	cfg, err := config.New(config.WithArgs(args))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return err
	}
	a.cfg = cfg

	return nil
}

func (a *admin) openStorage(ctx context.Context) (app.Storage, error) {
	db, err := app.OpenStorage(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	return db, nil
}
