package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/fleet-worklog/internal/config"
	"github.com/garyjia/fleet-worklog/internal/container"
	"github.com/garyjia/fleet-worklog/pkg/utils"
)

const defaultConfigPath = "configs/config.yaml"

// app carries what every subcommand needs once the root pre-run has finished
type app struct {
	configPath string
	verbose    bool

	logger    *zap.Logger
	container *container.Container
}

// execute runs the CLI and releases the container afterwards
func execute(ctx context.Context, args []string, stdout io.Writer) error {
	root, a := newRootCommand()
	root.SetArgs(args)
	if stdout != nil {
		root.SetOut(stdout)
		root.SetErr(stdout)
	}
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.teardown())
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "worklogctl",
		Short: "Operate on equipment work logs and batch transactions",
		Long: `worklogctl talks to the same backend as the work-log server, local
SQLite or a remote instance, as selected by the configuration.

Examples:
  worklogctl verify 4711
  worklogctl verify 4711 --reject "wrong supplier"
  worklogctl generate 12 --from 2024-07-01 --to 2024-07-31 --work-type 3 --hours 8 --driver 5 --save
  worklogctl export 12 --month 7 --year 2024 --out july.xlsx`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default is "+defaultConfigPath+" when present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr at debug level")

	root.AddCommand(
		newVerifyCommand(a),
		newGenerateCommand(a),
		newExportCommand(a),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	path := a.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	containerCfg, err := cfg.ToContainerConfig()
	if err != nil {
		return err
	}

	logger, err := utils.NewCLILogger(a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(cmd.Context()); err != nil {
		return err
	}
	a.container = c
	return nil
}

func (a *app) teardown() error {
	var errs []error
	if a.container != nil {
		errs = append(errs, a.container.Close())
		a.container = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) services() *container.ServiceBundle {
	return a.container.Services()
}
