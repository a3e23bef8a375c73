package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/config"
	logpkg "github.com/noa10/mataresit-sub011/internal/logger"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	env      string
	logLevel string
	json     bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "searchctl",
		Short:         "Operate the receipts search service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(os.Stdout)
	root.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "config environment (config/<env>.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level for local commands")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output as JSON")

	root.AddCommand(newSearchCmd(opts), newIndexCmd(opts), newVersionCmd())
	return root
}

// load reads the config and builds a logger for commands that touch the datastore.
func (o *globalOptions) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.env)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logpkg.New(logpkg.Options{Env: o.env, Level: o.logLevel, Service: "searchctl"})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
