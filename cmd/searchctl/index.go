package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/app"
	"github.com/noa10/mataresit-sub011/internal/config"
	dbRedis "github.com/noa10/mataresit-sub011/internal/db/redis"
	"github.com/noa10/mataresit-sub011/internal/repository/schema"
)

func newIndexCmd(opts *globalOptions) *cobra.Command {
	index := &cobra.Command{
		Use:   "index",
		Short: "Manage the search index",
	}
	index.AddCommand(newIndexEnsureCmd(opts), newIndexInfoCmd(opts), newIndexDropCmd(opts))
	return index
}

// withStore connects to the configured datastore for the duration of fn.
func withStore(
	ctx context.Context, opts *globalOptions,
	fn func(cfg *config.Config, store *dbRedis.Store, logger *zap.Logger) error,
) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := app.Connect(ctx, &cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(&cfg, store, logger)
}

func newIndexEnsureCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create the search index if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(cfg *config.Config, store *dbRedis.Store, logger *zap.Logger) error {
				created, err := app.EnsureIndex(cmd.Context(), store, cfg)
				if err != nil {
					return err
				}
				logger.Info("Index ensured", zap.String("index", cfg.Database.IndexName), zap.Bool("created", created))
				if created {
					cmd.Printf("created index %s (dim %d)\n", cfg.Database.IndexName, cfg.Embedding.Dimensions)
					return nil
				}
				cmd.Printf("index %s already exists\n", cfg.Database.IndexName)
				return nil
			})
		},
	}
}

func newIndexInfoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show document count and vector dimension of the search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(cfg *config.Config, store *dbRedis.Store, _ *zap.Logger) error {
				info, err := store.DescribeIndex(cmd.Context(), schema.IndexName(cfg.Database.IndexName))
				if err != nil {
					return fmt.Errorf("describe index %s: %w", cfg.Database.IndexName, err)
				}
				if opts.json {
					return outputJSON(cmd, info)
				}
				cmd.Printf("index:     %s\n", info.Name)
				cmd.Printf("documents: %d\n", info.NumDocs)
				cmd.Printf("dimension: %d (configured %d)\n", info.VectorDim, cfg.Embedding.Dimensions)
				return nil
			})
		},
	}
}

func newIndexDropCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the search index; indexed documents are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to drop without --yes")
			}
			return withStore(cmd.Context(), opts, func(cfg *config.Config, store *dbRedis.Store, _ *zap.Logger) error {
				if err := store.DropIndex(cmd.Context(), schema.IndexName(cfg.Database.IndexName)); err != nil {
					return fmt.Errorf("drop index %s: %w", cfg.Database.IndexName, err)
				}
				cmd.Printf("dropped index %s\n", cfg.Database.IndexName)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the drop")
	return cmd
}
