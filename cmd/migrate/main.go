// Command migrate walks an entity hierarchy and migrates its file handles
// to a new storage location, resuming from a checkpoint file if one already
// exists at the configured path.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/entityvault/migrator/pkg/config"
	"github.com/entityvault/migrator/pkg/indexer"
	"github.com/entityvault/migrator/pkg/logging"
	"github.com/entityvault/migrator/pkg/migration"
	"github.com/entityvault/migrator/pkg/resultcursor"
	"github.com/entityvault/migrator/pkg/throttler"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate entity file handles to a new storage location",
		RunE:  runMigrate,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Path: cfg.LogPath})
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}

	client, err := newEntityServiceClient()
	if err != nil {
		return fmt.Errorf("connecting to entity service: %w", err)
	}

	engine := migration.New(client)
	engine.SetLogger(logger)
	if cfg.RateLimitPerSecond > 0 {
		engine.SetThrottler(throttler.NewRateThrottler(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	summary, cursor, err := engine.Run(cmd.Context(), migration.Request{
		RootEntityID:            cfg.RootEntityID,
		TargetStorageLocationID: cfg.TargetStorageLocationID,
		CheckpointPath:          cfg.CheckpointPath,
		FileVersionStrategy:     indexer.FileVersionStrategy(cfg.FileVersionStrategy),
		TableStrategy:           indexer.TableStrategy(cfg.TableStrategy),
		DryRun:                  cfg.DryRun,
		ContinueOnError:         cfg.ContinueOnError,
		Concurrency:             cfg.Concurrency,
		BatchSize:               cfg.BatchSize,
	})
	if err != nil {
		return err
	}
	defer cursor.Close()

	logger.Infof("summary: indexed=%d migrated=%d errored=%d checkpoint=%s",
		summary.IndexedTotal, summary.MigratedTotal, summary.ErrorTotal, summary.CheckpointPath)

	if cfg.ExportCSVPath != "" {
		if err := exportCSV(cmd.Context(), cursor, cfg.ExportCSVPath); err != nil {
			return fmt.Errorf("exporting csv: %w", err)
		}
	}
	return nil
}

func exportCSV(ctx context.Context, cursor *resultcursor.Cursor, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return resultcursor.ExportCSV(ctx, cursor, f)
}
