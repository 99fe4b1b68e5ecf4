// Package migration ties the indexer, scheduler, and checkpoint store
// together into the single entry point a caller uses to run a migration:
// Engine.Run.
//
// Grounded on the teacher's pkg/migration/runner.go: a constructor that
// validates its inputs, SetLogger/SetMetricsSink setters, and a top-level
// Run that walks through ordered phases logging as it goes.
package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/entityvault/migrator/pkg/checkpoint"
	"github.com/entityvault/migrator/pkg/entityservice"
	"github.com/entityvault/migrator/pkg/indexer"
	"github.com/entityvault/migrator/pkg/metrics"
	"github.com/entityvault/migrator/pkg/resultcursor"
	"github.com/entityvault/migrator/pkg/scheduler"
	"github.com/entityvault/migrator/pkg/throttler"
	"github.com/siddontang/loggers"
	"github.com/sirupsen/logrus"
)

// Sentinel error kinds, wrapped with fmt.Errorf("...: %w", ...) around the
// underlying cause so callers can errors.Is against the phase that failed.
var (
	ErrValidation error = validationError{}
	ErrIndexing   error = indexingError{}
	ErrMigration  error = migrationError{}
	ErrCheckpoint error = checkpointError{}
)

type validationError struct{}

func (validationError) Error() string { return "validation error" }

type indexingError struct{}

func (indexingError) Error() string { return "indexing error" }

type migrationError struct{}

func (migrationError) Error() string { return "migration error" }

type checkpointError struct{}

func (checkpointError) Error() string { return "checkpoint error" }

// Request describes one migration invocation.
type Request struct {
	RootEntityID            string
	TargetStorageLocationID int64
	CheckpointPath          string

	FileVersionStrategy indexer.FileVersionStrategy
	TableStrategy       indexer.TableStrategy

	DryRun          bool
	ContinueOnError bool

	Concurrency int
	BatchSize   int
}

// Summary is what a successful Run returns.
type Summary struct {
	CheckpointPath string
	IndexedTotal   int
	MigratedTotal  int
	ErrorTotal     int
}

// Engine runs migrations against a single entityservice.Client.
type Engine struct {
	client entityservice.Client

	logger      loggers.Advanced
	metricsSink metrics.Sink
	throttler   throttler.Throttler
}

// New returns an Engine bound to client.
func New(client entityservice.Client) *Engine {
	return &Engine{
		client:      client,
		logger:      logrus.New(),
		metricsSink: metrics.NoopSink{},
		throttler:   throttler.Noop{},
	}
}

func (e *Engine) SetLogger(logger loggers.Advanced) {
	e.logger = logger
}

func (e *Engine) SetMetricsSink(sink metrics.Sink) {
	e.metricsSink = sink
}

func (e *Engine) SetThrottler(t throttler.Throttler) {
	e.throttler = t
}

func (r Request) validate() error {
	if r.RootEntityID == "" {
		return fmt.Errorf("%w: root entity id is required", ErrValidation)
	}
	if r.CheckpointPath == "" {
		return fmt.Errorf("%w: checkpoint path is required", ErrValidation)
	}
	opts := indexer.Options{FileVersionStrategy: r.FileVersionStrategy, TableStrategy: r.TableStrategy}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !r.DryRun && r.TargetStorageLocationID == 0 {
		return fmt.Errorf("%w: target storage location id is required unless dry-run", ErrValidation)
	}
	return nil
}

// Run validates req, opens (or resumes) the checkpoint at req.CheckpointPath,
// indexes req.RootEntityID, and, unless req.DryRun, migrates every indexed
// row. It returns a Summary and a ResultCursor positioned at the start of
// the checkpoint's payload rows.
func (e *Engine) Run(ctx context.Context, req Request) (Summary, *resultcursor.Cursor, error) {
	if err := req.validate(); err != nil {
		return Summary{}, nil, err
	}

	if !req.DryRun {
		if err := e.client.GetStorageLocation(ctx, req.TargetStorageLocationID); err != nil {
			return Summary{}, nil, fmt.Errorf("%w: verifying ownership of storage location %d: %w", ErrValidation, req.TargetStorageLocationID, err)
		}
	}

	store, err := checkpoint.Open(req.CheckpointPath)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}

	start := time.Now()
	e.logger.Infof("starting migration: entity=%s target-storage-location=%d dry-run=%v file-version-strategy=%q table-strategy=%q",
		req.RootEntityID, req.TargetStorageLocationID, req.DryRun, req.FileVersionStrategy, req.TableStrategy)

	idx := indexer.New(e.client, store, indexer.Options{
		FileVersionStrategy: req.FileVersionStrategy,
		TableStrategy:       req.TableStrategy,
		ContinueOnError:     req.ContinueOnError,
		CellConcurrency:     req.Concurrency,
	}, e.logger)

	indexedTotal, err := idx.Index(ctx, req.RootEntityID)
	if err != nil {
		store.Close()
		return Summary{}, nil, fmt.Errorf("%w: %w", ErrIndexing, err)
	}
	e.logger.Infof("indexing complete: indexed=%d elapsed=%s", indexedTotal, time.Since(start))

	var migratedTotal, errorTotal int
	if !req.DryRun {
		sched := scheduler.New(e.client, store, scheduler.Options{
			TargetStorageLocationID: req.TargetStorageLocationID,
			TableStrategy:           req.TableStrategy,
			Concurrency:             req.Concurrency,
			BatchSize:               req.BatchSize,
			ContinueOnError:         req.ContinueOnError,
			Throttler:               e.throttler,
			Metrics:                 e.metricsSink,
		}, e.logger)

		migratedTotal, errorTotal, err = sched.Run(ctx)
		if err != nil {
			store.Close()
			return Summary{}, nil, fmt.Errorf("%w: %w", ErrMigration, err)
		}
		e.logger.Infof("migration complete: migrated=%d errored=%d elapsed=%s", migratedTotal, errorTotal, time.Since(start))
	}

	summary := Summary{
		CheckpointPath: req.CheckpointPath,
		IndexedTotal:   indexedTotal,
		MigratedTotal:  migratedTotal,
		ErrorTotal:     errorTotal,
	}
	return summary, resultcursor.New(store, e.client), nil
}
