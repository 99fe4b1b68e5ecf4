// Package scheduler implements phase two of the migration: an ordered,
// checkpoint-resumable dispatcher over the rows the indexer marked
// INDEXED, with a bounded, sharable worker pool and wait-any/wait-all
// drain semantics.
//
// Grounded on original_source/synapseutils/migrate_functions.py's migrate()
// main loop and _wait_futures (FIRST_COMPLETED/ALL_COMPLETED), and on the
// teacher's atomically-tracked state machine in pkg/migration/runner.go.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/entityvault/migrator/pkg/checkpoint"
	"github.com/entityvault/migrator/pkg/entityservice"
	"github.com/entityvault/migrator/pkg/indexer"
	"github.com/entityvault/migrator/pkg/metrics"
	"github.com/entityvault/migrator/pkg/migrateop"
	"github.com/entityvault/migrator/pkg/throttler"
	"github.com/entityvault/migrator/pkg/work"
	"github.com/siddontang/loggers"
)

// DefaultBatchSize bounds how many INDEXED rows are pulled from the
// checkpoint store per scan.
const DefaultBatchSize = checkpoint.DefaultBatchSize

// Options configures a Scheduler.
type Options struct {
	TargetStorageLocationID int64
	TableStrategy           indexer.TableStrategy

	// Concurrency is the capacity of the worker pool handed to
	// MultipartCopy for nested fan-out. Outer dispatch tasks do not draw
	// from that pool; at most Concurrency/2 (minimum 1) of them are in
	// flight at once. Defaults to 1 if zero or negative.
	Concurrency int
	BatchSize   int

	ContinueOnError bool

	Throttler throttler.Throttler
	Metrics   metrics.Sink
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.BatchSize < 1 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Throttler == nil {
		o.Throttler = throttler.Noop{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NoopSink{}
	}
	return o
}

// Scheduler dispatches migration work recorded in a checkpoint.Store.
type Scheduler struct {
	client entityservice.Client
	store  *checkpoint.Store
	opts   Options
	logger loggers.Advanced

	pool *pool

	currentState schedulerState
}

// New returns a Scheduler.
func New(client entityservice.Client, store *checkpoint.Store, opts Options, logger loggers.Advanced) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		client: client,
		store:  store,
		opts:   opts,
		logger: logger,
		pool:   newPool(opts.Concurrency),
	}
}

type taskOutcome struct {
	key            work.Key
	toFileHandleID string
	err            error
}

// Run dispatches every INDEXED payload row to its leaf migration operation,
// committing each outcome to the checkpoint store as it completes, and
// returns the number migrated and errored. If ContinueOnError is false, Run
// stops dispatching on the first leaf error, waits for the tasks already in
// flight and commits their outcomes, then returns that first error.
func (s *Scheduler) Run(ctx context.Context) (migratedTotal, errorTotal int, err error) {
	s.setCurrentState(stateDispatching)

	// maxConcurrentTasks caps in-flight outer tasks at half of
	// Concurrency, mirroring the original's
	// max_concurrent_file_copies = thread_count / 2.
	maxConcurrentTasks := s.opts.Concurrency / 2
	if maxConcurrentTasks < 1 {
		maxConcurrentTasks = 1
	}

	results := make(chan taskOutcome)
	inFlight := 0
	cursor := work.Key{}
	lastTableID := ""

	drainOne := func() error {
		outcome := <-results
		inFlight--
		if cerr := s.commit(ctx, outcome); cerr != nil {
			return cerr
		}
		if outcome.err != nil {
			errorTotal++
			s.opts.Metrics.IncrCounter("migration.errored", 1, map[string]string{"type": outcome.key.Type.String()})
			if !s.opts.ContinueOnError {
				return outcome.err
			}
		} else {
			migratedTotal++
			s.opts.Metrics.IncrCounter("migration.migrated", 1, map[string]string{"type": outcome.key.Type.String()})
		}
		return nil
	}

	// abort lets the tasks still in flight finish and commits their
	// outcomes before returning cause.
	abort := func(cause error) (int, int, error) {
		for inFlight > 0 {
			_ = drainOne()
		}
		return migratedTotal, errorTotal, cause
	}

	for {
		rows, scanErr := s.store.RangeScanIndexed(ctx, cursor, s.opts.BatchSize)
		if scanErr != nil {
			return migratedTotal, errorTotal, fmt.Errorf("scanning indexed rows: %w", scanErr)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			if inFlight >= maxConcurrentTasks {
				if err := drainOne(); err != nil {
					return abort(err)
				}
			}

			cursor = row.Key

			if row.Key.Type == work.TypeTableAttachedFile && row.Key.ID != lastTableID && s.opts.TableStrategy == indexer.TableStrategySnapshot {
				if err := s.client.CreateSnapshot(ctx, row.Key.ID); err != nil {
					return migratedTotal, errorTotal, fmt.Errorf("snapshotting table %s: %w", row.Key.ID, err)
				}
			}
			lastTableID = row.Key.ID

			if err := s.opts.Throttler.Wait(ctx); err != nil {
				return migratedTotal, errorTotal, fmt.Errorf("waiting on throttle: %w", err)
			}

			inFlight++
			go s.runTask(ctx, row, results)
		}
	}

	s.setCurrentState(stateDraining)
	for inFlight > 0 {
		if err := drainOne(); err != nil {
			return abort(err)
		}
	}

	s.setCurrentState(stateClosed)
	return migratedTotal, errorTotal, nil
}

func (s *Scheduler) runTask(ctx context.Context, row checkpoint.Row, results chan<- taskOutcome) {
	start := time.Now()
	toFileHandleID, err := s.dispatch(ctx, row)
	s.opts.Metrics.ObserveDuration("migration.task", time.Since(start), map[string]string{"type": row.Key.Type.String()})
	results <- taskOutcome{key: row.Key, toFileHandleID: toFileHandleID, err: err}
}

func (s *Scheduler) dispatch(ctx context.Context, row checkpoint.Row) (string, error) {
	targetStorageLocationID := s.opts.TargetStorageLocationID

	switch row.Key.Type {
	case work.TypeFile:
		if row.Key.Version == nil {
			return migrateop.CreateNewFileVersion(ctx, s.client, row.Key, row.FromFileHandleID, targetStorageLocationID, s.pool)
		}
		return migrateop.MigrateFileVersionInPlace(ctx, s.client, row.Key, row.FromFileHandleID, targetStorageLocationID, s.pool)
	case work.TypeTableAttachedFile:
		return migrateop.MigrateTableAttachedFile(ctx, s.client, row.Key, row.FromFileHandleID, targetStorageLocationID, s.pool)
	default:
		return "", fmt.Errorf("unexpected key type %s for id %s", row.Key.Type, row.Key.ID)
	}
}

func (s *Scheduler) commit(ctx context.Context, outcome taskOutcome) error {
	status := work.StatusMigrated
	exception := ""
	if outcome.err != nil {
		status = work.StatusErrored
		exception = outcome.err.Error()
	}
	return s.store.UpdateOutcome(ctx, checkpoint.Outcome{
		Key:            outcome.key,
		Status:         status,
		ToFileHandleID: outcome.toFileHandleID,
		Exception:      exception,
	})
}
