package indexer

import "fmt"

// FileVersionStrategy selects which file entity versions get a checkpoint
// row during indexing.
type FileVersionStrategy string

const (
	// FileVersionNone skips file entities entirely.
	FileVersionNone FileVersionStrategy = ""
	// FileVersionNew indexes a single row for a new version to be created
	// at migration time.
	FileVersionNew FileVersionStrategy = "new"
	// FileVersionAll indexes one row per existing version.
	FileVersionAll FileVersionStrategy = "all"
	// FileVersionLatest indexes only the current version, migrated in place.
	FileVersionLatest FileVersionStrategy = "latest"
)

func (s FileVersionStrategy) valid() bool {
	switch s {
	case FileVersionNone, FileVersionNew, FileVersionAll, FileVersionLatest:
		return true
	}
	return false
}

// TableStrategy selects whether and how table-attached files are indexed.
type TableStrategy string

const (
	// TableStrategyNone skips table entities entirely.
	TableStrategyNone TableStrategy = ""
	// TableStrategySnapshot takes a snapshot of the table before its first
	// attached file is migrated.
	TableStrategySnapshot TableStrategy = "snapshot"
	// TableStrategyNoSnapshot migrates table-attached files without taking
	// a snapshot first.
	TableStrategyNoSnapshot TableStrategy = "nosnapshot"
)

func (s TableStrategy) valid() bool {
	switch s {
	case TableStrategyNone, TableStrategySnapshot, TableStrategyNoSnapshot:
		return true
	}
	return false
}

// Options configures an Indexer.
type Options struct {
	FileVersionStrategy FileVersionStrategy
	TableStrategy       TableStrategy

	// ContinueOnError, when true, logs and skips an entity that fails to
	// index rather than aborting the whole walk.
	ContinueOnError bool

	// CellConcurrency bounds how many table cells are fetched concurrently
	// while indexing a single table entity. Zero means sequential.
	CellConcurrency int
}

// Validate enforces spec.md's strategy-combination and enum-value rules.
func (o Options) Validate() error {
	if o.FileVersionStrategy == FileVersionNone && o.TableStrategy == TableStrategyNone {
		return fmt.Errorf("no value for either file version strategy or table strategy, nothing selected for migration")
	}
	if !o.FileVersionStrategy.valid() {
		return fmt.Errorf("invalid file version strategy %q", o.FileVersionStrategy)
	}
	if !o.TableStrategy.valid() {
		return fmt.Errorf("invalid table strategy %q", o.TableStrategy)
	}
	return nil
}
