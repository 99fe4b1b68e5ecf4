package checkpoint

import "github.com/entityvault/migrator/pkg/work"

// Row is a single checkpoint entry: a work.Key plus the status fields
// tracked during indexing and migration (spec.md §3.2).
type Row struct {
	Key work.Key

	// ParentID is the identifier of the nearest enclosing container, or
	// nil for the root entity.
	ParentID *string

	Status    work.Status
	Exception string

	FromStorageLocationID *int64
	FromFileHandleID      string
	ToFileHandleID        string
}

// Outcome is what the scheduler records against a row after a migration
// attempt completes.
type Outcome struct {
	Key            work.Key
	Status         work.Status
	ToFileHandleID string
	Exception      string
}
