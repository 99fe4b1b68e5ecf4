// Package entityservice declares the external collaborator this engine
// depends on: the remote content repository. Per spec.md §1 and §6.1, the
// wire protocol is deliberately out of scope here — only the operations the
// core invokes are named, as an interface a caller supplies a concrete
// implementation for.
package entityservice

import "context"

// ConcreteType is the entity kind returned by GetEntity/ListChildren.
type ConcreteType string

const (
	ConcreteProject ConcreteType = "project"
	ConcreteFolder  ConcreteType = "folder"
	ConcreteFile    ConcreteType = "file"
	ConcreteTable   ConcreteType = "table"
)

// Entity is the subset of remote entity state the engine needs.
type Entity struct {
	ID                string
	ConcreteType      ConcreteType
	Version           int
	DataFileHandleID  string
	StorageLocationID int64
}

// ChildRef is a lightweight reference to a child of a container, as
// returned by ListChildren.
type ChildRef struct {
	ID           string
	ConcreteType ConcreteType
}

// Column describes a table column; ColumnType distinguishes file-handle
// columns from all others.
type Column struct {
	ID         int64
	Name       string
	ColumnType string // e.g. "FILEHANDLEID"
}

// TableRow is one row returned by a table query restricted to file-handle
// columns: the row/version identity plus one file handle id per requested
// column, indexed by column id.
type TableRow struct {
	RowID       int64
	RowVersion  int
	FileHandles map[int64]string // col id -> file handle id
}

// FileHandle carries the metadata the engine needs about a stored payload.
type FileHandle struct {
	ID                string
	StorageLocationID int64
}

// AssociationType identifies what kind of object a file handle is
// associated with, for the purposes of a multipart copy or fetch.
type AssociationType string

const (
	AssociationFileEntity  AssociationType = "FileEntity"
	AssociationTableEntity AssociationType = "TableEntity"
)

// Association pins a file handle to the object it belongs to, as required
// by several remote operations (table cell lookups, multipart copy).
type Association struct {
	FileHandleID      string
	AssociateObjectID string
	ObjectType        AssociationType
}

// Executor is the ambient worker-pool handle a MultipartCopy call must use
// for any nested concurrent work, rather than creating a pool of its own.
// This makes the ambient-worker-pool handoff described in spec.md §9 an
// explicit parameter instead of a scoped/global value.
type Executor interface {
	// Submit runs fn using this executor's pool, blocking if the pool is
	// saturated. Implementations must not spawn an unbounded number of
	// goroutines regardless of how many times Submit is called.
	Submit(ctx context.Context, fn func(ctx context.Context) error) error
}

// Client is the full set of remote operations the engine invokes, per
// spec.md §6.1.
type Client interface {
	// GetEntity fetches an entity, optionally at a specific version.
	// A nil version fetches the current/latest version.
	GetEntity(ctx context.Context, id string, version *int) (Entity, error)

	// ListChildren lists the direct children of a container, restricted to
	// the given concrete types.
	ListChildren(ctx context.Context, containerID string, includeTypes []ConcreteType) ([]ChildRef, error)

	// ListVersions lists every existing version number of a file entity.
	ListVersions(ctx context.Context, fileID string) ([]int, error)

	// ListTableColumns lists all columns of a table entity.
	ListTableColumns(ctx context.Context, tableID string) ([]Column, error)

	// GetColumn resolves column metadata by id, used by the result cursor
	// to resolve a human-readable column name.
	GetColumn(ctx context.Context, colID int64) (Column, error)

	// TableQuery queries a table restricted to the given columns (expected
	// to all be file-handle columns), returning one row per table row that
	// has at least one non-empty cell among them.
	TableQuery(ctx context.Context, tableID string, columns []Column) ([]TableRow, error)

	// GetFileHandle fetches file handle metadata (notably its current
	// storage location) given an association.
	GetFileHandle(ctx context.Context, fileHandleID string, assoc Association) (FileHandle, error)

	// MultipartCopy atomically copies the payload behind source to the
	// given target storage location, returning the id of the new file
	// handle. It must run any internal concurrent work through exec rather
	// than its own pool.
	MultipartCopy(ctx context.Context, source Association, targetStorageLocationID int64, exec Executor) (string, error)

	// Store persists entity edits. If the edited field is the data file
	// handle, this produces a new entity version.
	Store(ctx context.Context, entity Entity) error

	// Put issues a REST PUT against path with the given JSON-encodable
	// body, returning an error unless the response status is 2xx.
	Put(ctx context.Context, path string, body any) error

	// CreateSnapshot creates a snapshot version of a table entity.
	CreateSnapshot(ctx context.Context, tableID string) error

	// GetStorageLocation fetches a storage location by id, returning an
	// error if the caller does not own it.
	GetStorageLocation(ctx context.Context, id int64) error
}
