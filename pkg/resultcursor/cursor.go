// Package resultcursor provides a streaming, read-only view over a
// completed migration's checkpoint rows, without loading the whole run
// into memory.
//
// Grounded on original_source/synapseutils/migrate_functions.py's
// MigrationResult.get_migrations/as_csv: a lazy generator over the sqlite
// rows with column-name resolution cached across the cursor's lifetime.
package resultcursor

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/entityvault/migrator/pkg/checkpoint"
	"github.com/entityvault/migrator/pkg/entityservice"
	"github.com/entityvault/migrator/pkg/work"
)

// Entry is one resolved migration result row, with its column id resolved
// to a human-readable name.
type Entry struct {
	ID                    string
	Type                  work.EntityType
	Version               *int
	RowID                 *int64
	ColName               string
	FromStorageLocationID *int64
	FromFileHandleID      string
	ToFileHandleID        string
	Status                work.Status
	Exception             string
}

// Cursor streams payload (FILE/TABLE_ATTACHED_FILE) rows out of a
// checkpoint store in ascending composite-key order (the order
// checkpoint.Store.RangeScanPayload returns), not in insertion order,
// resolving column ids to names lazily and caching the resolution for the
// cursor's lifetime.
type Cursor struct {
	store  *checkpoint.Store
	client entityservice.Client

	batchSize int
	colNames  map[int64]string

	buf    []checkpoint.Row
	cursor work.Key
	done   bool
}

// New returns a Cursor over store. client is used only to resolve column
// names for table-attached-file rows; it may be nil if the run contains no
// such rows.
func New(store *checkpoint.Store, client entityservice.Client) *Cursor {
	return &Cursor{
		store:     store,
		client:    client,
		batchSize: checkpoint.DefaultBatchSize,
		colNames:  make(map[int64]string),
	}
}

// Close releases the underlying checkpoint store. Callers that obtained a
// Cursor from migration.Engine.Run own the checkpoint file for as long as
// the cursor is in use and should Close it when done.
func (c *Cursor) Close() error {
	return c.store.Close()
}

// Next returns the next entry, or io.EOF once every row has been consumed.
func (c *Cursor) Next(ctx context.Context) (Entry, error) {
	for len(c.buf) == 0 {
		if c.done {
			return Entry{}, io.EOF
		}
		rows, err := c.store.RangeScanPayload(ctx, c.cursor, c.batchSize)
		if err != nil {
			return Entry{}, fmt.Errorf("scanning migration results: %w", err)
		}
		if len(rows) == 0 {
			c.done = true
			return Entry{}, io.EOF
		}
		c.cursor = rows[len(rows)-1].Key
		c.buf = rows
	}

	row := c.buf[0]
	c.buf = c.buf[1:]
	return c.resolve(ctx, row)
}

func (c *Cursor) resolve(ctx context.Context, row checkpoint.Row) (Entry, error) {
	entry := Entry{
		ID:                    row.Key.ID,
		Type:                  row.Key.Type,
		Version:               row.Key.Version,
		RowID:                 row.Key.RowID,
		FromStorageLocationID: row.FromStorageLocationID,
		FromFileHandleID:      row.FromFileHandleID,
		ToFileHandleID:        row.ToFileHandleID,
		Status:                row.Status,
		Exception:             row.Exception,
	}

	if row.Key.ColID == nil {
		return entry, nil
	}
	colID := *row.Key.ColID
	name, ok := c.colNames[colID]
	if !ok {
		col, err := c.client.GetColumn(ctx, colID)
		if err != nil {
			return Entry{}, fmt.Errorf("resolving column %d: %w", colID, err)
		}
		name = col.Name
		c.colNames[colID] = name
	}
	entry.ColName = name
	return entry, nil
}

// csvHeader is fixed, matching the original's as_csv header exactly.
var csvHeader = []string{
	"id",
	"type",
	"version",
	"row_id",
	"col_name",
	"from_storage_location_id",
	"from_file_handle_id",
	"to_file_handle_id",
	"status",
	"exception",
}

// ExportCSV writes every remaining entry in the cursor to w as CSV with a
// fixed header, consuming the cursor.
func ExportCSV(ctx context.Context, c *Cursor, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for {
		entry, err := c.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := writer.Write(entryToRecord(entry)); err != nil {
			return fmt.Errorf("writing csv row for %s: %w", entry.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func entryToRecord(e Entry) []string {
	return []string{
		e.ID,
		e.Type.String(),
		optInt(e.Version),
		optInt64(e.RowID),
		e.ColName,
		optInt64(e.FromStorageLocationID),
		e.FromFileHandleID,
		e.ToFileHandleID,
		e.Status.String(),
		e.Exception,
	}
}

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func optInt64(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}
