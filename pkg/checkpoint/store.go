// Package checkpoint implements the durable, embedded, single-writer
// relational store described in spec.md §4.1: the work plan and per-row
// status for a migration run, capable of exact resumption after a crash or
// interruption.
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/entityvault/migrator/pkg/work"
	_ "modernc.org/sqlite"
)

// DefaultBatchSize is the default bound on batched insert/scan operations.
// The scheduler lets its Options.BatchSize field override it for scans;
// the indexer's table-row inserts and the result cursor use it as is.
const DefaultBatchSize = 500

// Store is a single-file, single-writer checkpoint database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the checkpoint file at path and ensures the schema
// exists. The connection pool is capped at one connection: the store has
// exactly one writer for its whole lifetime (the indexer, then the
// scheduler), so there is no benefit to concurrent connections and every
// benefit to avoiding SQLITE_BUSY churn against the single file.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint store %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring checkpoint schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertMany inserts rows, ignoring any row that conflicts with an
// already-present primary key (see schema.go) so that re-running the
// indexer against an existing checkpoint is safe. All rows are inserted in
// a single transaction; on failure, nothing is committed.
func (s *Store) InsertMany(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO migrations (
			id, type, version, row_id, col_id,
			parent_id, status, exception,
			from_storage_location_id, from_file_handle_id, to_file_handle_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		var exception, fromHandle, toHandle any
		if row.Exception != "" {
			exception = row.Exception
		}
		if row.FromFileHandleID != "" {
			fromHandle = row.FromFileHandleID
		}
		if row.ToFileHandleID != "" {
			toHandle = row.ToFileHandleID
		}
		if _, err := stmt.ExecContext(ctx,
			row.Key.ID, int(row.Key.Type), nullableInt(row.Key.Version), nullableInt64(row.Key.RowID), nullableInt64(row.Key.ColID),
			nullableString(row.ParentID), int(row.Status), exception,
			nullableInt64(row.FromStorageLocationID), fromHandle, toHandle,
		); err != nil {
			return fmt.Errorf("inserting row %s: %w", row.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert transaction: %w", err)
	}
	return nil
}

// HasIndexed reports whether id has at least one row whose status is
// already INDEXED or later (MIGRATED/ALREADY_MIGRATED/ERRORED), meaning the
// indexer has already visited it on a prior run.
func (s *Store) HasIndexed(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM migrations WHERE id = ? AND status >= ? LIMIT 1`,
		id, int(work.StatusIndexed),
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking indexed state of %q: %w", id, err)
	}
	return true, nil
}

// RangeScanIndexed returns up to limit INDEXED payload rows (type FILE or
// TABLE_ATTACHED_FILE) whose key is strictly greater than cursor under the
// spec.md §4.3 total order, ordered ascending by that same order. An empty
// result means the scheduler has exhausted all pending work.
func (s *Store) RangeScanIndexed(ctx context.Context, cursor work.Key, limit int) ([]Row, error) {
	return s.rangeScanPayload(ctx, cursor, limit, true)
}

// RangeScanPayload returns up to limit payload rows (type FILE or
// TABLE_ATTACHED_FILE) whose key is strictly greater than cursor under the
// spec.md §4.3 total order, regardless of status. It is used by
// resultcursor to enumerate a completed run's outcomes, where rows have
// already moved past INDEXED.
func (s *Store) RangeScanPayload(ctx context.Context, cursor work.Key, limit int) ([]Row, error) {
	return s.rangeScanPayload(ctx, cursor, limit, false)
}

func (s *Store) rangeScanPayload(ctx context.Context, cursor work.Key, limit int, indexedOnly bool) ([]Row, error) {
	statusClause := ""
	args := []any{}
	if indexedOnly {
		statusClause = "status = ? AND"
		args = append(args, int(work.StatusIndexed))
	}
	args = append(args,
		cursor.ID, int(work.TypeFile), int(work.TypeTableAttachedFile),
		cursor.ID, int(work.TypeFile), sentinelInt(cursor.Version),
		cursor.ID, int(work.TypeTableAttachedFile), sentinelInt64(cursor.RowID), sentinelInt64(cursor.RowID), sentinelInt64(cursor.ColID),
		limit,
	)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			id, type, version, row_id, col_id,
			parent_id, status, exception,
			from_storage_location_id, from_file_handle_id, to_file_handle_id
		FROM migrations
		WHERE
			%s (
				(id > ? AND type IN (?, ?))
				OR (id = ? AND type = ? AND version IS NOT NULL AND version > ?)
				OR (id = ? AND type = ? AND (
					COALESCE(row_id, -1) > ?
					OR (COALESCE(row_id, -1) = ? AND COALESCE(col_id, -1) > ?)
				))
			)
		ORDER BY id, type, COALESCE(row_id, -1), COALESCE(col_id, -1), COALESCE(version, -1)
		LIMIT ?
	`, statusClause), args...)
	if err != nil {
		return nil, fmt.Errorf("range-scanning payload rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payload rows: %w", err)
	}
	return out, nil
}

// UpdateOutcome updates exactly the row matching key's status, to-handle,
// and exception text, per spec.md §4.1.
func (s *Store) UpdateOutcome(ctx context.Context, o Outcome) error {
	where, args := whereKey(o.Key)
	var toHandle, exception any
	if o.ToFileHandleID != "" {
		toHandle = o.ToFileHandleID
	}
	if o.Exception != "" {
		exception = o.Exception
	}
	args = append([]any{int(o.Status), toHandle, exception}, args...)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE migrations SET status = ?, to_file_handle_id = ?, exception = ? WHERE %s`, where),
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating outcome for %s: %w", o.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected for %s: %w", o.Key, err)
	}
	if n != 1 {
		return fmt.Errorf("updating outcome for %s: expected to affect 1 row, affected %d", o.Key, n)
	}
	return nil
}

func whereKey(k work.Key) (string, []any) {
	clauses := []string{"id = ?", "type = ?"}
	args := []any{k.ID, int(k.Type)}

	if k.Version != nil {
		clauses = append(clauses, "version = ?")
		args = append(args, *k.Version)
	} else {
		clauses = append(clauses, "version IS NULL")
	}
	if k.RowID != nil {
		clauses = append(clauses, "row_id = ?")
		args = append(args, *k.RowID)
	} else {
		clauses = append(clauses, "row_id IS NULL")
	}
	if k.ColID != nil {
		clauses = append(clauses, "col_id = ?")
		args = append(args, *k.ColID)
	} else {
		clauses = append(clauses, "col_id IS NULL")
	}

	joined := clauses[0]
	for _, c := range clauses[1:] {
		joined += " AND " + c
	}
	return joined, args
}

func scanRow(rows *sql.Rows) (Row, error) {
	var (
		id                                          string
		typ                                         int
		version, rowID, colID                       sql.NullInt64
		parentID                                    sql.NullString
		status                                      int
		exception                                   sql.NullString
		fromStorageLocationID                       sql.NullInt64
		fromFileHandleID, toFileHandleID             sql.NullString
	)
	if err := rows.Scan(
		&id, &typ, &version, &rowID, &colID,
		&parentID, &status, &exception,
		&fromStorageLocationID, &fromFileHandleID, &toFileHandleID,
	); err != nil {
		return Row{}, fmt.Errorf("scanning checkpoint row: %w", err)
	}

	row := Row{
		Key: work.Key{
			ID:   id,
			Type: work.EntityType(typ),
		},
		Status: work.Status(status),
	}
	if version.Valid {
		v := int(version.Int64)
		row.Key.Version = &v
	}
	if rowID.Valid {
		row.Key.RowID = &rowID.Int64
	}
	if colID.Valid {
		row.Key.ColID = &colID.Int64
	}
	if parentID.Valid {
		row.ParentID = &parentID.String
	}
	if exception.Valid {
		row.Exception = exception.String
	}
	if fromStorageLocationID.Valid {
		row.FromStorageLocationID = &fromStorageLocationID.Int64
	}
	if fromFileHandleID.Valid {
		row.FromFileHandleID = fromFileHandleID.String
	}
	if toFileHandleID.Valid {
		row.ToFileHandleID = toFileHandleID.String
	}
	return row, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func sentinelInt(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

func sentinelInt64(p *int64) int64 {
	if p == nil {
		return -1
	}
	return *p
}
