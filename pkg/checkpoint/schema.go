package checkpoint

// schema is created idempotently on every Open, per spec.md §4.1.
//
// The primary key in spec.md §3.2 is matched "by equality or by
// null-equals-null" — ordinary SQL unique-index semantics treat NULL as
// distinct from every other value including other NULLs, which would defeat
// de-duplication on resumption for rows whose version/row_id/col_id is
// absent. The unique index is therefore built over COALESCE(column, -1)
// instead of the raw nullable columns.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS migrations (
	id text NOT NULL,
	type integer NOT NULL,
	version integer NULL,
	row_id integer NULL,
	col_id integer NULL,

	parent_id text NULL,
	status integer NOT NULL,
	exception text NULL,

	from_storage_location_id integer NULL,
	from_file_handle_id text NULL,
	to_file_handle_id text NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS migrations_pk ON migrations (
	id,
	type,
	COALESCE(row_id, -1),
	COALESCE(col_id, -1),
	COALESCE(version, -1)
);

CREATE INDEX IF NOT EXISTS migrations_status_cursor ON migrations (
	status, id, type, row_id, col_id, version
);
`
