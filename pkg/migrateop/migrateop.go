// Package migrateop implements the three leaf migration operations the
// scheduler dispatches. Each wraps an entityservice.Client call and returns
// the id of the new file handle, or an error.
//
// Grounded on original_source/synapseutils/migrate_functions.py's
// _create_new_file_version, _migrate_file_version, and
// _migrate_table_attached_file.
package migrateop

import (
	"context"
	"fmt"
	"strconv"

	"github.com/entityvault/migrator/pkg/entityservice"
	"github.com/entityvault/migrator/pkg/work"
)

// CreateNewFileVersion copies the payload behind fromFileHandleID to
// targetStorageLocationID and stores it as a brand new version of the file
// entity identified by key.
func CreateNewFileVersion(ctx context.Context, client entityservice.Client, key work.Key, fromFileHandleID string, targetStorageLocationID int64, exec entityservice.Executor) (string, error) {
	entity, err := client.GetEntity(ctx, key.ID, nil)
	if err != nil {
		return "", fmt.Errorf("fetching entity %s: %w", key.ID, err)
	}

	toFileHandleID, err := client.MultipartCopy(ctx, entityservice.Association{
		FileHandleID:      fromFileHandleID,
		AssociateObjectID: key.ID,
		ObjectType:        entityservice.AssociationFileEntity,
	}, targetStorageLocationID, exec)
	if err != nil {
		return "", fmt.Errorf("copying file handle for %s: %w", key.ID, err)
	}

	entity.DataFileHandleID = toFileHandleID
	if err := client.Store(ctx, entity); err != nil {
		return "", fmt.Errorf("storing new version of %s: %w", key.ID, err)
	}
	return toFileHandleID, nil
}

// MigrateFileVersionInPlace copies the payload behind fromFileHandleID and
// updates the specific entity version named by key.Version to point at it,
// without creating a new version.
func MigrateFileVersionInPlace(ctx context.Context, client entityservice.Client, key work.Key, fromFileHandleID string, targetStorageLocationID int64, exec entityservice.Executor) (string, error) {
	if key.Version == nil {
		return "", fmt.Errorf("migrating %s in place requires a version", key.ID)
	}

	toFileHandleID, err := client.MultipartCopy(ctx, entityservice.Association{
		FileHandleID:      fromFileHandleID,
		AssociateObjectID: key.ID,
		ObjectType:        entityservice.AssociationFileEntity,
	}, targetStorageLocationID, exec)
	if err != nil {
		return "", fmt.Errorf("copying file handle for %s version %d: %w", key.ID, *key.Version, err)
	}

	path := fmt.Sprintf("/entity/%s/version/%d/filehandle", key.ID, *key.Version)
	if err := client.Put(ctx, path, map[string]string{
		"oldFileHandleId": fromFileHandleID,
		"newFileHandleId": toFileHandleID,
	}); err != nil {
		return "", fmt.Errorf("updating file handle for %s version %d: %w", key.ID, *key.Version, err)
	}
	return toFileHandleID, nil
}

// MigrateTableAttachedFile copies the payload behind fromFileHandleID and
// writes it back into the table cell named by key.RowID/key.ColID.
func MigrateTableAttachedFile(ctx context.Context, client entityservice.Client, key work.Key, fromFileHandleID string, targetStorageLocationID int64, exec entityservice.Executor) (string, error) {
	if key.RowID == nil || key.ColID == nil {
		return "", fmt.Errorf("migrating table attached file for %s requires row and column", key.ID)
	}

	toFileHandleID, err := client.MultipartCopy(ctx, entityservice.Association{
		FileHandleID:      fromFileHandleID,
		AssociateObjectID: key.ID,
		ObjectType:        entityservice.AssociationTableEntity,
	}, targetStorageLocationID, exec)
	if err != nil {
		return "", fmt.Errorf("copying file handle for %s row %d col %d: %w", key.ID, *key.RowID, *key.ColID, err)
	}

	path := fmt.Sprintf("/entity/%s/table/partialRowSet", key.ID)
	if err := client.Put(ctx, path, map[string]any{
		"rowId":    *key.RowID,
		"values":   map[string]string{strconv.FormatInt(*key.ColID, 10): toFileHandleID},
	}); err != nil {
		return "", fmt.Errorf("writing back table cell for %s row %d col %d: %w", key.ID, *key.RowID, *key.ColID, err)
	}
	return toFileHandleID, nil
}
