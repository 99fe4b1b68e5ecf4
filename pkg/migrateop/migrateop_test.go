package migrateop

import (
	"context"
	"errors"
	"testing"

	"github.com/entityvault/migrator/pkg/entityservice"
	"github.com/entityvault/migrator/pkg/work"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	entities map[string]entityservice.Entity
	stored   entityservice.Entity
	puts     []putCall
	copyErr  error
}

type putCall struct {
	path string
	body any
}

func (f *fakeClient) GetEntity(_ context.Context, id string, _ *int) (entityservice.Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return entityservice.Entity{}, errors.New("not found")
	}
	return e, nil
}
func (f *fakeClient) ListChildren(context.Context, string, []entityservice.ConcreteType) ([]entityservice.ChildRef, error) {
	return nil, nil
}
func (f *fakeClient) ListVersions(context.Context, string) ([]int, error) { return nil, nil }
func (f *fakeClient) ListTableColumns(context.Context, string) ([]entityservice.Column, error) {
	return nil, nil
}
func (f *fakeClient) GetColumn(context.Context, int64) (entityservice.Column, error) {
	return entityservice.Column{}, nil
}
func (f *fakeClient) TableQuery(context.Context, string, []entityservice.Column) ([]entityservice.TableRow, error) {
	return nil, nil
}
func (f *fakeClient) GetFileHandle(context.Context, string, entityservice.Association) (entityservice.FileHandle, error) {
	return entityservice.FileHandle{}, nil
}
func (f *fakeClient) MultipartCopy(_ context.Context, source entityservice.Association, _ int64, _ entityservice.Executor) (string, error) {
	if f.copyErr != nil {
		return "", f.copyErr
	}
	return "to-" + source.FileHandleID, nil
}
func (f *fakeClient) Store(_ context.Context, e entityservice.Entity) error {
	f.stored = e
	return nil
}
func (f *fakeClient) Put(_ context.Context, path string, body any) error {
	f.puts = append(f.puts, putCall{path: path, body: body})
	return nil
}
func (f *fakeClient) CreateSnapshot(context.Context, string) error    { return nil }
func (f *fakeClient) GetStorageLocation(context.Context, int64) error { return nil }

func TestCreateNewFileVersion(t *testing.T) {
	client := &fakeClient{entities: map[string]entityservice.Entity{
		"f1": {ID: "f1", DataFileHandleID: "fh1"},
	}}
	key := work.Key{ID: "f1", Type: work.TypeFile}

	toHandle, err := CreateNewFileVersion(context.Background(), client, key, "fh1", 99, nil)
	require.NoError(t, err)
	assert.Equal(t, "to-fh1", toHandle)
	assert.Equal(t, "to-fh1", client.stored.DataFileHandleID)
}

func TestCreateNewFileVersion_PropagatesCopyError(t *testing.T) {
	client := &fakeClient{
		entities: map[string]entityservice.Entity{"f1": {ID: "f1"}},
		copyErr:  errors.New("copy failed"),
	}
	_, err := CreateNewFileVersion(context.Background(), client, work.Key{ID: "f1"}, "fh1", 99, nil)
	assert.Error(t, err)
}

func TestMigrateFileVersionInPlace(t *testing.T) {
	client := &fakeClient{}
	key := work.Key{ID: "f1", Type: work.TypeFile, Version: work.IntPtr(3)}

	toHandle, err := MigrateFileVersionInPlace(context.Background(), client, key, "fh1", 99, nil)
	require.NoError(t, err)
	assert.Equal(t, "to-fh1", toHandle)
	require.Len(t, client.puts, 1)
	assert.Equal(t, "/entity/f1/version/3/filehandle", client.puts[0].path)
}

func TestMigrateFileVersionInPlace_RequiresVersion(t *testing.T) {
	client := &fakeClient{}
	_, err := MigrateFileVersionInPlace(context.Background(), client, work.Key{ID: "f1"}, "fh1", 99, nil)
	assert.Error(t, err)
}

func TestMigrateTableAttachedFile(t *testing.T) {
	client := &fakeClient{}
	key := work.Key{ID: "t1", Type: work.TypeTableAttachedFile, RowID: work.Int64Ptr(5), ColID: work.Int64Ptr(100)}

	toHandle, err := MigrateTableAttachedFile(context.Background(), client, key, "fh1", 99, nil)
	require.NoError(t, err)
	assert.Equal(t, "to-fh1", toHandle)
	require.Len(t, client.puts, 1)
	assert.Equal(t, "/entity/t1/table/partialRowSet", client.puts[0].path)
}

func TestMigrateTableAttachedFile_RequiresRowAndCol(t *testing.T) {
	client := &fakeClient{}
	_, err := MigrateTableAttachedFile(context.Background(), client, work.Key{ID: "t1"}, "fh1", 99, nil)
	assert.Error(t, err)
}
