package resultcursor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/entityvault/migrator/pkg/checkpoint"
	"github.com/entityvault/migrator/pkg/entityservice"
	"github.com/entityvault/migrator/pkg/work"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeColumnClient struct {
	entityservice.Client
	calls int
	names map[int64]string
}

func (f *fakeColumnClient) GetColumn(_ context.Context, colID int64) (entityservice.Column, error) {
	f.calls++
	name, ok := f.names[colID]
	if !ok {
		return entityservice.Column{}, errors.New("unknown column")
	}
	return entityservice.Column{ID: colID, Name: name}, nil
}

func newTestStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	s, err := checkpoint.Open(t.TempDir() + "/checkpoint.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCursor_IteratesMigratedRowsInOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertMany(ctx, []checkpoint.Row{
		{Key: work.Key{ID: "f1", Type: work.TypeFile, Version: work.IntPtr(1)}, Status: work.StatusIndexed, FromFileHandleID: "fh1"},
		{Key: work.Key{ID: "f2", Type: work.TypeFile, Version: work.IntPtr(1)}, Status: work.StatusIndexed, FromFileHandleID: "fh2"},
	}))
	require.NoError(t, store.UpdateOutcome(ctx, checkpoint.Outcome{
		Key: work.Key{ID: "f1", Type: work.TypeFile, Version: work.IntPtr(1)}, Status: work.StatusMigrated, ToFileHandleID: "fh1-new",
	}))
	require.NoError(t, store.UpdateOutcome(ctx, checkpoint.Outcome{
		Key: work.Key{ID: "f2", Type: work.TypeFile, Version: work.IntPtr(1)}, Status: work.StatusErrored, Exception: "boom",
	}))

	c := New(store, nil)
	e1, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "f1", e1.ID)
	assert.Equal(t, work.StatusMigrated, e1.Status)
	assert.Equal(t, "fh1-new", e1.ToFileHandleID)

	e2, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "f2", e2.ID)
	assert.Equal(t, work.StatusErrored, e2.Status)
	assert.Equal(t, "boom", e2.Exception)

	_, err = c.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCursor_ResolvesAndCachesColumnNames(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertMany(ctx, []checkpoint.Row{
		{Key: work.Key{ID: "t1", Type: work.TypeTableAttachedFile, RowID: work.Int64Ptr(1), ColID: work.Int64Ptr(100)}, Status: work.StatusMigrated, FromFileHandleID: "fh1"},
		{Key: work.Key{ID: "t1", Type: work.TypeTableAttachedFile, RowID: work.Int64Ptr(2), ColID: work.Int64Ptr(100)}, Status: work.StatusMigrated, FromFileHandleID: "fh2"},
	}))

	client := &fakeColumnClient{names: map[int64]string{100: "attachment"}}
	c := New(store, client)

	e1, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "attachment", e1.ColName)

	e2, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "attachment", e2.ColName)

	assert.Equal(t, 1, client.calls) // cached after first resolution
}

func TestExportCSV_WritesFixedHeaderAndRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.InsertMany(ctx, []checkpoint.Row{
		{Key: work.Key{ID: "f1", Type: work.TypeFile}, Status: work.StatusMigrated, ToFileHandleID: "fh1-new"},
	}))

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(ctx, New(store, nil), &buf))

	out := buf.String()
	assert.Contains(t, out, "id,type,version,row_id,col_name,from_storage_location_id,from_file_handle_id,to_file_handle_id,status,exception")
	assert.Contains(t, out, "f1,FILE")
}
