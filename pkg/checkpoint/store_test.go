package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/entityvault/migrator/pkg/work"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertMany_IgnoresDuplicatePrimaryKey(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	row := Row{
		Key:    work.Key{ID: "syn1", Type: work.TypeFile},
		Status: work.StatusIndexed,
	}
	require.NoError(t, s.InsertMany(ctx, []Row{row}))
	require.NoError(t, s.InsertMany(ctx, []Row{row})) // resumption re-index, should be a no-op

	indexed, err := s.HasIndexed(ctx, "syn1")
	require.NoError(t, err)
	assert.True(t, indexed)

	rows, err := s.RangeScanIndexed(ctx, work.Key{}, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestInsertMany_NullVersionsDoNotCollideAcrossDistinctEntities(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rows := []Row{
		{Key: work.Key{ID: "syn1", Type: work.TypeFile}, Status: work.StatusIndexed},
		{Key: work.Key{ID: "syn2", Type: work.TypeFile}, Status: work.StatusIndexed},
	}
	require.NoError(t, s.InsertMany(ctx, rows))

	got, err := s.RangeScanIndexed(ctx, work.Key{}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestHasIndexed_FalseUntilIndexed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	indexed, err := s.HasIndexed(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, indexed)
}

func TestRangeScanIndexed_OrderingAndCursorAdvance(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rows := []Row{
		{Key: work.Key{ID: "syn1", Type: work.TypeFile, Version: work.IntPtr(3)}, Status: work.StatusIndexed},
		{Key: work.Key{ID: "syn1", Type: work.TypeFile, Version: work.IntPtr(1)}, Status: work.StatusIndexed},
		{Key: work.Key{ID: "syn1", Type: work.TypeFile, Version: work.IntPtr(2)}, Status: work.StatusIndexed},
		{Key: work.Key{ID: "syn2", Type: work.TypeTableAttachedFile, RowID: work.Int64Ptr(1), ColID: work.Int64Ptr(1)}, Status: work.StatusIndexed},
	}
	require.NoError(t, s.InsertMany(ctx, rows))

	first, err := s.RangeScanIndexed(ctx, work.Key{}, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, *first[0].Key.Version)
	assert.Equal(t, 2, *first[1].Key.Version)

	cursor := first[len(first)-1].Key
	second, err := s.RangeScanIndexed(ctx, cursor, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 3, *second[0].Key.Version)
	assert.Equal(t, "syn2", second[1].Key.ID)

	done, err := s.RangeScanIndexed(ctx, second[len(second)-1].Key, 2)
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestRangeScanIndexed_ExcludesContainerRows(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.InsertMany(ctx, []Row{
		{Key: work.Key{ID: "syn1", Type: work.TypeProject}, Status: work.StatusIndexed},
		{Key: work.Key{ID: "syn2", Type: work.TypeFile}, Status: work.StatusIndexed},
	}))

	rows, err := s.RangeScanIndexed(ctx, work.Key{}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "syn2", rows[0].Key.ID)
}

func TestUpdateOutcome_AffectsExactlyMatchingRow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.InsertMany(ctx, []Row{
		{Key: work.Key{ID: "syn1", Type: work.TypeFile}, Status: work.StatusIndexed},
	}))

	require.NoError(t, s.UpdateOutcome(ctx, Outcome{
		Key:            work.Key{ID: "syn1", Type: work.TypeFile},
		Status:         work.StatusMigrated,
		ToFileHandleID: "fh999",
	}))

	rows, err := s.RangeScanIndexed(ctx, work.Key{}, 10)
	require.NoError(t, err)
	assert.Empty(t, rows) // no longer INDEXED

	indexed, err := s.HasIndexed(ctx, "syn1")
	require.NoError(t, err)
	assert.True(t, indexed)
}

func TestUpdateOutcome_NoMatchingRowIsAnError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.UpdateOutcome(ctx, Outcome{
		Key:    work.Key{ID: "missing", Type: work.TypeFile},
		Status: work.StatusMigrated,
	})
	assert.Error(t, err)
}
