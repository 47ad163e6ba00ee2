package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTagStore struct {
	byHolding map[int64]map[string]string
	byTag     map[string][]int64
}

func (f *fakeTagStore) Put(ctx context.Context, holdingID int64, tags map[string]string) error {
	return nil
}

func (f *fakeTagStore) Get(ctx context.Context, holdingID int64) (map[string]string, error) {
	return f.byHolding[holdingID], nil
}

func (f *fakeTagStore) FindHoldingIDsByTag(ctx context.Context, key, value string) ([]int64, error) {
	return f.byTag[key+"="+value], nil
}

func TestCatalogListHoldingsReturnsAllHoldingsForUserWithTags(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)
	cat.Tags = &fakeTagStore{byHolding: map[int64]map[string]string{1: {"project": "exp1"}}}

	mock.ExpectQuery(`SELECT id, label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "user", "group"}).AddRow(int64(1), "holding-a", "alice", "group-a"))

	views, err := cat.ListHoldings(context.Background(), "alice", "", 0, "", "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "holding-a", views[0].Label)
	assert.Equal(t, "exp1", views[0].Tags["project"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogListHoldingsFiltersByTag(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)
	cat.Tags = &fakeTagStore{
		byHolding: map[int64]map[string]string{1: {"project": "exp1"}, 2: {"project": "exp2"}},
		byTag:     map[string][]int64{"project=exp1": {1}},
	}

	mock.ExpectQuery(`SELECT id, label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "user", "group"}).
			AddRow(int64(1), "holding-a", "alice", "group-a").
			AddRow(int64(2), "holding-b", "alice", "group-a"))

	views, err := cat.ListHoldings(context.Background(), "alice", "", 0, "project", "exp1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "holding-a", views[0].Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogFindFilesResolvesSinglePathWithinHolding(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)

	mock.ExpectQuery(`SELECT id, label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "user", "group"}).AddRow(int64(1), "holding-a", "alice", "group-a"))
	mock.ExpectQuery(`SELECT f.id, f.original_path`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "original_path", "path_type", "link_path", "size", "user", "group", "permissions", "transaction_id"}).
			AddRow(int64(5), "/a/b", 0, "", int64(10), "alice", "group-a", uint32(0o644), int64(2)))

	files, err := cat.FindFiles(context.Background(), FindFilesQuery{User: "alice", HoldingLabel: "holding-a", OriginalPath: "/a/b"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "/a/b", files[0].OriginalPath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogFindFilesListsWholeHoldingWhenPathOmitted(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)

	mock.ExpectQuery(`SELECT id, label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "user", "group"}).AddRow(int64(1), "holding-a", "alice", "group-a"))
	mock.ExpectQuery(`SELECT f.id, f.original_path`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "original_path", "path_type", "link_path", "size", "user", "group", "permissions", "transaction_id"}).
			AddRow(int64(5), "/a/b", 0, "", int64(10), "alice", "group-a", uint32(0o644), int64(2)).
			AddRow(int64(6), "/a/c", 0, "", int64(20), "alice", "group-a", uint32(0o644), int64(2)))

	files, err := cat.FindFiles(context.Background(), FindFilesQuery{User: "alice", HoldingLabel: "holding-a"})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
