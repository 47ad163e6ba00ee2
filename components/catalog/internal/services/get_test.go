package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogGetResolvesObjectStoreFileDirectly(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)

	mock.ExpectQuery(`SELECT id, label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "user", "group"}).AddRow(int64(1), "holding-a", "alice", "group-a"))
	mock.ExpectQuery(`SELECT f.id, f.original_path`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "original_path", "path_type", "link_path", "size", "user", "group", "permissions", "transaction_id"}).
			AddRow(int64(5), "/a/b", model.PathTypeFile, "", int64(10), "alice", "group-a", uint32(0o644), int64(2)))
	mock.ExpectQuery(`SELECT id, storage_type`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_type", "url_scheme", "url_netloc", "root", "path", "access_time", "file_id", "aggregation_id"}).
			AddRow(int64(9), model.StorageObjectStore, "s3", "tenancy-a", "root", "object-name", time.Now(), int64(5), nil))

	result, err := cat.Get(context.Background(), model.Details{User: "alice", HoldingLabel: "holding-a"}, []string{"/a/b"})
	require.NoError(t, err)
	assert.False(t, result.NeedsRestore)
	require.Len(t, result.Resolved, 1)
	assert.Equal(t, "/a/b", result.Resolved[0].OriginalPath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogGetFlagsArchiveRestoreWhenOnlyTapeLocationExists(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)

	mock.ExpectQuery(`SELECT id, label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "user", "group"}).AddRow(int64(1), "holding-a", "alice", "group-a"))
	mock.ExpectQuery(`SELECT f.id, f.original_path`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "original_path", "path_type", "link_path", "size", "user", "group", "permissions", "transaction_id"}).
			AddRow(int64(5), "/a/b", model.PathTypeFile, "", int64(10), "alice", "group-a", uint32(0o644), int64(2)))
	mock.ExpectQuery(`SELECT id, storage_type`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_type", "url_scheme", "url_netloc", "root", "path", "access_time", "file_id", "aggregation_id"}).
			AddRow(int64(9), model.StorageTape, "", "", "", "tape.tar", time.Now(), int64(5), int64(3)))
	mock.ExpectQuery(`INSERT INTO location`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(20)))

	result, err := cat.Get(context.Background(), model.Details{User: "alice", HoldingLabel: "holding-a"}, []string{"/a/b"})
	require.NoError(t, err)
	assert.True(t, result.NeedsRestore)
	assert.Contains(t, result.AggregateGroups, "aggregation-3")
	assert.NoError(t, mock.ExpectationsWereMet())
}
