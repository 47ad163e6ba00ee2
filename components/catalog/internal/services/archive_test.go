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

func TestCatalogArchiveNextCreatesPendingTapeLocations(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)

	mock.ExpectQuery(`SELECT f.id, f.original_path`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "original_path", "path_type", "link_path", "size", "user", "group", "permissions", "transaction_id"}).
			AddRow(int64(5), "/a/b", model.PathTypeFile, "", int64(10), "alice", "group-a", uint32(0o644), int64(2)))
	mock.ExpectQuery(`INSERT INTO location`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(40)))

	result, err := cat.ArchiveNext(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "/a/b", result.Files[0].OriginalPath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogArchiveUpdateResolvesPendingTapeLocation(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)

	mock.ExpectQuery(`INSERT INTO aggregation`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(`SELECT f.id, f.original_path`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "original_path", "path_type", "link_path", "size", "user", "group", "permissions", "transaction_id"}).
			AddRow(int64(5), "/a/b", model.PathTypeFile, "", int64(10), "alice", "group-a", uint32(0o644), int64(2)))
	mock.ExpectQuery(`SELECT id, storage_type`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_type", "url_scheme", "url_netloc", "root", "path", "access_time", "file_id", "aggregation_id"}).
			AddRow(int64(9), model.StorageTape, "", "", "", "", time.Now(), int64(5), nil))
	mock.ExpectExec(`UPDATE location SET url_scheme`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE location SET aggregation_id`).
		WithArgs(int64(7), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	agg := model.Aggregate{TarName: "bundle.tar", Members: model.FileList{{OriginalPath: "/a/b"}}}
	err := cat.ArchiveUpdate(context.Background(), model.Details{TransactionID: "txn-1"}, agg, "tape", "tenancy-a", "txn-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogArchiveDelRemovesPendingTapeLocation(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)

	mock.ExpectQuery(`SELECT f.id, f.original_path`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "original_path", "path_type", "link_path", "size", "user", "group", "permissions", "transaction_id"}).
			AddRow(int64(5), "/a/b", model.PathTypeFile, "", int64(10), "alice", "group-a", uint32(0o644), int64(2)))
	mock.ExpectQuery(`SELECT id, storage_type`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_type", "url_scheme", "url_netloc", "root", "path", "access_time", "file_id", "aggregation_id"}).
			AddRow(int64(9), model.StorageTape, "", "", "", "", time.Now(), int64(5), nil))
	mock.ExpectExec(`DELETE FROM location`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	files := model.FileList{{OriginalPath: "/a/b"}}
	err := cat.ArchiveDel(context.Background(), model.Details{TransactionID: "txn-1"}, files)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
