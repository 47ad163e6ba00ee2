package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestCatalogDelReleasesQuotaAndRemovesFile(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)

	mock.ExpectQuery(`SELECT f.id, f.original_path`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "original_path", "path_type", "link_path", "size", "user", "group", "permissions", "transaction_id"}).
			AddRow(int64(5), "/a/b", model.PathTypeFile, "", int64(10), "alice", "group-a", uint32(0o644), int64(2)))
	mock.ExpectExec(`UPDATE quota SET used = GREATEST`).
		WithArgs(int64(10), "group-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM file`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	files := model.FileList{{OriginalPath: "/a/b"}}
	err := cat.Del(context.Background(), model.Details{TransactionID: "txn-1", Group: "group-a"}, files)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
