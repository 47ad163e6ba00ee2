package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/cedadev/nlds-go/components/catalog/internal/adapters/postgres"
	"github.com/cedadev/nlds-go/pkg/mpostgres"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) (*Catalog, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn := &mpostgres.Connection{
		DB:        dbresolver.New(dbresolver.WithPrimaryDBs(db), dbresolver.WithReplicaDBs(db)),
		Connected: true,
	}

	return &Catalog{
		Holdings:     postgres.NewHoldingRepository(conn),
		Transactions: postgres.NewTransactionRepository(conn),
		Files:        postgres.NewFileRepository(conn),
		Locations:    postgres.NewLocationRepository(conn),
		Aggregations: postgres.NewAggregationRepository(conn),
		Checksums:    postgres.NewChecksumRepository(conn),
		Quotas:       postgres.NewQuotaRepository(conn),
	}, mock
}

func TestCatalogPutCataloguesEachFile(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)

	mock.ExpectQuery(`SELECT id, label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "user", "group"}))
	mock.ExpectQuery(`INSERT INTO holding`).
		WithArgs("txn-1", "alice", "group-a").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`INSERT INTO transaction`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectExec(`UPDATE quota SET used`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO file`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))

	files := model.FileList{{OriginalPath: "/a/b", Size: 10}}
	result, err := cat.Put(context.Background(), model.Details{TransactionID: "txn-1", User: "alice", Group: "group-a"}, files)
	require.NoError(t, err)
	assert.Len(t, result.Completed, 1)
	assert.Empty(t, result.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogPutQuotaExceededFailsWholeBatch(t *testing.T) {
	t.Parallel()

	cat, mock := newTestCatalog(t)

	mock.ExpectQuery(`SELECT id, label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "user", "group"}))
	mock.ExpectQuery(`INSERT INTO holding`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`INSERT INTO transaction`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectExec(`UPDATE quota SET used`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	files := model.FileList{{OriginalPath: "/a/b", Size: 10}, {OriginalPath: "/a/c", Size: 20}}
	result, err := cat.Put(context.Background(), model.Details{TransactionID: "txn-1", User: "alice", Group: "group-a"}, files)
	require.NoError(t, err)
	assert.Empty(t, result.Completed)
	assert.Len(t, result.Failed, 2)
	assert.Equal(t, "quota exceeded", result.Reasons["/a/b"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
