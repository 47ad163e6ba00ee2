package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/cedadev/nlds-go/components/monitor/internal/adapters/postgres"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/mpostgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) (*Monitor, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn := &mpostgres.Connection{
		DB:        dbresolver.New(dbresolver.WithPrimaryDBs(db), dbresolver.WithReplicaDBs(db)),
		Connected: true,
	}

	return &Monitor{
		Transactions: postgres.NewTransactionRepository(conn),
		SubRecords:   postgres.NewSubRecordRepository(conn),
		FailedFiles:  postgres.NewFailedFileRepository(conn),
		Warnings:     postgres.NewWarningRepository(conn),
	}, mock
}

func TestMonitorRecordUpdateAdvancesRatchetAndRecordsFailures(t *testing.T) {
	t.Parallel()

	mon, mock := newTestMonitor(t)

	mock.ExpectQuery(`SELECT id, transaction_id, job_label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "job_label", "user", "group", "api_action", "creation_time"}).
			AddRow(int64(1), "txn-1", "job-1", "alice", "group-a", model.ActionPut, time.Now()))
	mock.ExpectQuery(`SELECT id, sub_id, transaction_record_id, state`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sub_id", "transaction_record_id", "state", "retry_count", "last_updated"}).
			AddRow(int64(5), "sub-1", int64(1), model.StateRouting, 0, time.Now()))
	mock.ExpectQuery(`SELECT state FROM sub_record`).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(model.StateRouting))
	mock.ExpectExec(`UPDATE sub_record SET state`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := mon.RecordUpdate(context.Background(), model.Details{TransactionID: "txn-1", JobLabel: "job-1", User: "alice", Group: "group-a"}, model.StateIndexing, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitorRecordUpdateDropsDisallowedTransition(t *testing.T) {
	t.Parallel()

	mon, mock := newTestMonitor(t)

	mock.ExpectQuery(`SELECT id, transaction_id, job_label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "job_label", "user", "group", "api_action", "creation_time"}).
			AddRow(int64(1), "txn-1", "job-1", "alice", "group-a", model.ActionPut, time.Now()))
	mock.ExpectQuery(`SELECT id, sub_id, transaction_record_id, state`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sub_id", "transaction_record_id", "state", "retry_count", "last_updated"}).
			AddRow(int64(5), "sub-1", int64(1), model.StateComplete, 0, time.Now()))
	mock.ExpectQuery(`SELECT state FROM sub_record`).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(model.StateComplete))

	err := mon.RecordUpdate(context.Background(), model.Details{TransactionID: "txn-1", JobLabel: "job-1", User: "alice", Group: "group-a"}, model.StateIndexing, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitorRecordUpdateFailedIncrementsRetryAndRecordsFailedFiles(t *testing.T) {
	t.Parallel()

	mon, mock := newTestMonitor(t)

	mock.ExpectQuery(`SELECT id, transaction_id, job_label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "job_label", "user", "group", "api_action", "creation_time"}).
			AddRow(int64(1), "txn-1", "job-1", "alice", "group-a", model.ActionPut, time.Now()))
	mock.ExpectQuery(`SELECT id, sub_id, transaction_record_id, state`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sub_id", "transaction_record_id", "state", "retry_count", "last_updated"}).
			AddRow(int64(5), "sub-1", int64(1), model.StateRouting, 0, time.Now()))
	mock.ExpectQuery(`SELECT state FROM sub_record`).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(model.StateRouting))
	mock.ExpectExec(`UPDATE sub_record SET state`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sub_record SET retry_count`).
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO failed_file`).
		WithArgs("/a/b", "disk full", int64(5)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := mon.RecordUpdate(context.Background(), model.Details{TransactionID: "txn-1", JobLabel: "job-1", User: "alice", Group: "group-a"}, model.StateFailed, map[string]string{"/a/b": "disk full"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitorStatRollsUpSubRecords(t *testing.T) {
	t.Parallel()

	mon, mock := newTestMonitor(t)

	mock.ExpectQuery(`SELECT id, transaction_id, job_label`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "job_label", "user", "group", "api_action", "creation_time"}).
			AddRow(int64(1), "txn-1", "job-1", "alice", "group-a", model.ActionPut, time.Now()))
	mock.ExpectQuery(`SELECT id, sub_id, transaction_record_id, state, retry_count, last_updated FROM sub_record WHERE transaction_record_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sub_id", "transaction_record_id", "state", "retry_count", "last_updated"}).
			AddRow(int64(5), "sub-1", int64(1), model.StateComplete, 0, time.Now()).
			AddRow(int64(6), "sub-2", int64(1), model.StateCataloging, 0, time.Now()))

	stat, err := mon.Stat(context.Background(), "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "txn-1", stat.Record.TransactionID)
	assert.Len(t, stat.Subs, 2)
	assert.Equal(t, model.StateCataloging, stat.Overall)
	require.NoError(t, mock.ExpectationsWereMet())
}
