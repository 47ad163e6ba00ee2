package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/cedadev/nlds-go/pkg/mpostgres"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T) (*mpostgres.Connection, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn := &mpostgres.Connection{
		DB:        dbresolver.New(dbresolver.WithPrimaryDBs(db), dbresolver.WithReplicaDBs(db)),
		Connected: true,
	}

	return conn, mock
}

func TestHoldingRepositoryCreate(t *testing.T) {
	t.Parallel()

	conn, mock := newTestConnection(t)
	repo := NewHoldingRepository(conn)

	mock.ExpectQuery(`INSERT INTO holding`).
		WithArgs("my-label", "alice", "group-a").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	h, err := repo.Create(context.Background(), &model.Holding{Label: "my-label", User: "alice", Group: "group-a"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), h.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldingRepositoryFindByLabelOrID(t *testing.T) {
	t.Parallel()

	conn, mock := newTestConnection(t)
	repo := NewHoldingRepository(conn)

	rows := sqlmock.NewRows([]string{"id", "label", "user", "group"}).
		AddRow(int64(1), "holding-a", "alice", "group-a")
	mock.ExpectQuery(`SELECT (.+) FROM holding`).WillReturnRows(rows)

	found, err := repo.FindByLabelOrID(context.Background(), "alice", "holding-a", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "holding-a", found[0].Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldingRepositoryFindByLabelOrIDNoMatch(t *testing.T) {
	t.Parallel()

	conn, mock := newTestConnection(t)
	repo := NewHoldingRepository(conn)

	mock.ExpectQuery(`SELECT (.+) FROM holding`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "user", "group"}))

	found, err := repo.FindByLabelOrID(context.Background(), "alice", "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTagRepositoryPutUpsertsEachKey(t *testing.T) {
	t.Parallel()

	conn, mock := newTestConnection(t)
	repo := NewTagRepository(conn)

	mock.ExpectExec(`INSERT INTO tag`).
		WithArgs("project", "nlds", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Put(context.Background(), 3, map[string]string{"project": "nlds"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
