package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cedadev/nlds-go/pkg/nlds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaRepositoryReserveWithinBudget(t *testing.T) {
	t.Parallel()

	conn, mock := newTestConnection(t)
	repo := NewQuotaRepository(conn)

	mock.ExpectExec(`UPDATE quota SET used`).
		WithArgs(int64(100), "group-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Reserve(context.Background(), "group-a", 100)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaRepositoryReserveExceedsBudget(t *testing.T) {
	t.Parallel()

	conn, mock := newTestConnection(t)
	repo := NewQuotaRepository(conn)

	mock.ExpectExec(`UPDATE quota SET used`).
		WithArgs(int64(100), "group-a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reserve(context.Background(), "group-a", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, nlds.ErrForbidden)
	assert.Equal(t, nlds.KindUser, nlds.Classify(err))
}

func TestQuotaRepositoryRelease(t *testing.T) {
	t.Parallel()

	conn, mock := newTestConnection(t)
	repo := NewQuotaRepository(conn)

	mock.ExpectExec(`UPDATE quota SET used = GREATEST`).
		WithArgs(int64(50), "group-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Release(context.Background(), "group-a", 50)
	require.NoError(t, err)
}
