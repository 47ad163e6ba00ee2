package postgres

import (
	"context"

	"github.com/cedadev/nlds-go/pkg/mpostgres"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
)

// QuotaRepository tracks each group's usage against its allotment,
// enforced by catalog-put before any File row of the batch is created (§4.4).
type QuotaRepository struct {
	conn *mpostgres.Connection
}

func NewQuotaRepository(conn *mpostgres.Connection) *QuotaRepository {
	return &QuotaRepository{conn: conn}
}

func (r *QuotaRepository) Get(ctx context.Context, group string) (*model.Quota, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	q := &model.Quota{}

	row := db.QueryRowContext(ctx, `SELECT id, "group", size, used FROM quota WHERE "group" = $1`, group)
	if err := row.Scan(&q.ID, &q.Group, &q.Size, &q.Used); err != nil {
		return nil, mapPGError(err, "Quota")
	}

	return q, nil
}

// Reserve atomically adds delta to Used if the result would not exceed
// Size, returning nlds.ErrForbidden (quota exceeded) otherwise.
func (r *QuotaRepository) Reserve(ctx context.Context, group string, delta int64) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE quota SET used = used + $1 WHERE "group" = $2 AND used + $1 <= size`,
		delta, group)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return nlds.Wrap(nlds.KindUser, "Quota", nlds.ErrForbidden)
	}

	return nil
}

// Release gives back delta bytes on transaction failure or deletion.
func (r *QuotaRepository) Release(ctx context.Context, group string, delta int64) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `UPDATE quota SET used = GREATEST(0, used - $1) WHERE "group" = $2`, delta, group)

	return err
}
