// Package postgres implements the catalog's relational store: holdings,
// transactions, files, locations, aggregations, checksums and quotas,
// following the teacher's one-repository-per-entity convention (§4.4.1).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/cedadev/nlds-go/pkg/mpostgres"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
	"github.com/jackc/pgx/v5/pgconn"
)

// HoldingRepository is a Postgres-specific implementation of holding
// storage. (user, label) is enforced unique by a database constraint; a
// violation surfaces as nlds.ErrDuplicateInHolding.
type HoldingRepository struct {
	conn      *mpostgres.Connection
	tableName string
}

func NewHoldingRepository(conn *mpostgres.Connection) *HoldingRepository {
	return &HoldingRepository{conn: conn, tableName: "holding"}
}

func (r *HoldingRepository) db(ctx context.Context) (dbresolver.DB, error) {
	return r.conn.GetDB(ctx)
}

// Create inserts a new Holding with the Label it is given; catalog-put
// (services.Catalog.Put) substitutes the transaction id when the request
// carries no label.
func (r *HoldingRepository) Create(ctx context.Context, h *model.Holding) (*model.Holding, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		`INSERT INTO holding (label, "user", "group") VALUES ($1, $2, $3) RETURNING id`,
		h.Label, h.User, h.Group)

	if err := row.Scan(&h.ID); err != nil {
		return nil, mapPGError(err, "Holding")
	}

	return h, nil
}

// FindByLabelOrID lists the user's holdings, narrowed by label when label
// is non-empty and by id when id is non-zero; with neither it returns every
// holding of the user. Transaction ids are not searched.
func (r *HoldingRepository) FindByLabelOrID(ctx context.Context, user string, label string, id int64) ([]*model.Holding, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	q := squirrel.Select("id", "label", "\"user\"", "\"group\"").
		From(r.tableName).
		Where(squirrel.Eq{"\"user\"": user}).
		PlaceholderFormat(squirrel.Dollar)

	if label != "" {
		q = q.Where(squirrel.Eq{"label": label})
	}

	if id != 0 {
		q = q.Where(squirrel.Eq{"id": id})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Holding

	for rows.Next() {
		h := &model.Holding{}
		if err := rows.Scan(&h.ID, &h.Label, &h.User, &h.Group); err != nil {
			return nil, err
		}

		out = append(out, h)
	}

	return out, rows.Err()
}

// TagRepository attaches free key/value metadata to a Holding.
type TagRepository struct {
	conn *mpostgres.Connection
}

func NewTagRepository(conn *mpostgres.Connection) *TagRepository {
	return &TagRepository{conn: conn}
}

func (r *TagRepository) Put(ctx context.Context, holdingID int64, tags map[string]string) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	for k, v := range tags {
		_, err := db.ExecContext(ctx,
			`INSERT INTO tag (key, value, holding_id) VALUES ($1, $2, $3)
			 ON CONFLICT (key, holding_id) DO UPDATE SET value = EXCLUDED.value`,
			k, v, holdingID)
		if err != nil {
			return fmt.Errorf("postgres: put tag %q: %w", k, err)
		}
	}

	return nil
}

func (r *TagRepository) ListByHolding(ctx context.Context, holdingID int64) (map[string]string, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM tag WHERE holding_id = $1`, holdingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}

		out[k] = v
	}

	return out, rows.Err()
}

func mapPGError(err error, entity string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nlds.Wrap(nlds.KindUser, entity, nlds.ErrNoSuchHolding)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return nlds.Wrap(nlds.KindUser, entity, nlds.ErrDuplicateInHolding)
	}

	return err
}
