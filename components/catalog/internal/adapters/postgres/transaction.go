package postgres

import (
	"context"
	"errors"

	"github.com/cedadev/nlds-go/pkg/mpostgres"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE Postgres raises for a unique-index
// conflict; catalog-put maps it to nlds.ErrDuplicateInHolding (§4.4 edge
// cases: "putting a file already present under the same holding").
const pgUniqueViolation = "23505"

// TransactionRepository stores one row per user put-batch.
type TransactionRepository struct {
	conn *mpostgres.Connection
}

func NewTransactionRepository(conn *mpostgres.Connection) *TransactionRepository {
	return &TransactionRepository{conn: conn}
}

func (r *TransactionRepository) Create(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		`INSERT INTO transaction (uuid, ingest_time, holding_id) VALUES ($1, $2, $3) RETURNING id`,
		t.UUID, t.IngestTime, t.HoldingID)

	if err := row.Scan(&t.ID); err != nil {
		return nil, err
	}

	return t, nil
}

func (r *TransactionRepository) FindByUUID(ctx context.Context, uuid string) (*model.Transaction, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	t := &model.Transaction{}

	row := db.QueryRowContext(ctx, `SELECT id, uuid, ingest_time, holding_id FROM transaction WHERE uuid = $1`, uuid)
	if err := row.Scan(&t.ID, &t.UUID, &t.IngestTime, &t.HoldingID); err != nil {
		return nil, mapPGError(err, "Transaction")
	}

	return t, nil
}

// FileRepository stores one row per catalogued path. A File exists without
// a Location from catalog-put until transfer-put reports success.
type FileRepository struct {
	conn *mpostgres.Connection
}

func NewFileRepository(conn *mpostgres.Connection) *FileRepository {
	return &FileRepository{conn: conn}
}

// Create inserts a new File, translating a unique-constraint violation on
// (original_path, transaction_id's holding) into ErrDuplicateInHolding.
func (r *FileRepository) Create(ctx context.Context, f *model.File) (*model.File, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		`INSERT INTO file (original_path, path_type, link_path, size, "user", "group", permissions, transaction_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		f.OriginalPath, f.PathType, f.LinkPath, f.Size, f.User, f.Group, f.Permissions, f.TransactionID)

	if err := row.Scan(&f.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, nlds.Wrap(nlds.KindUser, "File", nlds.ErrDuplicateInHolding)
		}

		return nil, err
	}

	return f, nil
}

func (r *FileRepository) ListByTransaction(ctx context.Context, transactionID int64) ([]*model.File, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, original_path, path_type, link_path, size, "user", "group", permissions, transaction_id
		 FROM file WHERE transaction_id = $1`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.File

	for rows.Next() {
		f := &model.File{}
		if err := rows.Scan(&f.ID, &f.OriginalPath, &f.PathType, &f.LinkPath, &f.Size, &f.User, &f.Group, &f.Permissions, &f.TransactionID); err != nil {
			return nil, err
		}

		out = append(out, f)
	}

	return out, rows.Err()
}

// ListByHolding lists every File catalogued under any Transaction of the
// given holding, backing the find-files query's "whole holding" mode
// (§4.10 find files).
func (r *FileRepository) ListByHolding(ctx context.Context, holdingID int64) ([]*model.File, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT f.id, f.original_path, f.path_type, f.link_path, f.size, f."user", f."group", f.permissions, f.transaction_id
		 FROM file f JOIN transaction t ON t.id = f.transaction_id
		 WHERE t.holding_id = $1`, holdingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.File

	for rows.Next() {
		f := &model.File{}
		if err := rows.Scan(&f.ID, &f.OriginalPath, &f.PathType, &f.LinkPath, &f.Size, &f.User, &f.Group, &f.Permissions, &f.TransactionID); err != nil {
			return nil, err
		}

		out = append(out, f)
	}

	return out, rows.Err()
}

// FindByOriginalPath resolves one file within a holding's files by its
// original path, used by catalog-get to answer "where is this path now".
func (r *FileRepository) FindByOriginalPath(ctx context.Context, holdingID int64, originalPath string) (*model.File, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	f := &model.File{}

	row := db.QueryRowContext(ctx,
		`SELECT f.id, f.original_path, f.path_type, f.link_path, f.size, f."user", f."group", f.permissions, f.transaction_id
		 FROM file f JOIN transaction t ON t.id = f.transaction_id
		 WHERE t.holding_id = $1 AND f.original_path = $2`, holdingID, originalPath)

	if err := row.Scan(&f.ID, &f.OriginalPath, &f.PathType, &f.LinkPath, &f.Size, &f.User, &f.Group, &f.Permissions, &f.TransactionID); err != nil {
		return nil, mapPGError(err, "File")
	}

	return f, nil
}

// FindByTransactionUUID resolves one file by its original path within the
// transaction it was catalogued under, used by catalog-update/catalog-del
// which carry a transaction id rather than a holding id.
func (r *FileRepository) FindByTransactionUUID(ctx context.Context, transactionUUID, originalPath string) (*model.File, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	f := &model.File{}

	row := db.QueryRowContext(ctx,
		`SELECT f.id, f.original_path, f.path_type, f.link_path, f.size, f."user", f."group", f.permissions, f.transaction_id
		 FROM file f JOIN transaction t ON t.id = f.transaction_id
		 WHERE t.uuid = $1 AND f.original_path = $2`, transactionUUID, originalPath)

	if err := row.Scan(&f.ID, &f.OriginalPath, &f.PathType, &f.LinkPath, &f.Size, &f.User, &f.Group, &f.Permissions, &f.TransactionID); err != nil {
		return nil, mapPGError(err, "File")
	}

	return f, nil
}

// Delete removes a File row outright — the catalog keeps no soft-delete
// history for files, unlike the teacher's ledger entities (§4.4
// catalog-del).
func (r *FileRepository) Delete(ctx context.Context, id int64) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM file WHERE id = $1`, id)

	return err
}
