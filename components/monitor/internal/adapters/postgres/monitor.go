// Package postgres is the monitor's own relational store, physically
// separate from the catalog store so the two scale independently
// (§4.9.1).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cedadev/nlds-go/pkg/mpostgres"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
)

// TransactionRepository stores one row per user-visible transaction.
type TransactionRepository struct {
	conn *mpostgres.Connection
}

func NewTransactionRepository(conn *mpostgres.Connection) *TransactionRepository {
	return &TransactionRepository{conn: conn}
}

// GetOrCreate inserts a TransactionRecord the first time a transaction is
// seen (at route.* time) and returns the existing row on replay.
func (r *TransactionRepository) GetOrCreate(ctx context.Context, transactionID, jobLabel, user, group string, action model.APIAction) (*model.TransactionRecord, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rec := &model.TransactionRecord{}

	row := db.QueryRowContext(ctx,
		`SELECT id, transaction_id, job_label, "user", "group", api_action, creation_time FROM transaction_record WHERE transaction_id = $1`,
		transactionID)

	err = row.Scan(&rec.ID, &rec.TransactionID, &rec.JobLabel, &rec.User, &rec.Group, &rec.APIAction, &rec.CreationTime)
	if err == nil {
		return rec, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	rec = &model.TransactionRecord{
		TransactionID: transactionID,
		JobLabel:      jobLabel,
		User:          user,
		Group:         group,
		APIAction:     action,
		CreationTime:  time.Now(),
	}

	insert := db.QueryRowContext(ctx,
		`INSERT INTO transaction_record (transaction_id, job_label, "user", "group", api_action, creation_time)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		rec.TransactionID, rec.JobLabel, rec.User, rec.Group, rec.APIAction, rec.CreationTime)

	if err := insert.Scan(&rec.ID); err != nil {
		return nil, err
	}

	return rec, nil
}

func (r *TransactionRepository) Find(ctx context.Context, transactionID string) (*model.TransactionRecord, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rec := &model.TransactionRecord{}

	row := db.QueryRowContext(ctx,
		`SELECT id, transaction_id, job_label, "user", "group", api_action, creation_time FROM transaction_record WHERE transaction_id = $1`,
		transactionID)

	if err := row.Scan(&rec.ID, &rec.TransactionID, &rec.JobLabel, &rec.User, &rec.Group, &rec.APIAction, &rec.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nlds.Wrap(nlds.KindUser, "TransactionRecord", err)
		}

		return nil, err
	}

	return rec, nil
}

// SubRecordRepository stores the ratcheted per-sub-transaction state.
type SubRecordRepository struct {
	conn *mpostgres.Connection
}

func NewSubRecordRepository(conn *mpostgres.Connection) *SubRecordRepository {
	return &SubRecordRepository{conn: conn}
}

// GetOrCreate inserts a SubRecord at StateRouting the first time a sub_id
// is seen.
func (r *SubRecordRepository) GetOrCreate(ctx context.Context, transactionRecordID int64, subID string) (*model.SubRecord, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	sr := &model.SubRecord{}

	row := db.QueryRowContext(ctx,
		`SELECT id, sub_id, transaction_record_id, state, retry_count, last_updated FROM sub_record WHERE sub_id = $1`,
		subID)

	err = row.Scan(&sr.ID, &sr.SubID, &sr.TransactionRecordID, &sr.State, &sr.RetryCount, &sr.LastUpdated)
	if err == nil {
		return sr, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	sr = &model.SubRecord{
		SubID:               subID,
		TransactionRecordID: transactionRecordID,
		State:               model.StateRouting,
		LastUpdated:         time.Now(),
	}

	insert := db.QueryRowContext(ctx,
		`INSERT INTO sub_record (sub_id, transaction_record_id, state, retry_count, last_updated)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		sr.SubID, sr.TransactionRecordID, sr.State, sr.RetryCount, sr.LastUpdated)

	if err := insert.Scan(&sr.ID); err != nil {
		return nil, err
	}

	return sr, nil
}

// ApplyRatchet advances a SubRecord's state if model.SubRecordState.Allowed
// permits the transition; a disallowed (out-of-order or replayed) update
// is silently dropped rather than erroring, since at-least-once delivery
// makes replay expected (§7, §4.9).
func (r *SubRecordRepository) ApplyRatchet(ctx context.Context, subID string, next model.SubRecordState) (applied bool, err error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return false, err
	}

	var current model.SubRecordState

	row := db.QueryRowContext(ctx, `SELECT state FROM sub_record WHERE sub_id = $1`, subID)
	if err := row.Scan(&current); err != nil {
		return false, err
	}

	if !current.Allowed(next) {
		return false, nil
	}

	_, err = db.ExecContext(ctx,
		`UPDATE sub_record SET state = $1, last_updated = $2 WHERE sub_id = $3`,
		next, time.Now(), subID)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (r *SubRecordRepository) IncrementRetry(ctx context.Context, subID string) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `UPDATE sub_record SET retry_count = retry_count + 1 WHERE sub_id = $1`, subID)

	return err
}

func (r *SubRecordRepository) ListByTransaction(ctx context.Context, transactionRecordID int64) ([]model.SubRecord, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, sub_id, transaction_record_id, state, retry_count, last_updated FROM sub_record WHERE transaction_record_id = $1`,
		transactionRecordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubRecord

	for rows.Next() {
		var sr model.SubRecord
		if err := rows.Scan(&sr.ID, &sr.SubID, &sr.TransactionRecordID, &sr.State, &sr.RetryCount, &sr.LastUpdated); err != nil {
			return nil, err
		}

		out = append(out, sr)
	}

	return out, rows.Err()
}

// FailedFileRepository records per-file failure reasons against a
// SubRecord.
type FailedFileRepository struct {
	conn *mpostgres.Connection
}

func NewFailedFileRepository(conn *mpostgres.Connection) *FailedFileRepository {
	return &FailedFileRepository{conn: conn}
}

func (r *FailedFileRepository) Create(ctx context.Context, subRecordID int64, filepath, reason string) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO failed_file (filepath, reason, sub_record_id) VALUES ($1, $2, $3)`,
		filepath, reason, subRecordID)

	return err
}

func (r *FailedFileRepository) ListBySubRecord(ctx context.Context, subRecordID int64) ([]model.FailedFile, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, filepath, reason, sub_record_id FROM failed_file WHERE sub_record_id = $1`, subRecordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FailedFile

	for rows.Next() {
		var ff model.FailedFile
		if err := rows.Scan(&ff.ID, &ff.FilePath, &ff.Reason, &ff.SubRecordID); err != nil {
			return nil, err
		}

		out = append(out, ff)
	}

	return out, rows.Err()
}

// WarningRepository attaches non-fatal notes to a TransactionRecord.
type WarningRepository struct {
	conn *mpostgres.Connection
}

func NewWarningRepository(conn *mpostgres.Connection) *WarningRepository {
	return &WarningRepository{conn: conn}
}

func (r *WarningRepository) Create(ctx context.Context, transactionRecordID int64, text string) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `INSERT INTO warning (warning, transaction_record_id) VALUES ($1, $2)`, text, transactionRecordID)

	return err
}

func (r *WarningRepository) ListByTransaction(ctx context.Context, transactionRecordID int64) ([]model.Warning, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, warning, transaction_record_id FROM warning WHERE transaction_record_id = $1`, transactionRecordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Warning

	for rows.Next() {
		var w model.Warning
		if err := rows.Scan(&w.ID, &w.WarningText, &w.TransactionRecordID); err != nil {
			return nil, err
		}

		out = append(out, w)
	}

	return out, rows.Err()
}
