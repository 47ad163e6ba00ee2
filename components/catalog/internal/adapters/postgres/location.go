package postgres

import (
	"context"

	"github.com/cedadev/nlds-go/pkg/mpostgres"
	"github.com/cedadev/nlds-go/pkg/model"
)

// LocationRepository stores the physical placement of a File, up to two
// rows per file (one per StorageType), the second once both transfer-put
// and archive-put have run.
type LocationRepository struct {
	conn *mpostgres.Connection
}

func NewLocationRepository(conn *mpostgres.Connection) *LocationRepository {
	return &LocationRepository{conn: conn}
}

func (r *LocationRepository) Create(ctx context.Context, l *model.Location) (*model.Location, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		`INSERT INTO location (storage_type, url_scheme, url_netloc, root, path, access_time, file_id, aggregation_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		l.StorageType, l.URLScheme, l.URLNetloc, l.Root, l.Path, l.AccessTime, l.FileID, l.AggregationID)

	if err := row.Scan(&l.ID); err != nil {
		return nil, err
	}

	return l, nil
}

// CreatePendingRecall inserts the empty-OBJECT_STORE marker row that
// signals "this file must be pulled back from tape before it can be
// served" (§3, model.Location.Pending).
func (r *LocationRepository) CreatePendingRecall(ctx context.Context, fileID int64) (*model.Location, error) {
	return r.Create(ctx, &model.Location{StorageType: model.StorageObjectStore, FileID: fileID})
}

func (r *LocationRepository) ListByFile(ctx context.Context, fileID int64) ([]*model.Location, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, storage_type, url_scheme, url_netloc, root, path, access_time, file_id, aggregation_id
		 FROM location WHERE file_id = $1`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Location

	for rows.Next() {
		l := &model.Location{}
		if err := rows.Scan(&l.ID, &l.StorageType, &l.URLScheme, &l.URLNetloc, &l.Root, &l.Path, &l.AccessTime, &l.FileID, &l.AggregationID); err != nil {
			return nil, err
		}

		out = append(out, l)
	}

	return out, rows.Err()
}

// ResolvePending fills in a previously-pending OBJECT_STORE location once
// archive-get has staged the file back from tape.
func (r *LocationRepository) ResolvePending(ctx context.Context, locationID int64, urlScheme, urlNetloc, root, path string) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`UPDATE location SET url_scheme = $1, url_netloc = $2, root = $3, path = $4, access_time = now() WHERE id = $5`,
		urlScheme, urlNetloc, root, path, locationID)

	return err
}

// LinkAggregation sets a Location's aggregation_id once archive-put has
// placed its member on tape.
func (r *LocationRepository) LinkAggregation(ctx context.Context, locationID, aggregationID int64) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `UPDATE location SET aggregation_id = $1 WHERE id = $2`, aggregationID, locationID)

	return err
}

// Delete removes a Location row outright, used by catalog-remove and
// catalog-archive-del to strip empty recall/tape markers.
func (r *LocationRepository) Delete(ctx context.Context, id int64) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM location WHERE id = $1`, id)

	return err
}

// AggregationRepository stores tape-resident bundles; a File's TAPE
// Location links to one via aggregation_id.
type AggregationRepository struct {
	conn *mpostgres.Connection
}

func NewAggregationRepository(conn *mpostgres.Connection) *AggregationRepository {
	return &AggregationRepository{conn: conn}
}

func (r *AggregationRepository) Create(ctx context.Context, a *model.Aggregation) (*model.Aggregation, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		`INSERT INTO aggregation (tarname, checksum, algorithm, failed) VALUES ($1, $2, $3, $4) RETURNING id`,
		a.TarName, a.Checksum, a.Algorithm, a.Failed)

	if err := row.Scan(&a.ID); err != nil {
		return nil, err
	}

	return a, nil
}

// NextUnarchived returns up to maxFiles files that have no TAPE location
// yet, lowest file id first, for archive-put's catalog-archive-next poll
// (§4.4, §4.7).
func (r *AggregationRepository) NextUnarchived(ctx context.Context, maxFiles int) ([]*model.File, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT f.id, f.original_path, f.path_type, f.link_path, f.size, f."user", f."group", f.permissions, f.transaction_id
		 FROM file f
		 WHERE NOT EXISTS (SELECT 1 FROM location l WHERE l.file_id = f.id AND l.storage_type = 'TAPE')
		 ORDER BY f.id
		 LIMIT $1`, maxFiles)
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

func (r *AggregationRepository) MarkFailed(ctx context.Context, id int64) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `UPDATE aggregation SET failed = true WHERE id = $1`, id)

	return err
}

// ChecksumRepository records per-file integrity values independent of any
// aggregation-level checksum.
type ChecksumRepository struct {
	conn *mpostgres.Connection
}

func NewChecksumRepository(conn *mpostgres.Connection) *ChecksumRepository {
	return &ChecksumRepository{conn: conn}
}

func (r *ChecksumRepository) Create(ctx context.Context, c *model.Checksum) error {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO checksum (value, algorithm, file_id) VALUES ($1, $2, $3)`,
		c.Value, c.Algorithm, c.FileID)

	return err
}

func (r *ChecksumRepository) ListByFile(ctx context.Context, fileID int64) ([]*model.Checksum, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, value, algorithm, file_id FROM checksum WHERE file_id = $1`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Checksum

	for rows.Next() {
		c := &model.Checksum{}
		if err := rows.Scan(&c.ID, &c.Value, &c.Algorithm, &c.FileID); err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	return out, rows.Err()
}
