// Package services implements the catalog's eight operations (§4.4):
// catalog-put, catalog-get, catalog-update, catalog-del, catalog-remove,
// and the three catalog-archive-* variants used by the tape path.
package services

import (
	"context"
	"time"

	"github.com/cedadev/nlds-go/components/catalog/internal/adapters/postgres"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
)

// TagStore is the subset of the Mongo-backed tag side store the catalog
// operations need, narrowed so unit tests can stand in a fake rather than
// require a live MongoDB (the postgres-backed repositories are exercised
// directly against sqlmock instead).
type TagStore interface {
	Put(ctx context.Context, holdingID int64, tags map[string]string) error
	Get(ctx context.Context, holdingID int64) (map[string]string, error)
	FindHoldingIDsByTag(ctx context.Context, key, value string) ([]int64, error)
}

// Catalog wires together the relational repositories and the tag side
// store into the eight catalog operations.
type Catalog struct {
	Holdings     *postgres.HoldingRepository
	Transactions *postgres.TransactionRepository
	Files        *postgres.FileRepository
	Locations    *postgres.LocationRepository
	Aggregations *postgres.AggregationRepository
	Checksums    *postgres.ChecksumRepository
	Quotas       *postgres.QuotaRepository
	Tags         TagStore
}

// PutResult separates the files that were catalogued provisionally from
// those that failed to catalogue (duplicate path, quota exceeded).
type PutResult struct {
	Completed model.FileList
	Failed    model.FileList
	Reasons   map[string]string
}

// Put implements catalog-put.start: resolve-or-create the Holding,
// append a Transaction, and create a provisional File (no Location) for
// each incoming path. A duplicate (holding, original_path) pair moves
// the entry to failed rather than aborting the whole batch (§4.4).
func (c *Catalog) Put(ctx context.Context, details model.Details, files model.FileList) (*PutResult, error) {
	label := details.HoldingLabel
	if label == "" {
		label = details.TransactionID
	}

	holdings, err := c.Holdings.FindByLabelOrID(ctx, details.User, label, 0)
	if err != nil {
		return nil, err
	}

	var holding *model.Holding

	if len(holdings) > 0 {
		holding = holdings[0]
	} else {
		holding, err = c.Holdings.Create(ctx, &model.Holding{Label: label, User: details.User, Group: details.Group})
		if err != nil {
			return nil, err
		}
	}

	if len(details.TagMap) > 0 {
		if err := c.Tags.Put(ctx, holding.ID, details.TagMap); err != nil {
			return nil, err
		}
	}

	txn, err := c.Transactions.Create(ctx, &model.Transaction{
		UUID:       details.TransactionID,
		IngestTime: time.Now(),
		HoldingID:  holding.ID,
	})
	if err != nil {
		return nil, err
	}

	result := &PutResult{Reasons: map[string]string{}}

	var totalSize int64
	for _, p := range files {
		totalSize += p.Size
	}

	if err := c.Quotas.Reserve(ctx, details.Group, totalSize); err != nil {
		if nlds.Classify(err) == nlds.KindUser {
			result.Failed = files
			for _, p := range files {
				result.Reasons[p.OriginalPath] = "quota exceeded"
			}

			return result, nil
		}

		return nil, err
	}

	for _, p := range files {
		_, err := c.Files.Create(ctx, &model.File{
			OriginalPath:  p.OriginalPath,
			PathType:      p.PathType,
			LinkPath:      p.LinkTarget,
			Size:          p.Size,
			User:          details.User,
			Group:         details.Group,
			Permissions:   p.Permissions,
			TransactionID: txn.ID,
		})
		if err != nil {
			if nlds.Classify(err) == nlds.KindUser {
				result.Failed = append(result.Failed, p)
				result.Reasons[p.OriginalPath] = "duplicate in holding"

				continue
			}

			return nil, err
		}

		result.Completed = append(result.Completed, p)
	}

	return result, nil
}
