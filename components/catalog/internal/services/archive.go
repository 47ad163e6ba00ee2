package services

import (
	"context"

	"github.com/cedadev/nlds-go/pkg/model"
)

// ArchiveNextResult is the candidate set offered to archive-put.
type ArchiveNextResult struct {
	HoldingID int64
	Files     model.FileList
}

// ArchiveNext implements catalog-archive-next.start: select files
// without a TAPE Location (oldest file first via
// AggregationRepository.NextUnarchived's file id ordering) and create an empty TAPE Location for each, so a second
// pass does not re-select them (§4.4).
func (c *Catalog) ArchiveNext(ctx context.Context, maxFiles int) (*ArchiveNextResult, error) {
	files, err := c.Aggregations.NextUnarchived(ctx, maxFiles)
	if err != nil {
		return nil, err
	}

	result := &ArchiveNextResult{}

	for _, f := range files {
		if _, err := c.Locations.Create(ctx, &model.Location{StorageType: model.StorageTape, FileID: f.ID}); err != nil {
			return nil, err
		}

		result.Files = append(result.Files, model.PathDetails{OriginalPath: f.OriginalPath, Size: f.Size})
	}

	return result, nil
}

// ArchiveUpdate implements catalog-archive-update.start: on archive-put
// success, create the Aggregation and fill in each member's
// empty TAPE Location with the tape URL and a link to the Aggregation
// (§4.4, §4.7).
func (c *Catalog) ArchiveUpdate(ctx context.Context, details model.Details, aggregate model.Aggregate, scheme, netloc, root string) error {
	agg, err := c.Aggregations.Create(ctx, &model.Aggregation{
		TarName:   aggregate.TarName,
		Checksum:  aggregate.Checksum,
		Algorithm: aggregate.Algorithm,
	})
	if err != nil {
		return err
	}

	for _, p := range aggregate.Members {
		f, err := c.Files.FindByTransactionUUID(ctx, details.TransactionID, p.OriginalPath)
		if err != nil {
			return err
		}

		locs, err := c.Locations.ListByFile(ctx, f.ID)
		if err != nil {
			return err
		}

		for _, l := range locs {
			if l.StorageType == model.StorageTape && l.Path == "" {
				if err := c.Locations.ResolvePending(ctx, l.ID, scheme, netloc, root, aggregate.TarName); err != nil {
					return err
				}

				if err := c.linkLocationToAggregation(ctx, l.ID, agg.ID); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// ArchiveDel implements catalog-archive-del.start: on archive-put
// failure, strip the empty TAPE Locations created by catalog-archive-next
// so the next cycle re-selects these files cleanly (§4.4).
func (c *Catalog) ArchiveDel(ctx context.Context, details model.Details, files model.FileList) error {
	for _, p := range files {
		f, err := c.Files.FindByTransactionUUID(ctx, details.TransactionID, p.OriginalPath)
		if err != nil {
			return err
		}

		locs, err := c.Locations.ListByFile(ctx, f.ID)
		if err != nil {
			return err
		}

		for _, l := range locs {
			if l.StorageType == model.StorageTape && l.Path == "" {
				if err := c.deleteLocation(ctx, l.ID); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (c *Catalog) linkLocationToAggregation(ctx context.Context, locationID, aggregationID int64) error {
	return c.Locations.LinkAggregation(ctx, locationID, aggregationID)
}
