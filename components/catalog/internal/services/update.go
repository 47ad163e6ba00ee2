package services

import (
	"context"
	"time"

	"github.com/cedadev/nlds-go/pkg/model"
)

// Update implements catalog-update.start: for each transferred file,
// create an OBJECT_STORE Location derived from the tenancy and
// object_name and stamp access_time (§4.4).
func (c *Catalog) Update(ctx context.Context, details model.Details, files model.FileList) error {
	for _, p := range files {
		f, err := c.Files.FindByTransactionUUID(ctx, details.TransactionID, p.OriginalPath)
		if err != nil {
			return err
		}

		_, err = c.Locations.Create(ctx, &model.Location{
			StorageType: model.StorageObjectStore,
			URLScheme:   "s3",
			URLNetloc:   details.Tenancy,
			Root:        details.TransactionID,
			Path:        p.ObjectName,
			AccessTime:  time.Now(),
			FileID:      f.ID,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Remove implements catalog-remove.start: strip a File's empty
// OBJECT_STORE location (the recall marker) after an archive-get
// failure, so the next get cycle retries cleanly (§4.4).
func (c *Catalog) Remove(ctx context.Context, details model.Details, files model.FileList) error {
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
			if l.StorageType == model.StorageObjectStore && l.Pending() {
				if err := c.deleteLocation(ctx, l.ID); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
