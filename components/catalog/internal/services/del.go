package services

import (
	"context"

	"github.com/cedadev/nlds-go/pkg/model"
)

// Del implements catalog-del.start: remove the provisional File row
// outright, releasing its reserved quota. Used both for a user-initiated
// delete and for transfer-put.failed cleanup (§4.4, §4.2).
func (c *Catalog) Del(ctx context.Context, details model.Details, files model.FileList) error {
	for _, p := range files {
		f, err := c.Files.FindByTransactionUUID(ctx, details.TransactionID, p.OriginalPath)
		if err != nil {
			return err
		}

		if err := c.Quotas.Release(ctx, details.Group, f.Size); err != nil {
			return err
		}

		if err := c.Files.Delete(ctx, f.ID); err != nil {
			return err
		}
	}

	return nil
}

func (c *Catalog) deleteLocation(ctx context.Context, locationID int64) error {
	return c.Locations.Delete(ctx, locationID)
}
