package services

import (
	"context"
	"strconv"

	"github.com/cedadev/nlds-go/pkg/model"
)

// GetResult reports the files resolved for a get/del request, split by
// whether a tape recall (archive-restore) is needed for any member.
type GetResult struct {
	Resolved        model.FileList
	NeedsRestore    bool
	AggregateGroups map[string][]int64 // tarname -> file ids sharing that aggregate
}

// Get implements catalog-get.start (§4.4): resolve each original path in
// the user's holding selected by details.HoldingLabel (with no label, the
// first holding listed for the user), and for any File whose only Location
// is TAPE, create the empty OBJECT_STORE recall marker and flag
// archive-restore. Transaction ids, holding ids and tags are not used to
// resolve files.
func (c *Catalog) Get(ctx context.Context, details model.Details, originalPaths []string) (*GetResult, error) {
	holdingID, err := c.resolveHoldingID(ctx, details)
	if err != nil {
		return nil, err
	}

	result := &GetResult{AggregateGroups: map[string][]int64{}}

	for _, path := range originalPaths {
		f, err := c.Files.FindByOriginalPath(ctx, holdingID, path)
		if err != nil {
			return nil, err
		}

		locs, err := c.Locations.ListByFile(ctx, f.ID)
		if err != nil {
			return nil, err
		}

		hasObjectStore := false

		var tapeLoc *model.Location

		for _, l := range locs {
			switch l.StorageType {
			case model.StorageObjectStore:
				hasObjectStore = true
			case model.StorageTape:
				tapeLoc = l
			}
		}

		result.Resolved = append(result.Resolved, model.PathDetails{OriginalPath: f.OriginalPath, Size: f.Size})

		if !hasObjectStore && tapeLoc != nil {
			if _, err := c.Locations.CreatePendingRecall(ctx, f.ID); err != nil {
				return nil, err
			}

			result.NeedsRestore = true

			if tapeLoc.AggregationID != nil {
				key := aggregationKey(*tapeLoc.AggregationID)
				result.AggregateGroups[key] = append(result.AggregateGroups[key], f.ID)
			}
		}
	}

	return result, nil
}

func (c *Catalog) resolveHoldingID(ctx context.Context, details model.Details) (int64, error) {
	var id int64

	holdings, err := c.Holdings.FindByLabelOrID(ctx, details.User, details.HoldingLabel, id)
	if err != nil {
		return 0, err
	}

	if len(holdings) == 0 {
		return 0, nil
	}

	return holdings[0].ID, nil
}

func aggregationKey(id int64) string {
	return "aggregation-" + strconv.FormatInt(id, 10)
}
