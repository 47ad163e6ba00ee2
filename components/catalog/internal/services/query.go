package services

import "context"

// HoldingView is the read-side projection of a Holding plus its tags,
// returned by ListHoldings (§4.10 list holdings / §6 query endpoints).
type HoldingView struct {
	ID    int64             `json:"id"`
	Label string            `json:"label"`
	User  string            `json:"user"`
	Group string            `json:"group"`
	Tags  map[string]string `json:"tags"`
}

// ListHoldings resolves a user's holdings by label, numeric id, or tag
// key/value, mirroring the same lookup modes catalog-get accepts for a
// file list. An empty label/id/tag returns every holding the user owns.
func (c *Catalog) ListHoldings(ctx context.Context, user, label string, id int64, tagKey, tagValue string) ([]HoldingView, error) {
	var ids []int64

	if tagKey != "" {
		matched, err := c.Tags.FindHoldingIDsByTag(ctx, tagKey, tagValue)
		if err != nil {
			return nil, err
		}

		ids = matched
	}

	holdings, err := c.Holdings.FindByLabelOrID(ctx, user, label, id)
	if err != nil {
		return nil, err
	}

	allowed := make(map[int64]bool, len(ids))
	for _, hid := range ids {
		allowed[hid] = true
	}

	views := make([]HoldingView, 0, len(holdings))

	for _, h := range holdings {
		if tagKey != "" && !allowed[h.ID] {
			continue
		}

		tags, err := c.Tags.Get(ctx, h.ID)
		if err != nil {
			return nil, err
		}

		views = append(views, HoldingView{ID: h.ID, Label: h.Label, User: h.User, Group: h.Group, Tags: tags})
	}

	return views, nil
}

// FileView is the read-side projection of a File returned by FindFiles.
type FileView struct {
	OriginalPath string `json:"original_path"`
	Size         int64  `json:"size"`
	HoldingID    int64  `json:"holding_id"`
}

// FindFiles resolves files under a user's holding(s) by original path,
// mirroring the same holding-resolution logic catalog-get uses (§4.4,
// §4.10 find files). A zero-value originalPath matches every file in the
// resolved holding.
func (c *Catalog) FindFiles(ctx context.Context, details FindFilesQuery) ([]FileView, error) {
	holdings, err := c.Holdings.FindByLabelOrID(ctx, details.User, details.HoldingLabel, details.HoldingID)
	if err != nil {
		return nil, err
	}

	var out []FileView

	for _, h := range holdings {
		if details.OriginalPath == "" {
			files, err := c.Files.ListByHolding(ctx, h.ID)
			if err != nil {
				return nil, err
			}

			for _, f := range files {
				out = append(out, FileView{OriginalPath: f.OriginalPath, Size: f.Size, HoldingID: h.ID})
			}

			continue
		}

		f, err := c.Files.FindByOriginalPath(ctx, h.ID, details.OriginalPath)
		if err != nil {
			continue
		}

		out = append(out, FileView{OriginalPath: f.OriginalPath, Size: f.Size, HoldingID: h.ID})
	}

	return out, nil
}

// FindFilesQuery is the request shape for FindFiles.
type FindFilesQuery struct {
	User         string
	HoldingLabel string
	HoldingID    int64
	OriginalPath string
}
