// Package services implements archive-get's three-state sub-state-machine:
// prepare (request tape staging), prepare-check (poll), and start (stream
// the staged aggregate back into the object store) (§4.8).
package services

import (
	"archive/tar"
	"context"
	"io"

	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
	"github.com/cedadev/nlds-go/pkg/objectstore"
	"github.com/cedadev/nlds-go/pkg/tape"
)

// PendingStore is the cross-replica prepare/ready map archive-get depends
// on, narrowed from adapters/redis.PendingStore for testability.
type PendingStore interface {
	AlreadyRequested(ctx context.Context, aggregateKey string) (alreadyRequested bool, unlock func(), err error)
	Put(ctx context.Context, prepareID string, agg model.Aggregate) error
	Get(ctx context.Context, prepareID string) (agg model.Aggregate, ok bool, err error)
	Remove(ctx context.Context, prepareID string) error
}

// ObjectStore is the subset of objectstore.Client archive-get uploads
// extracted members back to.
type ObjectStore interface {
	Put(ctx context.Context, objectName string, body io.Reader, size int64) error
}

// ArchiveGet wires the tape client and pending store into the three
// sub-states.
type ArchiveGet struct {
	Tape    tape.Client
	Pending PendingStore
}

// PrepareResult partitions input aggregates into those already staged
// (ready to stream immediately) and those newly put on the pending map
// (whose prepare_id the caller should emit a delayed prepare-check for).
type PrepareResult struct {
	Ready   []model.Aggregate
	Pending []string // prepare_ids to re-check
}

// Prepare requests tape staging for each aggregate not already staged,
// guarding against a duplicate request for the same aggregate from a
// concurrent replica (§4.8.1, testable property 2).
func (a *ArchiveGet) Prepare(ctx context.Context, aggregateURLFor func(model.Aggregate) string, aggregates []model.Aggregate) (*PrepareResult, error) {
	logger := mctx.LoggerFromContext(ctx)

	result := &PrepareResult{}

	for _, agg := range aggregates {
		url := aggregateURLFor(agg)

		status, err := a.Tape.Stat(ctx, url)
		if err != nil {
			return nil, nlds.Wrap(nlds.KindTransient, "Aggregate", err)
		}

		if status.Staged {
			result.Ready = append(result.Ready, agg)
			continue
		}

		already, unlock, err := a.Pending.AlreadyRequested(ctx, agg.TarName)
		if err != nil {
			return nil, err
		}

		if already {
			unlock()
			logger.Infof("archive-get: prepare already requested for %s", agg.TarName)

			continue
		}

		prepareID, err := a.Tape.RequestPrepare(ctx, []string{url})
		unlock()

		if err != nil {
			return nil, nlds.Wrap(nlds.KindTransient, "Aggregate", err)
		}

		agg.PrepareID = prepareID

		if err := a.Pending.Put(ctx, prepareID, agg); err != nil {
			return nil, err
		}

		result.Pending = append(result.Pending, prepareID)
	}

	return result, nil
}

// CheckResult reports, for one prepare-check pass, which aggregates
// finished staging (move to archive-get.start) and which prepare_ids are
// still outstanding (re-emit a delayed prepare-check for these).
type CheckResult struct {
	Ready           []model.Aggregate
	StillPending    []string
}

// PrepareCheck polls tape for each outstanding prepare_id, moving finished
// aggregates off the pending map.
func (a *ArchiveGet) PrepareCheck(ctx context.Context, prepareIDs []string) (*CheckResult, error) {
	result := &CheckResult{}

	for _, id := range prepareIDs {
		agg, ok, err := a.Pending.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if !ok {
			// Another replica already resolved this prepare_id; nothing to do.
			continue
		}

		status, err := a.Tape.PollPrepare(ctx, id)
		if err != nil {
			return nil, nlds.Wrap(nlds.KindTransient, "Aggregate", err)
		}

		if status.Done {
			if err := a.Pending.Remove(ctx, id); err != nil {
				return nil, err
			}

			result.Ready = append(result.Ready, agg)

			continue
		}

		result.StillPending = append(result.StillPending, id)
	}

	return result, nil
}

// StartResult partitions the outcome of extracting+re-uploading one
// aggregate's members.
type StartResult struct {
	Transferred model.FileList
	Failed      model.FileList
}

// Start streams the staged aggregate from tape and extracts each member,
// re-uploading it to the object store under its deterministic object
// name. A failure to open the aggregate fails every member; a read error
// part-way fails every member not yet extracted; a member absent from the
// aggregate, or whose re-upload fails, fails on its own.
func (a *ArchiveGet) Start(ctx context.Context, store ObjectStore, aggregateURL, transactionID string, agg model.Aggregate) StartResult {
	logger := mctx.LoggerFromContext(ctx)

	in, err := a.Tape.Open(ctx, aggregateURL)
	if err != nil {
		logger.Errorf("archive-get: open %s: %v", aggregateURL, err)
		return StartResult{Failed: agg.Members}
	}
	defer in.Close()

	tr := tar.NewReader(in)

	byName := make(map[string]model.PathDetails, len(agg.Members))
	for _, pd := range agg.Members {
		byName[pd.OriginalPath] = pd
	}

	var result StartResult

	seen := make(map[string]bool, len(agg.Members))

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			logger.Errorf("archive-get: read %s: %v", aggregateURL, err)

			for _, pd := range agg.Members {
				if !seen[pd.OriginalPath] {
					result.Failed = append(result.Failed, pd)
				}
			}

			return result
		}

		pd, known := byName[hdr.Name]
		if !known {
			continue
		}

		seen[hdr.Name] = true

		objectName := objectstore.ObjectName(transactionID, pd.OriginalPath)

		if err := store.Put(ctx, objectName, tr, hdr.Size); err != nil {
			logger.Errorf("archive-get: extract %s: %v", hdr.Name, err)
			pd.AddRetryReason(err.Error())
			result.Failed = append(result.Failed, pd)

			continue
		}

		pd.ObjectName = objectName
		result.Transferred = append(result.Transferred, pd)
	}

	for _, pd := range agg.Members {
		if !seen[pd.OriginalPath] {
			result.Failed = append(result.Failed, pd)
		}
	}

	return result
}
