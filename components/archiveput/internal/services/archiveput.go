package services

import (
	"archive/tar"
	"context"
	"hash/adler32"
	"io"

	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
	"github.com/cedadev/nlds-go/pkg/tape"
)

// ObjectStore is the subset of objectstore.Client archive-put reads
// members from.
type ObjectStore interface {
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// Config bounds a single archive-put.start pass.
type Config struct {
	ChunkBytes int // streaming copy buffer size, default 5 MiB
}

// DefaultConfig matches the spec's default chunk size.
var DefaultConfig = Config{ChunkBytes: 5 << 20}

// ArchivePut bundles one aggregate's members into a tar container written
// to tape, computing a running ADLER32 checksum over the bundle.
type ArchivePut struct {
	Config Config
}

func New(cfg Config) *ArchivePut {
	if cfg.ChunkBytes <= 0 {
		cfg = DefaultConfig
	}

	return &ArchivePut{Config: cfg}
}

// Result is one aggregate's outcome: either a completed bundle with its
// checksum, or a failed member list (individual read failures) plus a
// whole-aggregate failure flag (tape write failure).
type Result struct {
	Aggregate model.Aggregate
	Failed    model.FileList
	// WholeFailed is set when the tape write itself failed; in that case
	// every member in the aggregate (completed or not) belongs in the
	// caller's failed list, not just Failed.
	WholeFailed bool
}

// Put streams agg's members from store into a new tar archive at
// aggregateURL on tape, computing the bundle's ADLER32 checksum as it
// writes. A member that fails to read is recorded in Failed and excluded
// from the bundle; a tape write failure aborts the whole aggregate.
func (a *ArchivePut) Put(ctx context.Context, store ObjectStore, tapeClient tape.Client, aggregateURL string, agg model.Aggregate) Result {
	logger := mctx.LoggerFromContext(ctx)

	out, err := tapeClient.Create(ctx, aggregateURL)
	if err != nil {
		return Result{Aggregate: agg, WholeFailed: true}
	}

	checksum := adler32.New()
	tw := tar.NewWriter(io.MultiWriter(out, checksum))

	var completed model.FileList

	var failed model.FileList

	for _, pd := range agg.Members {
		if err := a.appendMember(ctx, store, tw, pd); err != nil {
			logger.Errorf("archive-put: member %s: %v", pd.OriginalPath, err)
			pd.AddRetryReason(err.Error())
			failed = append(failed, pd)

			continue
		}

		completed = append(completed, pd)
	}

	if err := tw.Close(); err != nil {
		_ = out.Close()
		return Result{Aggregate: agg, WholeFailed: true}
	}

	if err := out.Close(); err != nil {
		return Result{Aggregate: agg, WholeFailed: true}
	}

	result := agg
	result.Members = completed
	result.Checksum = checksum.Sum32()
	result.Algorithm = "adler32"

	return Result{Aggregate: result, Failed: failed}
}

func (a *ArchivePut) appendMember(ctx context.Context, store ObjectStore, tw *tar.Writer, pd model.PathDetails) error {
	if pd.ObjectName == "" {
		return nlds.ErrNoLocation
	}

	body, err := store.Get(ctx, pd.ObjectName)
	if err != nil {
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}
	defer body.Close()

	if err := tw.WriteHeader(&tar.Header{
		Name:    pd.OriginalPath,
		Size:    pd.Size,
		Mode:    int64(pd.Permissions),
		Uid:     int(pd.UID),
		Gid:     int(pd.GID),
		ModTime: pd.AccessTime,
	}); err != nil {
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}

	if _, err := io.CopyBuffer(tw, body, make([]byte, a.Config.ChunkBytes)); err != nil {
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}

	return nil
}
