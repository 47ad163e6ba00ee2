// Package services implements transfer-put: streaming each PathDetails in
// a filelist from its POSIX source into the object store under a
// deterministic name, classifying failures into the retryable/permanent
// split the marshaller and monitor depend on (§4.5).
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
	"github.com/cedadev/nlds-go/pkg/objectstore"
	"github.com/cedadev/nlds-go/pkg/retry"
)

// ObjectStore is the subset of objectstore.Client transfer-put depends on,
// narrowed so tests can substitute a fake without standing up S3.
type ObjectStore interface {
	Put(ctx context.Context, objectName string, body io.Reader, size int64) error
	Exists(ctx context.Context, objectName string) (bool, error)
}

// OpenFunc opens a source path for reading; overridable in tests.
type OpenFunc func(path string) (io.ReadCloser, int64, error)

// Config bounds a single transfer-put pass.
type Config struct {
	Backoff retry.Table
}

// DefaultConfig matches the package-level back-off schedule.
var DefaultConfig = Config{Backoff: retry.DefaultTable}

// Transfer streams PathDetails into an object store client built fresh per
// message from the envelope's tenancy credentials (§4.5.1).
type Transfer struct {
	Config Config
	Open   OpenFunc
}

// New builds a Transfer reading from the real filesystem.
func New(cfg Config) *Transfer {
	if cfg.Backoff.Delays == nil {
		cfg = DefaultConfig
	}

	return &Transfer{
		Config: cfg,
		Open: func(path string) (io.ReadCloser, int64, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, 0, err
			}

			info, err := f.Stat()
			if err != nil {
				_ = f.Close()
				return nil, 0, err
			}

			return f, info.Size(), nil
		},
	}
}

// Result partitions a batch's outcome for the two messages transfer-put
// emits: completed (object_name populated) and failed (retry_reasons
// updated, retries incremented for system errors).
type Result struct {
	Completed model.FileList
	Failed    model.FileList
}

// Put streams every file in the batch to store, deriving object_name from
// transactionID and original_path. A file already present under its
// deterministic name (idempotence under replay, §4.5) is treated as
// already-transferred rather than re-uploaded.
func (t *Transfer) Put(ctx context.Context, store ObjectStore, transactionID string, files model.FileList) Result {
	logger := mctx.LoggerFromContext(ctx)

	var result Result

	for _, pd := range files {
		objectName := objectstore.ObjectName(transactionID, pd.OriginalPath)

		exists, err := store.Exists(ctx, objectName)
		if err != nil {
			logger.Errorf("transfer-put: exists check %s: %v", pd.OriginalPath, err)
		}

		if !exists {
			if err := t.putOne(ctx, store, objectName, pd.OriginalPath, pd.Size); err != nil {
				if nlds.Retryable(err) {
					pd.AddRetryReason(err.Error())
				} else {
					pd.RetryReasons = append(pd.RetryReasons, err.Error())
				}
				result.Failed = append(result.Failed, pd)

				continue
			}
		}

		pd.ObjectName = objectName
		result.Completed = append(result.Completed, pd)
	}

	return result
}

func (t *Transfer) putOne(ctx context.Context, store ObjectStore, objectName, sourcePath string, size int64) error {
	body, actualSize, err := t.Open(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nlds.Wrap(nlds.KindUser, "PathDetails", fmt.Errorf("%s: %w", sourcePath, nlds.ErrFileNotFound))
		}

		if errors.Is(err, os.ErrPermission) {
			return nlds.Wrap(nlds.KindUser, "PathDetails", fmt.Errorf("%s: %w", sourcePath, nlds.ErrPermissionDenied))
		}

		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}
	defer body.Close()

	if size <= 0 {
		size = actualSize
	}

	if err := store.Put(ctx, objectName, body, size); err != nil {
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}

	return nil
}
