// Package services implements transfer-get: streaming each PathDetails'
// object-store location back to a POSIX target path, restoring ownership
// and permissions, and recreating symlinks rather than copying them
// (§4.6).
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
)

// ObjectStore is the subset of objectstore.Client transfer-get depends on.
type ObjectStore interface {
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// CreateFunc creates the destination file for writing; overridable in
// tests.
type CreateFunc func(path string) (io.WriteCloser, error)

// SymlinkFunc creates a symlink at path pointing at target; overridable in
// tests.
type SymlinkFunc func(target, path string) error

// Chowner restores ownership of a just-written file. The direct
// implementation calls os.Chown and only works when the running process
// has CAP_CHOWN (typically root); ChownHelper below models the privileged-
// helper alternative the spec calls for when it does not (§4.6).
type Chowner interface {
	Chown(path string, uid, gid uint32) error
}

// DirectChown calls os.Chown in-process.
type DirectChown struct{}

func (DirectChown) Chown(path string, uid, gid uint32) error {
	return os.Chown(path, int(uid), int(gid))
}

// ChownHelper shells out to a separately-privileged executable (for
// example a small setuid wrapper) when the transfer-get process itself
// cannot chown. Enabled is the capability's on/off toggle; HelperPath
// names the executable, invoked as `helper <path> <uid> <gid>`.
type ChownHelper struct {
	Enabled    bool
	HelperPath string
	// runCommand is overridable in tests rather than shelling out for real.
	runCommand func(name string, args ...string) error
}

func NewChownHelper(enabled bool, helperPath string) *ChownHelper {
	return &ChownHelper{
		Enabled:    enabled,
		HelperPath: helperPath,
		runCommand: func(name string, args ...string) error {
			return exec.Command(name, args...).Run() //nolint:gosec // helperPath is operator-configured, not user input
		},
	}
}

func (c *ChownHelper) Chown(path string, uid, gid uint32) error {
	if !c.Enabled {
		return os.Chown(path, int(uid), int(gid))
	}

	return c.runCommand(c.HelperPath, path, strconv.FormatUint(uint64(uid), 10), strconv.FormatUint(uint64(gid), 10))
}

// Config bounds a single transfer-get pass.
type Config struct {
	Chown Chowner
}

// Transfer streams PathDetails from the object store back onto the target
// filesystem.
type Transfer struct {
	Config   Config
	Create   CreateFunc
	Symlink  SymlinkFunc
	MkdirAll func(path string) error
	Chmod    func(path string, mode os.FileMode) error
}

// New builds a Transfer writing to the real filesystem.
func New(cfg Config) *Transfer {
	if cfg.Chown == nil {
		cfg.Chown = DirectChown{}
	}

	return &Transfer{
		Config: cfg,
		Create: func(path string) (io.WriteCloser, error) {
			return os.Create(path) //nolint:gosec // path is derived from the catalogued original_path, not directly user-supplied at this layer
		},
		Symlink:  os.Symlink,
		MkdirAll: func(path string) error { return os.MkdirAll(path, 0o755) },
		Chmod:    os.Chmod,
	}
}

// Result partitions a batch's outcome for transfer-get.complete/failed.
type Result struct {
	Completed model.FileList
	Failed    model.FileList
}

// Get restores every file in the batch under targetRoot, joined with each
// PathDetails' original_path.
func (t *Transfer) Get(ctx context.Context, store ObjectStore, targetRoot string, files model.FileList) Result {
	logger := mctx.LoggerFromContext(ctx)

	var result Result

	for _, pd := range files {
		dest := filepath.Join(targetRoot, pd.OriginalPath)

		if err := t.restoreOne(ctx, store, dest, pd); err != nil {
			logger.Errorf("transfer-get: restore %s: %v", pd.OriginalPath, err)
			if nlds.Retryable(err) {
				pd.AddRetryReason(err.Error())
			} else {
				pd.RetryReasons = append(pd.RetryReasons, err.Error())
			}
			result.Failed = append(result.Failed, pd)

			continue
		}

		result.Completed = append(result.Completed, pd)
	}

	return result
}

func (t *Transfer) restoreOne(ctx context.Context, store ObjectStore, dest string, pd model.PathDetails) error {
	if err := t.MkdirAll(filepath.Dir(dest)); err != nil {
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}

	if pd.IsSymlink() {
		if err := t.Symlink(pd.LinkTarget, dest); err != nil {
			if errors.Is(err, os.ErrExist) {
				return nil
			}

			return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
		}

		return nil
	}

	if pd.ObjectName == "" {
		return nlds.Wrap(nlds.KindUser, "PathDetails", fmt.Errorf("%s: %w", pd.OriginalPath, nlds.ErrNoLocation))
	}

	body, err := store.Get(ctx, pd.ObjectName)
	if err != nil {
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}
	defer body.Close()

	out, err := t.Create(dest)
	if err != nil {
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}

	if _, err := io.Copy(out, body); err != nil {
		_ = out.Close()
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}

	if err := out.Close(); err != nil {
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}

	if err := t.Chmod(dest, os.FileMode(pd.Permissions)); err != nil {
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}

	if err := t.Config.Chown.Chown(dest, pd.UID, pd.GID); err != nil {
		return nlds.Wrap(nlds.KindTransient, "PathDetails", err)
	}

	return nil
}
