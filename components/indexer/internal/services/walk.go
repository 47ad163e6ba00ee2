// Package services implements the indexer's two entry states: splitting a
// raw path list into sub-transactions, and walking a sub-list into
// verified, batched PathDetails (§4.3).
package services

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/google/uuid"
)

// SplitConfig bounds how init (split) chunks a raw path list.
type SplitConfig struct {
	MaxSubListLength int // L, default 1000
}

// DefaultSplitConfig matches the spec's default of 1000 paths per sub-transaction.
var DefaultSplitConfig = SplitConfig{MaxSubListLength: 1000}

// Split partitions paths into ceil(N/L) sub-transactions, each at most L
// entries, each given a fresh sub_id retaining the parent transaction id.
func Split(cfg SplitConfig, transactionID string, paths []string) []SubTransaction {
	if cfg.MaxSubListLength <= 0 {
		cfg = DefaultSplitConfig
	}

	if len(paths) == 0 {
		return nil
	}

	var subs []SubTransaction

	for start := 0; start < len(paths); start += cfg.MaxSubListLength {
		end := start + cfg.MaxSubListLength
		if end > len(paths) {
			end = len(paths)
		}

		subs = append(subs, SubTransaction{
			TransactionID: transactionID,
			SubID:         uuid.NewString(),
			Paths:         paths[start:end],
		})
	}

	return subs
}

// SubTransaction is one emitted index.start unit.
type SubTransaction struct {
	TransactionID string
	SubID         string
	Paths         []string
}

// WalkConfig bounds batching and per-file validation during the walk
// (start) phase.
type WalkConfig struct {
	BatchMaxLength    int   // L, default 1000
	BatchMaxBytes     int64 // B, default 500 GB
	PerFileMaxBytes   int64 // default 500 GB
	CheckPermissions  bool
	CheckFileSize     bool
}

// DefaultWalkConfig matches the spec's defaults.
var DefaultWalkConfig = WalkConfig{
	BatchMaxLength:   1000,
	BatchMaxBytes:    500 * 1 << 30,
	PerFileMaxBytes:  500 * 1 << 30,
	CheckPermissions: true,
	CheckFileSize:    true,
}

// WalkResult groups batches with residual directories; Walk does not
// produce it, since Walk recurses into directories itself and returns an
// Outcome, so no residual directory is re-emitted as an index.start.
type WalkResult struct {
	Batches             []model.FileList
	ResidualDirectories []string
}

// statFunc is the type of Walker's overridable Stat and Lstat fields, for
// testing without a real filesystem.
type statFunc func(path string) (os.FileInfo, error)

// Walker performs the stat/enumerate/classify logic against a filesystem,
// accumulating batches under cfg's thresholds.
type Walker struct {
	Config   WalkConfig
	Stat     statFunc
	Lstat    statFunc
	ReadLink func(path string) (string, error)
	// CheckAccess reports whether uid with the given supplementary gids may
	// read path; the real implementation resolves this from the host's
	// name service, tests substitute a fake.
	CheckAccess func(path string, uid uint32, gids []uint32) bool
}

// NewWalker builds a Walker backed by the real OS filesystem.
func NewWalker(cfg WalkConfig) *Walker {
	return &Walker{
		Config:      cfg,
		Stat:        os.Stat,
		Lstat:       os.Lstat,
		ReadLink:    os.Readlink,
		CheckAccess: func(path string, uid uint32, gids []uint32) bool { return true },
	}
}

// Outcome is the per-path classification result of walking one sub-list.
type Outcome struct {
	Batches    []model.FileList
	Failed     model.FileList
	FailReason map[string]string // original_path -> reason, for monitor FailedFile rows
}

// Walk stats and classifies every path (recursing into directories
// depth-first), accumulating batches that close when either the count or
// byte threshold is crossed. Crossing a threshold mid-walk closes the
// batch and opens a new one — see §9 "Open questions, resolved" — it is
// never itself a failure.
func (w *Walker) Walk(user, group string, uid uint32, gids []uint32, paths []string) Outcome {
	out := Outcome{FailReason: make(map[string]string)}

	var current model.FileList

	flush := func() {
		if len(current) > 0 {
			out.Batches = append(out.Batches, current)
			current = nil
		}
	}

	var walkOne func(path string, root string)
	walkOne = func(path string, root string) {
		info, err := w.Lstat(path)
		if err != nil {
			out.Failed = append(out.Failed, model.PathDetails{OriginalPath: path})
			out.FailReason[path] = "file not found"

			return
		}

		if w.Config.CheckPermissions && !w.CheckAccess(path, uid, gids) {
			out.Failed = append(out.Failed, model.PathDetails{OriginalPath: path})
			out.FailReason[path] = "permission denied"

			return
		}

		if info.Mode()&os.ModeSymlink != 0 {
			w.classifySymlink(path, root, info, user, group, &out, &current)
			w.maybeFlush(&current, &out, flush)

			return
		}

		if info.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				out.Failed = append(out.Failed, model.PathDetails{OriginalPath: path})
				out.FailReason[path] = "file not found"

				return
			}

			for _, e := range entries {
				walkOne(filepath.Join(path, e.Name()), root)
			}

			return
		}

		w.classifyFile(path, info, user, group, &out, &current)
		w.maybeFlush(&current, &out, flush)
	}

	for _, p := range paths {
		walkOne(p, filepath.Dir(p))
	}

	flush()

	return out
}

func (w *Walker) maybeFlush(current *model.FileList, out *Outcome, flush func()) {
	if len(*current) >= w.Config.BatchMaxLength {
		flush()
		return
	}

	if w.Config.BatchMaxBytes > 0 && current.TotalSize() >= w.Config.BatchMaxBytes {
		flush()
	}
}

func (w *Walker) classifyFile(path string, info os.FileInfo, user, group string, out *Outcome, current *model.FileList) {
	if w.Config.CheckFileSize && info.Size() > w.Config.PerFileMaxBytes {
		out.Failed = append(out.Failed, model.PathDetails{OriginalPath: path, Size: info.Size()})
		out.FailReason[path] = "file too large"

		return
	}

	*current = append(*current, model.PathDetails{
		OriginalPath: path,
		Size:         info.Size(),
		Permissions:  uint32(info.Mode().Perm()),
		AccessTime:   time.Now(),
		PathType:     model.PathTypeFile,
	})
}

func (w *Walker) classifySymlink(path, root string, info os.FileInfo, user, group string, out *Outcome, current *model.FileList) {
	target, err := w.ReadLink(path)
	if err != nil {
		out.Failed = append(out.Failed, model.PathDetails{OriginalPath: path})
		out.FailReason[path] = "file not found"

		return
	}

	resolved := target
	if !filepath.IsAbs(target) {
		resolved = filepath.Join(filepath.Dir(path), target)
	}

	pathType := model.PathTypeLinkAbsolute
	if strings.HasPrefix(resolved, root) {
		pathType = model.PathTypeLinkCommon
	}

	*current = append(*current, model.PathDetails{
		OriginalPath: path,
		Permissions:  uint32(info.Mode().Perm()),
		AccessTime:   time.Now(),
		PathType:     pathType,
		LinkTarget:   target,
	})
}
