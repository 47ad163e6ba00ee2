package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkSymlinkInsideRootIsLinkCommon(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	target := filepath.Join(root, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0o644))

	link := filepath.Join(root, "link.txt")
	require.NoError(t, os.Symlink("real.txt", link))

	w := NewWalker(DefaultWalkConfig)
	out := w.Walk("u", "g", 0, nil, []string{link})

	require.Len(t, out.Batches, 1)
	require.Len(t, out.Batches[0], 1)
	assert.Equal(t, model.PathTypeLinkCommon, out.Batches[0][0].PathType)
	assert.Equal(t, "real.txt", out.Batches[0][0].LinkTarget)
}

func TestWalkSymlinkOutsideRootIsLinkAbsolute(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0o644))

	link := filepath.Join(root, "link.txt")
	require.NoError(t, os.Symlink(target, link))

	w := NewWalker(DefaultWalkConfig)
	out := w.Walk("u", "g", 0, nil, []string{link})

	require.Len(t, out.Batches, 1)
	require.Len(t, out.Batches[0], 1)
	assert.Equal(t, model.PathTypeLinkAbsolute, out.Batches[0][0].PathType)
}

func TestWalkMissingPathFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	missing := filepath.Join(root, "nope.txt")

	w := NewWalker(DefaultWalkConfig)
	out := w.Walk("u", "g", 0, nil, []string{missing})

	require.Len(t, out.Failed, 1)
	assert.Equal(t, "file not found", out.FailReason[missing])
}

func TestWalkOversizedFileFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	big := filepath.Join(root, "big.txt")
	require.NoError(t, os.WriteFile(big, []byte("hi"), 0o644))

	cfg := DefaultWalkConfig
	cfg.PerFileMaxBytes = 1 // smaller than the 2-byte file written above

	w := NewWalker(cfg)
	out := w.Walk("u", "g", 0, nil, []string{big})

	require.Len(t, out.Failed, 1)
	assert.Equal(t, "file too large", out.FailReason[big])
}
