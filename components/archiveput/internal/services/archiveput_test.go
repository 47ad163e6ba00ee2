package services

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/tape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects map[string]string
}

func (f *fakeStore) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	data, ok := f.objects[objectName]
	if !ok {
		return nil, os.ErrNotExist
	}

	return io.NopCloser(bytes.NewReader([]byte(data))), nil
}

func TestArchivePutBundlesEveryMemberAndChecksums(t *testing.T) {
	t.Parallel()

	store := &fakeStore{objects: map[string]string{"obj-a": "hello", "obj-b": "world!"}}
	tapeClient := tape.NewFakeClient()

	agg := model.Aggregate{
		TarName: "bundle.tar",
		Members: model.FileList{
			{OriginalPath: "/a", ObjectName: "obj-a", Size: 5},
			{OriginalPath: "/b", ObjectName: "obj-b", Size: 6},
		},
	}

	ap := New(DefaultConfig)
	result := ap.Put(context.Background(), store, tapeClient, "root://tape/root/bundle.tar", agg)

	require.False(t, result.WholeFailed)
	assert.Empty(t, result.Failed)
	assert.Len(t, result.Aggregate.Members, 2)
	assert.NotZero(t, result.Aggregate.Checksum)
	assert.Equal(t, "adler32", result.Aggregate.Algorithm)

	status, err := tapeClient.Stat(context.Background(), "root://tape/root/bundle.tar")
	require.NoError(t, err)
	assert.True(t, status.OnTape)
}

func TestArchivePutMemberReadFailureExcludesItWithoutFailingWholeAggregate(t *testing.T) {
	t.Parallel()

	store := &fakeStore{objects: map[string]string{"obj-a": "hello"}}
	tapeClient := tape.NewFakeClient()

	agg := model.Aggregate{
		TarName: "bundle.tar",
		Members: model.FileList{
			{OriginalPath: "/a", ObjectName: "obj-a", Size: 5},
			{OriginalPath: "/missing", ObjectName: "obj-missing", Size: 5},
		},
	}

	ap := New(DefaultConfig)
	result := ap.Put(context.Background(), store, tapeClient, "root://tape/root/bundle.tar", agg)

	require.False(t, result.WholeFailed)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "/missing", result.Failed[0].OriginalPath)
	assert.Len(t, result.Aggregate.Members, 1)
}
