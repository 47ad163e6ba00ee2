package services

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	existing map[string]bool
	put      map[string][]byte
	putErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: map[string]bool{}, put: map[string][]byte{}}
}

func (f *fakeStore) Exists(ctx context.Context, objectName string) (bool, error) {
	return f.existing[objectName], nil
}

func (f *fakeStore) Put(ctx context.Context, objectName string, body io.Reader, size int64) error {
	if f.putErr != nil {
		return f.putErr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.put[objectName] = data

	return nil
}

func fakeOpen(contents map[string]string) OpenFunc {
	return func(path string) (io.ReadCloser, int64, error) {
		body, ok := contents[path]
		if !ok {
			return nil, 0, os.ErrNotExist
		}

		return io.NopCloser(bytes.NewReader([]byte(body))), int64(len(body)), nil
	}
}

func TestTransferPutUploadsEachFileAndPopulatesObjectName(t *testing.T) {
	t.Parallel()

	tr := New(DefaultConfig)
	tr.Open = fakeOpen(map[string]string{"/a/b": "hello"})
	store := newFakeStore()

	result := tr.Put(context.Background(), store, "txn-1", model.FileList{{OriginalPath: "/a/b", Size: 5}})

	require.Len(t, result.Completed, 1)
	assert.Empty(t, result.Failed)
	assert.NotEmpty(t, result.Completed[0].ObjectName)
	assert.Equal(t, []byte("hello"), store.put[result.Completed[0].ObjectName])
}

func TestTransferPutSkipsUploadWhenObjectAlreadyExists(t *testing.T) {
	t.Parallel()

	tr := New(DefaultConfig)
	tr.Open = fakeOpen(nil)
	store := newFakeStore()

	objectName := objectstore.ObjectName("txn-1", "/a/b")
	store.existing[objectName] = true

	result := tr.Put(context.Background(), store, "txn-1", model.FileList{{OriginalPath: "/a/b", Size: 5}})

	require.Len(t, result.Completed, 1)
	assert.Equal(t, objectName, result.Completed[0].ObjectName)
	assert.Empty(t, store.put)
}

func TestTransferPutMissingSourceFailsWithoutRetry(t *testing.T) {
	t.Parallel()

	tr := New(DefaultConfig)
	tr.Open = fakeOpen(nil)
	store := newFakeStore()

	result := tr.Put(context.Background(), store, "txn-1", model.FileList{{OriginalPath: "/missing", Size: 5}})

	require.Empty(t, result.Completed)
	require.Len(t, result.Failed, 1)
	assert.Len(t, result.Failed[0].RetryReasons, 1)
}
