package services

import (
	"archive/tar"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/objectstore"
	"github.com/cedadev/nlds-go/pkg/tape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePendingStore is an in-memory stand-in for adapters/redis.PendingStore,
// used so these tests never need a live Redis.
type fakePendingStore struct {
	mu        sync.Mutex
	pending   map[string]model.Aggregate
	requested map[string]bool
}

func newFakePendingStore() *fakePendingStore {
	return &fakePendingStore{
		pending:   make(map[string]model.Aggregate),
		requested: make(map[string]bool),
	}
}

func (s *fakePendingStore) AlreadyRequested(ctx context.Context, aggregateKey string) (bool, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	already := s.requested[aggregateKey]
	s.requested[aggregateKey] = true

	return already, func() {}, nil
}

func (s *fakePendingStore) Put(ctx context.Context, prepareID string, agg model.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[prepareID] = agg

	return nil
}

func (s *fakePendingStore) Get(ctx context.Context, prepareID string) (model.Aggregate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.pending[prepareID]

	return agg, ok, nil
}

func (s *fakePendingStore) Remove(ctx context.Context, prepareID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, prepareID)

	return nil
}

type fakeUploadStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeUploadStore() *fakeUploadStore {
	return &fakeUploadStore{objects: make(map[string][]byte)}
}

func (s *fakeUploadStore) Put(ctx context.Context, objectName string, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[objectName] = data

	return nil
}

func aggregateURLFor(agg model.Aggregate) string { return "root://tape/nlds/" + agg.TarName }

func TestArchiveGetPrepareRequestsStagingOnceAndSkipsAlreadyStaged(t *testing.T) {
	t.Parallel()

	tapeClient := tape.NewFakeClient()
	pending := newFakePendingStore()
	ag := &ArchiveGet{Tape: tapeClient, Pending: pending}

	staged := model.Aggregate{TarName: "staged.tar"}
	writeTarToFake(t, tapeClient, aggregateURLFor(staged), nil)

	unstaged := model.Aggregate{TarName: "unstaged.tar"}

	result, err := ag.Prepare(context.Background(), aggregateURLFor, []model.Aggregate{staged, unstaged})
	require.NoError(t, err)

	require.Len(t, result.Ready, 1)
	assert.Equal(t, "staged.tar", result.Ready[0].TarName)
	require.Len(t, result.Pending, 1)

	// A second prepare call for the same unstaged aggregate must not issue
	// a duplicate tape request (testable property 2).
	result2, err := ag.Prepare(context.Background(), aggregateURLFor, []model.Aggregate{unstaged})
	require.NoError(t, err)
	assert.Empty(t, result2.Pending)
	assert.Empty(t, result2.Ready)
}

func TestArchiveGetPrepareCheckMovesFinishedAggregatesToReady(t *testing.T) {
	t.Parallel()

	tapeClient := tape.NewFakeClient()
	tapeClient.PendingRounds = 1
	pending := newFakePendingStore()
	ag := &ArchiveGet{Tape: tapeClient, Pending: pending}

	agg := model.Aggregate{TarName: "slow.tar"}

	prepResult, err := ag.Prepare(context.Background(), aggregateURLFor, []model.Aggregate{agg})
	require.NoError(t, err)
	require.Len(t, prepResult.Pending, 1)

	firstCheck, err := ag.PrepareCheck(context.Background(), prepResult.Pending)
	require.NoError(t, err)
	assert.Empty(t, firstCheck.Ready)
	require.Len(t, firstCheck.StillPending, 1)

	secondCheck, err := ag.PrepareCheck(context.Background(), firstCheck.StillPending)
	require.NoError(t, err)
	require.Len(t, secondCheck.Ready, 1)
	assert.Equal(t, "slow.tar", secondCheck.Ready[0].TarName)
	assert.Empty(t, secondCheck.StillPending)
}

func TestArchiveGetStartExtractsEachMemberAndFailsOnlyMissingOnes(t *testing.T) {
	t.Parallel()

	tapeClient := tape.NewFakeClient()
	url := "root://tape/nlds/bundle.tar"

	members := []tarMember{
		{name: "/a", body: "hello"},
		{name: "/b", body: "world!"},
	}
	writeTarToFake(t, tapeClient, url, members)

	agg := model.Aggregate{
		TarName: "bundle.tar",
		Members: model.FileList{
			{OriginalPath: "/a"},
			{OriginalPath: "/b"},
		},
	}

	ag := &ArchiveGet{Tape: tapeClient, Pending: newFakePendingStore()}
	store := newFakeUploadStore()

	result := ag.Start(context.Background(), store, url, "txn-1", agg)

	require.Len(t, result.Transferred, 2)
	assert.Empty(t, result.Failed)

	for _, pd := range result.Transferred {
		want := objectstore.ObjectName("txn-1", pd.OriginalPath)
		assert.Equal(t, want, pd.ObjectName)
		assert.Contains(t, store.objects, want)
	}
}

type tarMember struct {
	name string
	body string
}

func writeTarToFake(t *testing.T, client *tape.FakeClient, url string, members []tarMember) {
	t.Helper()

	out, err := client.Create(context.Background(), url)
	require.NoError(t, err)

	tw := tar.NewWriter(out)

	for _, m := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: m.name, Size: int64(len(m.body))}))
		_, err := tw.Write([]byte(m.body))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, out.Close())
}
