package tape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// FakeClient is an in-memory tape.Client used by archive-put/archive-get
// unit tests. Prepare requests complete immediately by default; tests that
// need to exercise the pending/poll loop can set PendingRounds to delay
// completion by that many PollPrepare calls.
type FakeClient struct {
	mu            sync.Mutex
	store         map[string][]byte
	staged        map[string]bool
	prepares      map[string]*fakePrepare
	nextPrepareID int

	// PendingRounds, if > 0, makes a newly requested prepare report
	// Pending for that many PollPrepare calls before Done.
	PendingRounds int
}

type fakePrepare struct {
	aggregates []string
	remaining  int
}

// NewFakeClient returns an empty fake tape store.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		store:    make(map[string][]byte),
		staged:   make(map[string]bool),
		prepares: make(map[string]*fakePrepare),
	}
}

func (f *FakeClient) Stat(ctx context.Context, aggregateURL string) (AggregateStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, onTape := f.store[aggregateURL]

	return AggregateStatus{OnTape: onTape, Staged: f.staged[aggregateURL]}, nil
}

func (f *FakeClient) RequestPrepare(ctx context.Context, aggregateURLs []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextPrepareID++
	id := fmt.Sprintf("prepare-%d", f.nextPrepareID)

	f.prepares[id] = &fakePrepare{aggregates: aggregateURLs, remaining: f.PendingRounds}

	return id, nil
}

func (f *FakeClient) PollPrepare(ctx context.Context, prepareID string) (PrepareStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.prepares[prepareID]
	if !ok {
		return PrepareStatus{}, fmt.Errorf("tape: unknown prepare id %s", prepareID)
	}

	if p.remaining > 0 {
		p.remaining--
		return PrepareStatus{Pending: true}, nil
	}

	for _, a := range p.aggregates {
		f.staged[a] = true
	}

	return PrepareStatus{Done: true}, nil
}

func (f *FakeClient) Create(ctx context.Context, aggregateURL string) (io.WriteCloser, error) {
	return &fakeWriter{client: f, url: aggregateURL}, nil
}

func (f *FakeClient) Open(ctx context.Context, aggregateURL string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.store[aggregateURL]
	if !ok {
		return nil, fmt.Errorf("tape: no such aggregate %s", aggregateURL)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeWriter struct {
	client *FakeClient
	url    string
	buf    bytes.Buffer
}

func (w *fakeWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *fakeWriter) Close() error {
	w.client.mu.Lock()
	defer w.client.mu.Unlock()

	w.client.store[w.url] = w.buf.Bytes()
	w.client.staged[w.url] = true

	return nil
}
