// Package tape models the cold tier as a small capability interface rather
// than a concrete client binding: no production Go xrootd client exists in
// the reference corpus this implementation draws on, so archive-put and
// archive-get depend only on this interface (§4.8.2, §6 storage
// endpoints). A production deployment supplies its own Client backed by
// whatever xrootd bridge is available at the site.
package tape

import (
	"context"
	"io"
)

// AggregateStatus reports whether an aggregate is known to the tape system
// and already staged for fast reads.
type AggregateStatus struct {
	OnTape bool
	Staged bool
}

// PrepareStatus reports the progress of a previously-requested prepare.
type PrepareStatus struct {
	Done    bool
	Pending bool
}

// Client is the xrootd-style prepare/poll/stream contract tape storage
// must expose.
type Client interface {
	// Stat reports an aggregate's current tape/stage status.
	Stat(ctx context.Context, aggregateURL string) (AggregateStatus, error)
	// RequestPrepare asks tape to mount and stage the given aggregates,
	// returning a tape-issued prepare id to poll later.
	RequestPrepare(ctx context.Context, aggregateURLs []string) (prepareID string, err error)
	// PollPrepare checks on a previously issued prepare request.
	PollPrepare(ctx context.Context, prepareID string) (PrepareStatus, error)
	// Create opens aggregateURL for writing a new tape archive container.
	Create(ctx context.Context, aggregateURL string) (io.WriteCloser, error)
	// Open opens aggregateURL for streaming read, once staged.
	Open(ctx context.Context, aggregateURL string) (io.ReadCloser, error)
}

// URL builds the xrootd-style address for an aggregate, scheme://netloc/root/aggregate.
func URL(scheme, netloc, root, aggregate string) string {
	return scheme + "://" + netloc + "/" + root + "/" + aggregate
}
