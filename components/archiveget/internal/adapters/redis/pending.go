// Package redis holds archive-get's cross-replica pending/ready state: any
// stage may run N stateless replicas, so the prepare_id a request was
// issued under must be visible to whichever replica handles the matching
// prepare-check redelivery (§4.8.1).
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cedadev/nlds-go/pkg/mredis"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
)

const (
	pendingKeyPrefix   = "archive-get:prepare:"
	requestedKeyPrefix = "archive-get:requested:"
	lockTTL            = 10 * time.Second
)

// PendingStore holds, per prepare_id, the aggregate awaiting tape staging,
// and guards the "already requested" check with a distributed lock so
// concurrent replicas handling the same aggregate never issue two prepare
// requests for it (testable property 2).
type PendingStore struct {
	conn *mredis.Connection
	rs   *redsync.Redsync
}

// NewPendingStore builds a PendingStore over conn.
func NewPendingStore(conn *mredis.Connection) *PendingStore {
	return &PendingStore{conn: conn}
}

func (s *PendingStore) redsync(ctx context.Context) (*redsync.Redsync, error) {
	if s.rs != nil {
		return s.rs, nil
	}

	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	pool := goredis.NewPool(client)
	s.rs = redsync.New(pool)

	return s.rs, nil
}

// AlreadyRequested atomically checks and sets the "prepare already issued"
// marker for aggregateKey, returning true if a concurrent replica won the
// race and this caller should not issue a second RequestPrepare.
func (s *PendingStore) AlreadyRequested(ctx context.Context, aggregateKey string) (alreadyRequested bool, unlock func(), err error) {
	rs, err := s.redsync(ctx)
	if err != nil {
		return false, nil, err
	}

	mutex := rs.NewMutex("archive-get:lock:"+aggregateKey, redsync.WithExpiry(lockTTL))
	if err := mutex.LockContext(ctx); err != nil {
		return false, nil, fmt.Errorf("archive-get: acquire lock for %s: %w", aggregateKey, err)
	}

	unlockFn := func() { _, _ = mutex.UnlockContext(ctx) }

	client, err := s.conn.GetClient(ctx)
	if err != nil {
		unlockFn()
		return false, nil, err
	}

	set, err := client.SetNX(ctx, requestedKeyPrefix+aggregateKey, "1", 24*time.Hour).Result()
	if err != nil {
		unlockFn()
		return false, nil, err
	}

	// SetNX reports true when this call set the key, i.e. no one had
	// requested it yet.
	return !set, unlockFn, nil
}

// Put records a pending prepare under prepareID.
func (s *PendingStore) Put(ctx context.Context, prepareID string, agg model.Aggregate) error {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(agg)
	if err != nil {
		return err
	}

	return client.Set(ctx, pendingKeyPrefix+prepareID, data, 0).Err()
}

// Get loads the aggregate pending under prepareID; ok is false if no
// replica holds it (already resolved, or never issued).
func (s *PendingStore) Get(ctx context.Context, prepareID string) (agg model.Aggregate, ok bool, err error) {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return model.Aggregate{}, false, err
	}

	raw, err := client.Get(ctx, pendingKeyPrefix+prepareID).Bytes()
	if err != nil {
		return model.Aggregate{}, false, nil //nolint:nilerr // redis.Nil and any other miss both mean "not pending here"
	}

	if err := json.Unmarshal(raw, &agg); err != nil {
		return model.Aggregate{}, false, err
	}

	return agg, true, nil
}

// Remove deletes prepareID's pending entry once it has moved to ready or
// been abandoned.
func (s *PendingStore) Remove(ctx context.Context, prepareID string) error {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	return client.Del(ctx, pendingKeyPrefix+prepareID).Err()
}
