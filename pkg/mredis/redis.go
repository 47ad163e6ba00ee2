// Package mredis wires Redis as the cross-replica shared state store for
// archive-get's prepare/ready maps (§4.8.1): stage replicas are stateless,
// so a prepare_id issued by one replica must be visible to whichever
// replica handles the matching prepare-check redelivery.
package mredis

import (
	"context"
	"fmt"

	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/redis/go-redis/v9"
)

// Connection is a hub for a single Redis client.
type Connection struct {
	URL    string
	Logger mlog.Logger

	Client    *redis.Client
	Connected bool
}

// Connect parses the connection URL and pings to confirm connectivity.
func (c *Connection) Connect(ctx context.Context) error {
	c.Logger.Info("mredis: connecting...")

	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return fmt.Errorf("mredis: parse url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("mredis: ping: %w", err)
	}

	c.Client = client
	c.Connected = true

	c.Logger.Info("mredis: connected")

	return nil
}

// GetClient returns the client, connecting first if necessary.
func (c *Connection) GetClient(ctx context.Context) (*redis.Client, error) {
	if !c.Connected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.Client, nil
}
