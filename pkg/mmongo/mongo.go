// Package mmongo wires MongoDB as the catalog store's companion tag-map
// store: per-holding key/value tags are schemaless and do not deserve a
// relational table of their own (§4.4.1).
package mmongo

import (
	"context"
	"fmt"

	"github.com/cedadev/nlds-go/pkg/mlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connection is a hub for a single MongoDB client/database pair.
type Connection struct {
	URI        string
	Database   string
	Logger     mlog.Logger

	Client    *mongo.Client
	Connected bool
}

// Connect dials MongoDB and pings to confirm connectivity.
func (c *Connection) Connect(ctx context.Context) error {
	c.Logger.Info("mmongo: connecting...")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.URI))
	if err != nil {
		return fmt.Errorf("mmongo: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mmongo: ping: %w", err)
	}

	c.Client = client
	c.Connected = true

	c.Logger.Info("mmongo: connected")

	return nil
}

// GetDB returns the target database handle, connecting first if necessary.
func (c *Connection) GetDB(ctx context.Context) (*mongo.Database, error) {
	if !c.Connected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.Client.Database(c.Database), nil
}
