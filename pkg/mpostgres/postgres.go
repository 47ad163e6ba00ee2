// Package mpostgres wires a primary/replica PostgreSQL connection pair
// behind dbresolver, with pgx as the stdlib driver and schema migrations
// driven by golang-migrate, matching the catalog and monitor stores'
// persistence requirements (§4.4.1, §4.9.1).
package mpostgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Connection is a hub for primary/replica Postgres connections for a single
// logical store (catalog or monitor each get their own Connection).
type Connection struct {
	PrimaryDSN    string
	ReplicaDSNs   []string
	MigrationsDir string
	Logger        mlog.Logger

	DB        dbresolver.DB
	Connected bool
}

// Connect opens the primary and replica pools, wraps them in a dbresolver
// using round-robin read load balancing, and runs pending migrations
// against the primary.
func (c *Connection) Connect(ctx context.Context) error {
	c.Logger.Info("mpostgres: connecting...")

	primary, err := sql.Open("pgx", c.PrimaryDSN)
	if err != nil {
		return fmt.Errorf("mpostgres: open primary: %w", err)
	}

	if err := primary.PingContext(ctx); err != nil {
		return fmt.Errorf("mpostgres: ping primary: %w", err)
	}

	replicaDBs := []*sql.DB{primary}

	for _, dsn := range c.ReplicaDSNs {
		r, err := sql.Open("pgx", dsn)
		if err != nil {
			return fmt.Errorf("mpostgres: open replica: %w", err)
		}

		replicaDBs = append(replicaDBs, r)
	}

	c.DB = dbresolver.New(
		dbresolver.WithPrimaryDBs(primary),
		dbresolver.WithReplicaDBs(replicaDBs...),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	)

	if c.MigrationsDir != "" {
		if err := c.migrate(); err != nil {
			return err
		}
	}

	c.Connected = true
	c.Logger.Info("mpostgres: connected")

	return nil
}

func (c *Connection) migrate() error {
	primary, err := sql.Open("pgx", c.PrimaryDSN)
	if err != nil {
		return fmt.Errorf("mpostgres: open for migration: %w", err)
	}
	defer primary.Close()

	driver, err := postgres.WithInstance(primary, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("mpostgres: migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+c.MigrationsDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("mpostgres: migrate init: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("mpostgres: migrate up: %w", err)
	}

	return nil
}

// GetDB returns the resolver, connecting first if necessary.
func (c *Connection) GetDB(ctx context.Context) (dbresolver.DB, error) {
	if !c.Connected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.DB, nil
}
