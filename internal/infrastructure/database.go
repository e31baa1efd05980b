// Package infrastructure provides database and connection pool setup.
//
// The loader uses a single pgxpool for every stage. Each stage borrows a
// connection for its own transaction, so the pool stays small.
//
// Import Path: catalogo.cali.gov.co/etl/internal/infrastructure
package infrastructure

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"catalogo.cali.gov.co/etl/internal/config"
	apperrors "catalogo.cali.gov.co/etl/internal/pkg/errors"
	"catalogo.cali.gov.co/etl/internal/pkg/logger"
)

//go:embed migrations/catalog.sql
var catalogDDL string

const schemaPlaceholder = "{{schema}}"

// DatabaseClients holds the shared connection pool.
type DatabaseClients struct {
	Pool   *pgxpool.Pool
	Schema string
}

// NewDatabaseClients creates the pool and waits for the database to accept
// connections. Ping is retried every ConnectRetryInterval until
// ConnectTimeout elapses; a zero timeout means a single attempt.
func NewDatabaseClients(ctx context.Context, cfg config.DatabaseConfig) (*DatabaseClients, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, apperrors.Fatalf(err, apperrors.CodeConnectFailed, "parse pool config")
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.HealthCheckPeriod = time.Minute

	// Set UTC timezone on each new connection
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET timezone = 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.Fatalf(err, apperrors.CodeConnectFailed, "create pool")
	}

	if err := waitForDatabase(ctx, pool, cfg.ConnectTimeout, cfg.ConnectRetryInterval); err != nil {
		pool.Close()
		return nil, apperrors.Fatalf(err, apperrors.CodeConnectFailed, "database %s:%d unreachable", cfg.Host, cfg.Port)
	}

	logger.Info("Database connection pool created",
		zap.Int32("max_conns", poolConfig.MaxConns),
		zap.String("schema", cfg.Schema),
	)

	return &DatabaseClients{Pool: pool, Schema: cfg.Schema}, nil
}

// pinger is the part of pgxpool.Pool the retry loop needs.
type pinger interface {
	Ping(ctx context.Context) error
}

func waitForDatabase(ctx context.Context, db pinger, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	attempt := 0
	for {
		attempt++
		err := db.Ping(ctx)
		if err == nil {
			return nil
		}
		if time.Now().Add(interval).After(deadline) {
			return fmt.Errorf("ping database after %d attempts: %w", attempt, err)
		}
		logger.Warn("Database not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", interval),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

// CatalogDDL returns the catalog schema DDL targeting schema.
func CatalogDDL(schema string) string {
	return strings.ReplaceAll(catalogDDL, schemaPlaceholder, pgx.Identifier{schema}.Sanitize())
}

// AutoMigrate creates the catalog schema and tables when they do not exist.
// Existing tables are left untouched.
func (c *DatabaseClients) AutoMigrate(ctx context.Context) error {
	logger.Info("Running catalog auto-migration...", zap.String("schema", c.Schema))
	if _, err := c.Pool.Exec(ctx, CatalogDDL(c.Schema)); err != nil {
		return apperrors.Fatalf(err, apperrors.CodeMigrateFailed, "catalog auto-migrate")
	}
	logger.Info("Catalog auto-migration completed")
	return nil
}

// Close closes the pool.
func (c *DatabaseClients) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
