package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// minPoolConns is the smallest pool the payment path can run on. Processing
// a payment holds one connection for the payment transaction while the
// in-process ledger opens a second for the reservation, so a pool sized
// below two nested acquisitions per request can exhaust itself under load.
const minPoolConns = 4

// PoolConfig translates the database settings into a pgxpool configuration,
// enforcing the connection floor the nested-transaction payment path needs.
func (c *DatabaseConfig) PoolConfig(ctx context.Context) (*pgxpool.Config, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database settings: %w", err)
	}

	maxConns := c.MaxOpenConns
	if maxConns < minPoolConns {
		maxConns = minPoolConns
	}
	cfg.MaxConns = int32(maxConns)
	cfg.MinConns = int32(c.MaxIdleConns)
	cfg.MaxConnLifetime = c.ConnMaxLifetime
	cfg.MaxConnIdleTime = c.ConnMaxIdleTime
	cfg.HealthCheckPeriod = time.Minute

	return cfg, nil
}
