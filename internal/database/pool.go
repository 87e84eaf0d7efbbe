package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/angeloszaimis/engagement-relay/config"
)

// ErrNoDSN is returned when neither POSTGRES_URL nor DATABASE_URL is set.
var ErrNoDSN = errors.New("database: no connection string configured (POSTGRES_URL or DATABASE_URL)")

// Pinger is the part of the pool readiness checks depend on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ParseConfig turns the database settings into a pool configuration.
// TLS is always required; an sslmode in the connection string is overridden.
func ParseConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	dsn := strings.TrimSpace(cfg.URL)
	if dsn == "" {
		return nil, ErrNoDSN
	}

	dsn, err := requireSSL(dsn)
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("database: parse connection string: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MaxConnIdleTime = config.Duration(cfg.IdleTimeout)
	poolCfg.ConnConfig.ConnectTimeout = config.Duration(cfg.ConnectTimeout)

	return poolCfg, nil
}

// NewPool builds the process-wide pool. Connections are opened lazily,
// so an unreachable server surfaces on first use, not here.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database: create pool: %w", err)
	}

	return pool, nil
}

// Ping checks connectivity within timeout.
func Ping(ctx context.Context, p Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(ctx)
}

// requireSSL forces sslmode=require, replacing any weaker mode in the DSN.
func requireSSL(dsn string) (string, error) {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("database: parse connection URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "require")
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	fields := strings.Fields(dsn)
	kept := fields[:0]
	for _, f := range fields {
		if !strings.HasPrefix(f, "sslmode=") {
			kept = append(kept, f)
		}
	}
	return strings.Join(append(kept, "sslmode=require"), " "), nil
}
