package checks

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonwraymond/healthreport/health"
)

// closeTimeout bounds the graceful terminate sent after a probe.
const closeTimeout = time.Second

// PostgresConfig configures a Postgres probe.
type PostgresConfig struct {
	Name        string
	Description string

	// DSN is a postgres:// URL or keyword/value connection string.
	DSN string

	// Query runs after the ping when set, e.g. "SELECT 1 FROM schema_migrations".
	Query string

	Timeout     time.Duration
	WarnOnError bool
}

// Postgres returns a check that connects, pings and optionally runs
// cfg.Query. The success detail names the host and database, never the
// credentials.
func Postgres(cfg PostgresConfig) health.Check {
	return health.Check{
		Name:        cfg.Name,
		Description: cfg.Description,
		Timeout:     cfg.Timeout,
		WarnOnError: cfg.WarnOnError,
		Fn: func(ctx context.Context, _ *health.State) (string, error) {
			if cfg.DSN == "" {
				return "", fmt.Errorf("%w: dsn", ErrMissingTarget)
			}

			connCfg, err := pgx.ParseConfig(cfg.DSN)
			if err != nil {
				return "", fmt.Errorf("parse dsn: %w", err)
			}

			conn, err := pgx.ConnectConfig(ctx, connCfg)
			if err != nil {
				return "", err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
				defer cancel()
				_ = conn.Close(closeCtx)
			}()

			if err := conn.Ping(ctx); err != nil {
				return "", fmt.Errorf("ping: %w", err)
			}
			if cfg.Query != "" {
				if _, err := conn.Exec(ctx, cfg.Query); err != nil {
					return "", fmt.Errorf("query: %w", err)
				}
			}

			target := connCfg.Host + ":" + strconv.Itoa(int(connCfg.Port))
			if connCfg.Database != "" {
				target += "/" + connCfg.Database
			}
			return "connected to " + target, nil
		},
	}
}
