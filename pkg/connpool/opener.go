package connpool

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrFailedToOpenHandle wraps per-tenant pool construction failures.
var ErrFailedToOpenHandle = errors.New("failed to open tenant connection")

// PgxOpener returns an OpenFunc that constructs a pgx connection pool per
// tenant. Per-tenant pools are kept small: the connection cache itself
// multiplies them by the number of active tenants.
func PgxOpener(cfg Config) OpenFunc {
	return func(ctx context.Context, connectionTarget string) (Handle, error) {
		poolCfg, err := pgxpool.ParseConfig(connectionTarget)
		if err != nil {
			return nil, errors.Join(ErrFailedToOpenHandle, err)
		}
		if cfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = cfg.MaxOpenConns
		}
		if cfg.MaxConnIdleTime > 0 {
			poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, errors.Join(ErrFailedToOpenHandle, err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, errors.Join(ErrFailedToOpenHandle, err)
		}
		return pool, nil
	}
}
