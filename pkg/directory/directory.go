package directory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// findBySubdomainQuery only matches active tenants: a deactivated tenant is
// indistinguishable from an absent one to callers, by contract.
const findBySubdomainQuery = `
SELECT id, subdomain, name, active, created_at, encrypted_connection_target
FROM tenants
WHERE subdomain = $1 AND active = TRUE`

// PG reads tenant records from the central platform database.
type PG struct {
	pool *pgxpool.Pool
}

// New creates a directory over an existing connection pool.
func New(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// FindBySubdomain implements tenant.Directory.
func (d *PG) FindBySubdomain(ctx context.Context, subdomain string) (*tenant.Record, error) {
	var rec tenant.Record
	err := d.pool.QueryRow(ctx, findBySubdomainQuery, subdomain).Scan(
		&rec.ID,
		&rec.Subdomain,
		&rec.Name,
		&rec.Active,
		&rec.CreatedAt,
		&rec.EncryptedConnectionTarget,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, errors.Join(ErrLookupFailed, err)
	}
	return &rec, nil
}

// Connect establishes the platform database pool with retry logic so service
// startup survives transient network issues. The backoff grows linearly per
// attempt to avoid a thundering herd when many replicas restart together.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MaxIdleConns
	connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	connConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	connConfig.MaxConnLifetime = cfg.MaxConnLifetime

	for i := range cfg.RetryAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err != nil {
			time.Sleep(time.Duration(i+1) * cfg.RetryInterval)
			continue
		}

		// Ping catches authentication and permission issues that pool
		// construction alone does not surface.
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			time.Sleep(time.Duration(i+1) * cfg.RetryInterval)
			continue
		}

		return pool, nil
	}

	return nil, ErrFailedToConnect
}

// Healthcheck returns a closure suitable for standard health endpoints.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
