package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenant carries the minimal tenant identity needed for request-scoped
// operations and client-side display.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Subdomain string    `json:"subdomain"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Record is a tenant directory row: the tenant identity plus the encrypted
// connection target for its isolated database. The directory is the source
// of truth; this package only reads records, never writes them.
type Record struct {
	Tenant
	EncryptedConnectionTarget string `json:"-"`
}

// TenantContext is the per-request resolution result: which tenant the
// request belongs to and the decrypted connection target for its database.
// It is owned by the request scope and must not outlive it.
type TenantContext struct {
	Tenant           *Tenant
	ConnectionTarget string
}

// Directory looks tenants up in the platform directory.
type Directory interface {
	// FindBySubdomain retrieves the record for an active tenant.
	// Returns ErrTenantNotFound when no active tenant matches.
	FindBySubdomain(ctx context.Context, subdomain string) (*Record, error)
}

// DecryptFunc decrypts a stored connection target. Implemented by the
// secrets package; declared here so the middleware does not depend on a
// concrete cipher.
type DecryptFunc func(encrypted string) (string, error)
