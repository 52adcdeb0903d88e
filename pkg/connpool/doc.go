// Package connpool caches one live database handle per tenant.
//
// Handles are constructed lazily on first access and shared by every
// concurrent request for the same tenant; a singleflight group guarantees
// at most one handle is ever constructed per tenant ID, even under
// concurrent first access. A background sweep closes handles that have been
// idle past a threshold, reclaiming connections from tenants that went
// quiet.
//
//	cache := connpool.New(connpool.PgxOpener(cfg), cfg)
//	defer cache.Close()
//
//	tc := tenant.MustFromContext(r.Context())
//	handle, err := cache.Get(r.Context(), tc.Tenant.ID, tc.ConnectionTarget)
//
// Construction failures propagate to the caller and do not poison the
// cache; the next Get retries construction.
package connpool
