// Package tenant provides the server-side tenant resolution core for
// subdomain-based multi-tenancy: mapping a request host to a tenant record,
// decrypting its connection target and attaching a per-request TenantContext.
//
// # Architecture
//
// Three pieces cooperate:
//
//  1. Resolver - extracts the subdomain candidate from the request host,
//     preferring X-Forwarded-Host and bypassing configured root domains
//  2. Directory - loads tenant records from the platform directory
//  3. Middleware - orchestrates resolution, caching, decryption and
//     context propagation
//
// # Usage
//
//	resolver := tenant.NewHostResolver("localhost", "app.example.com")
//	cipher, _ := secrets.NewCipher(cfg.EncryptionKey)
//	mw := tenant.Middleware(resolver, directory, cipher.Decrypt,
//		tenant.WithCacheTTL(10*time.Minute),
//		tenant.WithSkipPaths([]string{"/health"}),
//	)
//	router.Use(mw)
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		tc, ok := tenant.FromContext(r.Context())
//		if !ok {
//			// platform/root request
//			return
//		}
//		_ = tc.ConnectionTarget
//	}
//
// # Caching
//
// Directory lookups are cached per subdomain with a TTL. The default
// in-memory cache bounds its size by evicting the least recently accessed
// entry; a Redis-backed cache is provided for multi-replica deployments.
//
// # Error handling
//
// Unknown or inactive tenants are rejected as authorization failures (403),
// malformed subdomains as bad requests (400), and decryption failures as
// internal errors (500). A resolution failure never downgrades the request
// to platform scope.
package tenant
