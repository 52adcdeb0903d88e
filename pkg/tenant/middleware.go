package tenant

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Middleware creates HTTP middleware that maps the request host to a tenant,
// decrypts the tenant's connection target and attaches a TenantContext to
// the request scope. Requests for root/platform domains pass through without
// a tenant. Resolution failures reject the request; they are never silently
// downgraded to a platform request.
//
// The middleware does not open database connections itself; downstream
// consumers pass the TenantContext to the connection cache.
func Middleware(resolver Resolver, directory Directory, decrypt DecryptFunc, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		cache:        NewMemoryCache(DefaultCacheSize),
		cacheTTL:     5 * time.Minute,
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			subdomain, err := resolver.Resolve(r)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			// Root/platform request: no tenant context attached.
			if subdomain == "" {
				next.ServeHTTP(w, r)
				return
			}

			rec, ok := cfg.cache.Get(r.Context(), subdomain)
			if !ok {
				rec, err = directory.FindBySubdomain(r.Context(), subdomain)
				if err != nil {
					cfg.errorHandler(w, r, err)
					return
				}
				cfg.cache.Set(r.Context(), subdomain, rec, cfg.cacheTTL)
			}

			if !rec.Active {
				cfg.errorHandler(w, r, ErrInactiveTenant)
				return
			}

			target, err := decrypt(rec.EncryptedConnectionTarget)
			if err != nil {
				// Wrong key or corrupted payload is an operator problem,
				// not something a retry can fix.
				if cfg.logger != nil {
					cfg.logger.ErrorContext(r.Context(), "failed to decrypt connection target",
						"subdomain", subdomain, "error", err)
				}
				cfg.errorHandler(w, r, errors.Join(ErrDecryptionFailed, err))
				return
			}

			t := rec.Tenant
			ctx := WithTenantContext(r.Context(), &TenantContext{
				Tenant:           &t,
				ConnectionTarget: target,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant ensures a tenant context is present, protecting routes that
// must never run in platform scope.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
