// Package logger provides a context-aware wrapper around Go's slog package
// with functional options, helper attribute constructors, and transparent
// injection of values stored in context.Context.
//
// New builds a *slog.Logger whose handler is wrapped with a decorator that
// runs registered ContextExtractor callbacks on every log call, so
// request-scoped values like the resolved tenant appear on every record
// without the call site threading them through.
//
//	log := logger.New(
//	    logger.WithProduction("tenant-gateway"),
//	    logger.WithContextExtractors(tenant.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "connection opened",
//	    logger.Subdomain("acme"),
//	    logger.Duration(time.Since(start)),
//	)
//
// Helper constructors in attr.go (Error, TenantID, Subdomain, Duration,
// Attempt, CacheResult) keep attribute naming consistent across packages.
package logger
