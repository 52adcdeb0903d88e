package tenant

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const (
	// MaxSubdomainLength keeps candidates DNS-compatible and bounds the
	// directory lookup key.
	MaxSubdomainLength = 63
)

// subdomainPattern ensures DNS-safe subdomains: alphanumeric start, allows hyphens.
var subdomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Resolver extracts a tenant subdomain from an HTTP request.
// An empty subdomain with a nil error means the request targets the
// platform/root domain and carries no tenant.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(r *http.Request) (string, error)

// Resolve calls the function.
func (f ResolverFunc) Resolve(r *http.Request) (string, error) {
	return f(r)
}

// HostResolver extracts the tenant subdomain from the request host.
// It prefers the X-Forwarded-Host header over the raw Host so that
// deployments behind proxies resolve against the original host.
type HostResolver struct {
	rootDomains map[string]struct{}
}

// NewHostResolver creates a resolver that treats the given domain literals
// (e.g. "localhost", "app.example.com") as platform/root domains which
// bypass tenant resolution entirely. Comparison ignores case and port.
func NewHostResolver(rootDomains ...string) *HostResolver {
	roots := make(map[string]struct{}, len(rootDomains))
	for _, d := range rootDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			roots[d] = struct{}{}
		}
	}
	return &HostResolver{rootDomains: roots}
}

// Resolve returns the subdomain candidate for the request, or an empty
// string for root/platform hosts. Hosts that are neither a configured root
// domain nor a well-formed "subdomain.domain" shape fail with
// ErrInvalidSubdomain.
func (hr *HostResolver) Resolve(r *http.Request) (string, error) {
	host := forwardedHost(r)
	if host == "" {
		host = r.Host
	}

	host = strings.ToLower(stripPort(host))
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidSubdomain)
	}

	if _, ok := hr.rootDomains[host]; ok {
		return "", nil
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("%w: host %q has no subdomain", ErrInvalidSubdomain, host)
	}

	// The remainder after the first label may itself be a root domain
	// (e.g. "acme.app.example.com" with root "app.example.com"), but a bare
	// two-label host like "acme.localhost" is also accepted: the first label
	// is always the candidate.
	subdomain := labels[0]
	if subdomain == "" || len(subdomain) > MaxSubdomainLength || !subdomainPattern.MatchString(subdomain) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSubdomain, subdomain)
	}

	return subdomain, nil
}

// forwardedHost returns the first entry of the X-Forwarded-Host header.
// Proxies may append to the header, producing a comma-separated list in
// which the first value is the original client-facing host.
func forwardedHost(r *http.Request) string {
	fh := r.Header.Get("X-Forwarded-Host")
	if fh == "" {
		return ""
	}
	if idx := strings.IndexByte(fh, ','); idx != -1 {
		fh = fh[:idx]
	}
	return strings.TrimSpace(fh)
}

// stripPort removes a trailing :port from a host, tolerating hosts without one.
func stripPort(host string) string {
	if idx := strings.LastIndexByte(host, ':'); idx != -1 {
		return host[:idx]
	}
	return host
}
