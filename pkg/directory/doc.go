// Package directory implements the tenant directory lookup against the
// central platform database. It is the single source of truth for which
// subdomain belongs to which tenant and for the encrypted connection target
// of each tenant's isolated database.
package directory
