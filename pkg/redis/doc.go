// Package redis connects to the Redis instance backing the shared tenant
// directory cache. Connect retries with a bounded timeout so replicas can
// start while Redis is still coming up; Healthcheck plugs into standard
// health endpoints.
//
// The returned client is passed to tenant.NewRedisCache for multi-instance
// deployments where each replica would otherwise resolve tenants
// independently.
package redis
