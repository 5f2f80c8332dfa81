package health

import "context"

// HealthPinger is the probe side of a dependency: the SQL store, the Redis
// cache and the model endpoints each answer a cheap liveness request.
// HealthPing returns nil when the dependency is reachable.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
