package checks

import (
	"context"

	"github.com/charlesng35/taskpad/internal/monitoring"
)

// Redis probes the shared cache. Disabled redis is up; an enabled one that
// failed to connect at start-up is degraded since the database cache takes over.
func Redis(client Pinger, enabled bool) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		if !enabled {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis disabled"}
		}
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable"}
		}

		result := monitoring.ResultFromError(client.Ping(ctx))
		if result.Status == monitoring.StatusDown {
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}
