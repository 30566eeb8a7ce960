package checks

import (
	"context"

	"github.com/charlesng35/taskpad/internal/monitoring"
)

// Pinger is a dependency that answers a round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store probes the account and task database. A missing store is down.
func Store(store Pinger) monitoring.Check {
	return monitoring.NewCheck("store", func(ctx context.Context) monitoring.ProbeResult {
		if store == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "store not configured"}
		}
		return monitoring.ResultFromError(store.Ping(ctx))
	})
}
