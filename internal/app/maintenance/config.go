package maintenance

import (
	"github.com/charlesng35/taskpad/internal/app"
	"github.com/charlesng35/taskpad/internal/store"
)

// NewFromConfig builds a Cleaner using the configured schedules and the
// unverified-account retention. purger may be nil when no SQL cache exists.
func NewFromConfig(cfg *app.Config, accounts store.AccountStore, purger CachePurger, opts ...Option) *Cleaner {
	base := []Option{
		WithUnverifiedRetention(cfg.Auth.UnverifiedRetention),
		WithChallengeSchedule(cfg.Maintenance.ChallengeSchedule),
		WithAccountSchedule(cfg.Maintenance.AccountSchedule),
		WithCacheSchedule(cfg.Maintenance.CacheSchedule),
	}
	if purger != nil {
		base = append(base, WithCachePurger(purger))
	}
	return NewCleaner(accounts, append(base, opts...)...)
}
