// Package limits enforces the per-account daily action caps.
package limits

import (
	"context"
	"time"

	"github.com/introslabs/intros/internal/config"
	"github.com/introslabs/intros/internal/db"
	"github.com/introslabs/intros/internal/repository"
)

// dayFormat keys counters by UTC calendar date; crossing midnight gives
// every account a fresh counter row.
const dayFormat = "2006-01-02"

// Limiter answers read-only pre-flight checks and records actions with a
// single atomic upsert. It never blocks or retries: a failed upsert is an
// integration error for the caller to surface, not a business rule.
// Callers own the check-then-act-then-record sequencing.
type Limiter struct {
	usage *repository.UsageRepository
	caps  map[repository.UsageAction]int
	now   func() time.Time
}

func New(usage *repository.UsageRepository, cfg *config.Config) *Limiter {
	return &Limiter{
		usage: usage,
		caps: map[repository.UsageAction]int{
			repository.ActionProfileView:       cfg.Limits.ProfileViewsPerDay,
			repository.ActionConnectionRequest: cfg.Limits.ConnectionRequestsPerDay,
		},
		now: time.Now,
	}
}

// WithClock replaces the clock, for tests that cross day boundaries.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) today() string {
	return l.now().UTC().Format(dayFormat)
}

// WouldAllow reports whether the account has quota left for the action
// today. Read-only; an unknown action is always allowed.
func (l *Limiter) WouldAllow(ctx context.Context, handle string, action repository.UsageAction) (bool, error) {
	cap, ok := l.caps[action]
	if !ok {
		return true, nil
	}
	usage, err := l.usage.Get(ctx, handle, l.today())
	if err != nil {
		return false, err
	}
	return counter(usage, action) < cap, nil
}

// Record counts one action against today's counters.
func (l *Limiter) Record(ctx context.Context, handle string, action repository.UsageAction) error {
	return l.usage.Increment(ctx, handle, l.today(), action)
}

// Remaining returns the unspent quota for the action today, floored at
// zero.
func (l *Limiter) Remaining(ctx context.Context, handle string, action repository.UsageAction) (int, error) {
	usage, err := l.usage.Get(ctx, handle, l.today())
	if err != nil {
		return 0, err
	}
	left := l.caps[action] - counter(usage, action)
	if left < 0 {
		left = 0
	}
	return left, nil
}

// Usage is the quota snapshot exposed to the routing layer.
type Usage struct {
	ProfileViews            int `json:"profile_views"`
	ProfileViewsLimit       int `json:"profile_views_limit"`
	ConnectionRequests      int `json:"connection_requests"`
	ConnectionRequestsLimit int `json:"connection_requests_limit"`
}

// Snapshot returns today's counters alongside the configured caps.
func (l *Limiter) Snapshot(ctx context.Context, handle string) (Usage, error) {
	usage, err := l.usage.Get(ctx, handle, l.today())
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		ProfileViews:            usage.ProfileViews,
		ProfileViewsLimit:       l.caps[repository.ActionProfileView],
		ConnectionRequests:      usage.ConnectionRequests,
		ConnectionRequestsLimit: l.caps[repository.ActionConnectionRequest],
	}, nil
}

func counter(usage db.DailyUsage, action repository.UsageAction) int {
	switch action {
	case repository.ActionProfileView:
		return usage.ProfileViews
	case repository.ActionConnectionRequest:
		return usage.ConnectionRequests
	}
	return 0
}
