// Package novelty tracks which profiles an account has already visited.
// The seen set only biases ordering; it never filters results.
package novelty

import (
	"context"
	"log/slog"

	"github.com/introslabs/intros/internal/cache"
	"github.com/introslabs/intros/internal/repository"
)

// Tracker serves seen sets cache-first from Redis with the visits table
// as fallback and source of truth. Cache errors degrade to the store;
// ranking bias must not fail a search.
type Tracker struct {
	visits *repository.VisitRepository
	cache  *cache.RedisCache
	log    *slog.Logger
}

func New(visits *repository.VisitRepository, redisCache *cache.RedisCache, log *slog.Logger) *Tracker {
	return &Tracker{visits: visits, cache: redisCache, log: log}
}

// SeenSet returns the set of handles the viewer has visited.
func (t *Tracker) SeenSet(ctx context.Context, viewer string) (map[string]bool, error) {
	if set, ok, err := t.cache.GetSeenSet(ctx, viewer); err != nil {
		t.log.Warn("seen-set cache read failed, falling back to store", "viewer", viewer, "err", err)
	} else if ok {
		return set, nil
	}

	handles, err := t.visits.SeenHandles(ctx, viewer)
	if err != nil {
		return nil, err
	}

	if err := t.cache.SetSeenSet(ctx, viewer, handles); err != nil {
		t.log.Warn("seen-set cache write failed", "viewer", viewer, "err", err)
	}

	set := make(map[string]bool, len(handles))
	for _, h := range handles {
		set[h] = true
	}
	return set, nil
}

// RecordVisit appends the visit fact and keeps the cached seen set
// write-through consistent.
func (t *Tracker) RecordVisit(ctx context.Context, viewer, viewed string) error {
	if err := t.visits.Record(ctx, viewer, viewed); err != nil {
		return err
	}
	if err := t.cache.AddSeen(ctx, viewer, viewed); err != nil {
		t.log.Warn("seen-set cache update failed", "viewer", viewer, "err", err)
	}
	return nil
}
