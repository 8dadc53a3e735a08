package discovery_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/introslabs/intros/internal/app"
	"github.com/introslabs/intros/internal/apperr"
	"github.com/introslabs/intros/internal/cache"
	"github.com/introslabs/intros/internal/config"
	"github.com/introslabs/intros/internal/db"
	"github.com/introslabs/intros/internal/index"
	"github.com/introslabs/intros/internal/repository"
	"github.com/introslabs/intros/internal/service/discovery"
	"github.com/introslabs/intros/internal/service/profile"
)

// setupAppCtx spins up an in-memory SQLite DB, a miniredis, and a fresh
// relevance index, and wires them into an AppContext. Each test gets its
// own isolated world.
func setupAppCtx(t *testing.T) *app.AppContext {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(database))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	idx, err := index.New()
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return app.New(cfg, database, redisCache, idx, log)
}

// seedProfiles writes profiles through the profile service so every one
// of them lands in the relevance index, exactly as in production.
func seedProfiles(t *testing.T, appCtx *app.AppContext) {
	t.Helper()
	profileSvc := profile.NewService(appCtx)
	ctx := context.Background()

	inputs := map[string]profile.Input{
		"ada_dev":     {Name: "Ada", Interests: "chess compilers", ContactHandle: "ada_dev", ContactPublic: true},
		"go_gopher":   {Name: "Gopher", Interests: "chess golang"},
		"dj_djinn":    {Name: "Djinn", Interests: "chess synths"},
		"haiku_bot":   {Name: "Haiku", Interests: "chess tea"},
		"botanica":    {Name: "Botanica", Interests: "gardening"},
		"crypto_carl": {Name: "Carl", Interests: "cycling", ContactHandle: "carl_c", ContactPublic: false},
	}
	for handle, in := range inputs {
		require.NoError(t, profileSvc.Upsert(ctx, handle, in))
	}
}

func handlesOf(views []discovery.View) []string {
	handles := make([]string, len(views))
	for i, v := range views {
		handles[i] = v.Handle
	}
	return handles
}

func TestSearchUnseenBeforeSeen(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	visits := repository.NewVisitRepository(appCtx.DB)
	require.NoError(t, visits.Record(ctx, "observer", "go_gopher"))
	require.NoError(t, visits.Record(ctx, "observer", "haiku_bot"))

	page, err := svc.Search(ctx, "observer", discovery.SearchRequest{Query: "chess"})
	require.NoError(t, err)
	require.Len(t, page.Results, 4)
	assert.Equal(t, int64(4), page.Total)

	// visited profiles sink behind every unvisited one
	for _, v := range page.Results[:2] {
		assert.False(t, v.Seen, "unexpected seen profile in the unseen tier: %s", v.Handle)
		assert.Contains(t, []string{"ada_dev", "dj_djinn"}, v.Handle)
	}
	for _, v := range page.Results[2:] {
		assert.True(t, v.Seen, "expected %s to be marked seen", v.Handle)
		assert.Contains(t, []string{"go_gopher", "haiku_bot"}, v.Handle)
	}
}

func TestSearchPaginatesAfterOrdering(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	visits := repository.NewVisitRepository(appCtx.DB)
	require.NoError(t, visits.Record(ctx, "observer", "go_gopher"))
	require.NoError(t, visits.Record(ctx, "observer", "haiku_bot"))

	// the second page holds exactly the seen tier
	page, err := svc.Search(ctx, "observer", discovery.SearchRequest{Query: "chess", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	require.Len(t, page.Results, 2)
	assert.ElementsMatch(t, []string{"go_gopher", "haiku_bot"}, handlesOf(page.Results))
}

func TestSearchDropsSelfFromPageOnly(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	page, err := svc.Search(ctx, "ada_dev", discovery.SearchRequest{Query: "chess"})
	require.NoError(t, err)

	// ada matches her own query: counted in the total, absent from the page
	assert.Equal(t, int64(4), page.Total)
	assert.Len(t, page.Results, 3)
	assert.NotContains(t, handlesOf(page.Results), "ada_dev")
}

func TestSearchFiltersFeedTheSameQuery(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	byQuery, err := svc.Search(ctx, "observer", discovery.SearchRequest{Query: "gardening"})
	require.NoError(t, err)
	byFilter, err := svc.Search(ctx, "observer", discovery.SearchRequest{Interests: "gardening"})
	require.NoError(t, err)

	assert.Equal(t, handlesOf(byQuery.Results), handlesOf(byFilter.Results))
	require.Len(t, byQuery.Results, 1)
	assert.Equal(t, "botanica", byQuery.Results[0].Handle)
}

func TestSearchFallbackEqualsBrowse(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	// punctuation-only sanitizes to nothing; the nonsense term matches nothing.
	// Both must degrade to the identical browse listing.
	noTerms, err := svc.Search(ctx, "observer", discovery.SearchRequest{Query: "!!! ???"})
	require.NoError(t, err)
	noMatches, err := svc.Search(ctx, "observer", discovery.SearchRequest{Query: "zzzqxjv"})
	require.NoError(t, err)

	assert.Equal(t, int64(6), noTerms.Total)
	assert.Equal(t, noTerms.Total, noMatches.Total)
	assert.Equal(t, handlesOf(noTerms.Results), handlesOf(noMatches.Results))
}

func TestRecommendExcludesSelfEverywhere(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	// ada's interests match herself plus the three other chess profiles
	page, err := svc.Recommend(ctx, "ada_dev", 10, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Results, 3)
	assert.NotContains(t, handlesOf(page.Results), "ada_dev")
}

func TestRecommendWithoutProfileIsEmpty(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	page, err := svc.Recommend(ctx, "observer", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.Empty(t, page.Results)
}

func TestRecommendFallbackExcludesSelf(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	profileSvc := profile.NewService(appCtx)
	svc := discovery.NewService(appCtx)

	// a profile whose fields sanitize to nothing forces browse mode
	require.NoError(t, profileSvc.Upsert(ctx, "blank_bot", profile.Input{Name: "???"}))

	page, err := svc.Recommend(ctx, "blank_bot", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), page.Total)
	assert.NotContains(t, handlesOf(page.Results), "blank_bot")
}

func TestViewProfileConsumesQuota(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	appCtx.Config.Limits.ProfileViewsPerDay = 2
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	_, err := svc.ViewProfile(ctx, "observer", "ada_dev")
	require.NoError(t, err)
	_, err = svc.ViewProfile(ctx, "observer", "go_gopher")
	require.NoError(t, err)

	_, err = svc.ViewProfile(ctx, "observer", "dj_djinn")
	assert.ErrorIs(t, err, apperr.ErrRateLimited)
}

func TestViewProfileSelfViewIsFree(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	appCtx.Config.Limits.ProfileViewsPerDay = 1
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	for i := 0; i < 3; i++ {
		v, err := svc.ViewProfile(ctx, "ada_dev", "ada_dev")
		require.NoError(t, err)
		assert.Equal(t, "ada_dev", v.ContactHandle)
	}

	// the quota is still intact for a real view
	_, err := svc.ViewProfile(ctx, "ada_dev", "go_gopher")
	assert.NoError(t, err)
}

func TestViewProfileUnknownHandle(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	_, err := svc.ViewProfile(ctx, "observer", "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestContactHandleVisibility(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	// strangers never see a private contact handle
	v, err := svc.ViewProfile(ctx, "observer", "crypto_carl")
	require.NoError(t, err)
	assert.Empty(t, v.ContactHandle)

	// search results hide it too
	page, err := svc.Search(ctx, "observer", discovery.SearchRequest{Query: "cycling"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Empty(t, page.Results[0].ContactHandle)

	// the owner sees it
	v, err = svc.ViewProfile(ctx, "crypto_carl", "crypto_carl")
	require.NoError(t, err)
	assert.Equal(t, "carl_c", v.ContactHandle)

	// a connected account sees it
	connections := repository.NewConnectionRepository(appCtx.DB)
	require.NoError(t, connections.CreatePending(ctx, "observer", "crypto_carl"))
	ok, err := connections.Accept(ctx, "observer", "crypto_carl")
	require.NoError(t, err)
	require.True(t, ok)

	v, err = svc.ViewProfile(ctx, "observer", "crypto_carl")
	require.NoError(t, err)
	assert.Equal(t, "carl_c", v.ContactHandle)

	// public contact handles show everywhere
	page, err = svc.Search(ctx, "observer", discovery.SearchRequest{Query: "compilers"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "ada_dev", page.Results[0].ContactHandle)
}

func TestVisitorsListsViewersWithProfiles(t *testing.T) {
	ctx := context.Background()
	appCtx := setupAppCtx(t)
	seedProfiles(t, appCtx)
	svc := discovery.NewService(appCtx)

	_, err := svc.ViewProfile(ctx, "go_gopher", "ada_dev")
	require.NoError(t, err)
	// a viewer without a profile leaves a visit but no listable row
	_, err = svc.ViewProfile(ctx, "observer", "ada_dev")
	require.NoError(t, err)

	visitors, err := svc.Visitors(ctx, "ada_dev", 0)
	require.NoError(t, err)
	require.Len(t, visitors, 1)
	assert.Equal(t, "go_gopher", visitors[0].VisitorHandle)
	assert.Equal(t, "Gopher", visitors[0].Name)
}
