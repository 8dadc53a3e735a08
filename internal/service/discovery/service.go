// Package discovery implements ranked profile search, recommendations,
// and profile viewing with novelty-aware ordering.
//
// Ordering contract, identical for search and recommend whenever a
// ranked result is returned: candidates the viewer has not visited sort
// before visited ones; within each tier, relevance order (browse mode:
// recency). A profile visited once therefore moves behind its score tier
// on every later query.
package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/introslabs/intros/internal/app"
	"github.com/introslabs/intros/internal/apperr"
	"github.com/introslabs/intros/internal/db"
	"github.com/introslabs/intros/internal/index"
	"github.com/introslabs/intros/internal/limits"
	"github.com/introslabs/intros/internal/novelty"
	"github.com/introslabs/intros/internal/repository"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// View is a profile as shown to another account. ContactHandle is empty
// unless the profile made it public (ViewProfile additionally reveals it
// to the owner and connected accounts).
type View struct {
	Handle        string    `json:"handle"`
	Name          string    `json:"name"`
	Interests     string    `json:"interests"`
	LookingFor    string    `json:"looking_for"`
	Location      string    `json:"location"`
	Bio           string    `json:"bio"`
	ContactHandle string    `json:"contact_handle,omitempty"`
	Seen          bool      `json:"seen"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Page is a ranked result window. Total counts all candidates for the
// chosen mode before pagination.
type Page struct {
	Results []View `json:"results"`
	Total   int64  `json:"total"`
}

// SearchRequest carries either free text or structured filters.
type SearchRequest struct {
	Query      string
	Interests  string
	LookingFor string
	Location   string
	Limit      int
	Offset     int
}

type Service struct {
	appCtx      *app.AppContext
	profiles    *repository.ProfileRepository
	visits      *repository.VisitRepository
	connections *repository.ConnectionRepository
	tracker     *novelty.Tracker
	limiter     *limits.Limiter
}

func NewService(appCtx *app.AppContext) *Service {
	visits := repository.NewVisitRepository(appCtx.DB)
	return &Service{
		appCtx:      appCtx,
		profiles:    repository.NewProfileRepository(appCtx.DB),
		visits:      visits,
		connections: repository.NewConnectionRepository(appCtx.DB),
		tracker:     novelty.New(visits, appCtx.RedisCache, appCtx.Logger),
		limiter:     limits.New(repository.NewUsageRepository(appCtx.DB), appCtx.Config),
	}
}

// Limiter exposes the rate limiter for the routing layer's quota
// endpoint and the notification sweep.
func (s *Service) Limiter() *limits.Limiter { return s.limiter }

// Search runs a ranked query from free text or structured filters. When
// sanitization yields no terms, or nothing matches, it degrades to
// browse mode rather than returning an error or an empty page.
func (s *Service) Search(ctx context.Context, viewer string, req SearchRequest) (*Page, error) {
	limit, offset := clampPage(req.Limit, req.Offset)

	var terms []string
	if req.Query != "" {
		terms = index.SanitizeTerms(req.Query)
	} else {
		terms = index.SanitizeTerms(req.Interests, req.LookingFor, req.Location)
	}

	page, err := s.ranked(ctx, viewer, terms, limit, offset, false)
	if err != nil {
		return nil, err
	}

	s.appCtx.Logger.Debug("search served",
		"viewer", viewer, "terms", len(terms), "total", page.Total)
	return page, nil
}

// Recommend builds the implicit query from the requester's own profile
// (interests, looking-for, location) and excludes the requester from
// both the count and the results, in ranked and fallback paths alike.
func (s *Service) Recommend(ctx context.Context, viewer string, limitN, offsetN int) (*Page, error) {
	limit, offset := clampPage(limitN, offsetN)

	own, err := s.profiles.GetByHandle(ctx, viewer)
	if err != nil {
		if repository.IsNotFound(err) {
			return &Page{Results: []View{}, Total: 0}, nil
		}
		return nil, err
	}

	terms := index.SanitizeTerms(own.Interests, own.LookingFor, own.Location)
	return s.ranked(ctx, viewer, terms, limit, offset, true)
}

// ranked is the shared core: scored match with browse fallback.
// excludeSelf selects recommend semantics (self removed from count and
// results); otherwise the viewer's own profile is only dropped from the
// returned page.
func (s *Service) ranked(ctx context.Context, viewer string, terms []string, limit, offset int, excludeSelf bool) (*Page, error) {
	hits, err := s.appCtx.Index.Query(ctx, terms)
	if errors.Is(err, index.ErrNoTerms) {
		return s.browse(ctx, viewer, limit, offset, excludeSelf)
	}
	if err != nil {
		return nil, err
	}

	if excludeSelf {
		kept := hits[:0]
		for _, h := range hits {
			if h.Handle != viewer {
				kept = append(kept, h)
			}
		}
		hits = kept
	}
	if len(hits) == 0 {
		return s.browse(ctx, viewer, limit, offset, excludeSelf)
	}

	seen, err := s.tracker.SeenSet(ctx, viewer)
	if err != nil {
		return nil, err
	}

	ordered := partitionHits(hits, seen)
	total := int64(len(ordered))

	window := pageOf(ordered, offset, limit)
	handles := make([]string, len(window))
	for i, h := range window {
		handles[i] = h.Handle
	}

	views, err := s.viewsFor(ctx, handles, seen)
	if err != nil {
		return nil, err
	}
	if !excludeSelf {
		views = dropHandle(views, viewer)
	}
	return &Page{Results: views, Total: total}, nil
}

// browse lists all profiles by recency, unseen first. Search mode keeps
// the viewer in the total (dropping them from the page only); recommend
// mode excludes them from both.
func (s *Service) browse(ctx context.Context, viewer string, limit, offset int, excludeSelf bool) (*Page, error) {
	profiles, err := s.profiles.ListByRecency(ctx)
	if err != nil {
		return nil, err
	}
	if excludeSelf {
		kept := profiles[:0]
		for _, p := range profiles {
			if p.Handle != viewer {
				kept = append(kept, p)
			}
		}
		profiles = kept
	}

	seen, err := s.tracker.SeenSet(ctx, viewer)
	if err != nil {
		return nil, err
	}

	ordered := partitionProfiles(profiles, seen)
	total := int64(len(ordered))

	window := pageOf(ordered, offset, limit)
	views := make([]View, 0, len(window))
	for _, p := range window {
		views = append(views, viewOf(&p, seen))
	}
	if !excludeSelf {
		views = dropHandle(views, viewer)
	}
	return &Page{Results: views, Total: total}, nil
}

// ViewProfile fetches one profile as seen by viewer, recording the visit
// and consuming view quota for non-self views. Sequencing is check limit,
// record visit, increment counter: a crash between the last two leaves a
// visit without a counted view, which only under-counts the cap.
func (s *Service) ViewProfile(ctx context.Context, viewer, handle string) (*View, error) {
	p, err := s.profiles.GetByHandle(ctx, handle)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("profile not found")
		}
		return nil, err
	}

	if viewer != handle {
		allowed, err := s.limiter.WouldAllow(ctx, viewer, repository.ActionProfileView)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, apperr.RateLimited("daily profile view limit reached")
		}
		if err := s.tracker.RecordVisit(ctx, viewer, handle); err != nil {
			return nil, err
		}
		if err := s.limiter.Record(ctx, viewer, repository.ActionProfileView); err != nil {
			return nil, err
		}
	}

	v := View{
		Handle:     p.Handle,
		Name:       p.Name,
		Interests:  p.Interests,
		LookingFor: p.LookingFor,
		Location:   p.Location,
		Bio:        p.Bio,
		UpdatedAt:  p.UpdatedAt,
	}
	visible, err := s.contactVisible(ctx, viewer, p)
	if err != nil {
		return nil, err
	}
	if visible {
		v.ContactHandle = p.ContactHandle
	}
	return &v, nil
}

// Visitors lists who viewed the account's profile, newest first.
func (s *Service) Visitors(ctx context.Context, handle string, limit int) ([]repository.VisitorRow, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.visits.VisitorsOf(ctx, handle, limit)
}

// contactVisible: the owner, connected accounts, and everyone when the
// profile opted in.
func (s *Service) contactVisible(ctx context.Context, viewer string, p *db.Profile) (bool, error) {
	if p.ContactPublic || viewer == p.Handle {
		return true, nil
	}
	return s.connections.AreConnected(ctx, viewer, p.Handle)
}

func (s *Service) viewsFor(ctx context.Context, handles []string, seen map[string]bool) ([]View, error) {
	profiles, err := s.profiles.GetByHandles(ctx, handles)
	if err != nil {
		return nil, err
	}
	byHandle := make(map[string]*db.Profile, len(profiles))
	for i := range profiles {
		byHandle[profiles[i].Handle] = &profiles[i]
	}

	views := make([]View, 0, len(handles))
	for _, h := range handles {
		p, ok := byHandle[h]
		if !ok {
			continue // index briefly ahead of the store; skip
		}
		views = append(views, viewOf(p, seen))
	}
	return views, nil
}

func viewOf(p *db.Profile, seen map[string]bool) View {
	v := View{
		Handle:     p.Handle,
		Name:       p.Name,
		Interests:  p.Interests,
		LookingFor: p.LookingFor,
		Location:   p.Location,
		Bio:        p.Bio,
		Seen:       seen[p.Handle],
		UpdatedAt:  p.UpdatedAt,
	}
	if p.ContactPublic {
		v.ContactHandle = p.ContactHandle
	}
	return v
}

// partitionHits splits ranked hits into unseen-then-seen, preserving
// relevance order inside each tier.
func partitionHits(hits []index.Hit, seen map[string]bool) []index.Hit {
	ordered := make([]index.Hit, 0, len(hits))
	for _, h := range hits {
		if !seen[h.Handle] {
			ordered = append(ordered, h)
		}
	}
	for _, h := range hits {
		if seen[h.Handle] {
			ordered = append(ordered, h)
		}
	}
	return ordered
}

// partitionProfiles does the same for recency-ordered browse candidates.
func partitionProfiles(profiles []db.Profile, seen map[string]bool) []db.Profile {
	ordered := make([]db.Profile, 0, len(profiles))
	for _, p := range profiles {
		if !seen[p.Handle] {
			ordered = append(ordered, p)
		}
	}
	for _, p := range profiles {
		if seen[p.Handle] {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func pageOf[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func dropHandle(views []View, handle string) []View {
	kept := views[:0]
	for _, v := range views {
		if v.Handle != handle {
			kept = append(kept, v)
		}
	}
	return kept
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
