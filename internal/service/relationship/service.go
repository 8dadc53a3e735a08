// Package relationship implements the connection state machine:
// none -> pending -> accepted, or silent removal on decline/expiry.
package relationship

import (
	"context"
	"time"

	"github.com/introslabs/intros/internal/app"
	"github.com/introslabs/intros/internal/apperr"
	"github.com/introslabs/intros/internal/db"
	"github.com/introslabs/intros/internal/limits"
	"github.com/introslabs/intros/internal/repository"
)

type Service struct {
	appCtx      *app.AppContext
	connections *repository.ConnectionRepository
	profiles    *repository.ProfileRepository
	limiter     *limits.Limiter
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		connections: repository.NewConnectionRepository(appCtx.DB),
		profiles:    repository.NewProfileRepository(appCtx.DB),
		limiter:     limits.New(repository.NewUsageRepository(appCtx.DB), appCtx.Config),
	}
}

// Request sends a connection request from -> to.
//
// Sequencing: existence and duplicate checks, quota gate, counter
// record, insert. The pair_key unique index is the real uniqueness
// guarantee; when two requests for the same unordered pair race, the
// loser has already recorded a counter increment. That rare over-count
// is accepted: the cap can only close early, never stay open past its
// limit, and keeping the counter upsert a single round trip matters
// more.
func (s *Service) Request(ctx context.Context, from, to string) error {
	if from == to {
		return apperr.Invalid("cannot connect with yourself")
	}

	if _, err := s.profiles.GetByHandle(ctx, to); err != nil {
		if repository.IsNotFound(err) {
			return apperr.NotFound("account not found")
		}
		return err
	}

	existing, err := s.connections.GetByPair(ctx, from, to)
	if err != nil {
		return err
	}
	if existing != nil {
		switch existing.Status {
		case db.ConnectionAccepted:
			return apperr.Conflict("already connected")
		default:
			return apperr.Conflict("connection request already pending")
		}
	}

	allowed, err := s.limiter.WouldAllow(ctx, from, repository.ActionConnectionRequest)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.RateLimited("daily connection request limit reached")
	}

	if err := s.limiter.Record(ctx, from, repository.ActionConnectionRequest); err != nil {
		return err
	}

	if err := s.connections.CreatePending(ctx, from, to); err != nil {
		if repository.IsDuplicate(err) {
			return apperr.Conflict("connection request already pending")
		}
		return err
	}

	s.appCtx.Logger.Info("connection requested", "from", from, "to", to)
	return nil
}

// Accept flips a pending request addressed to `to` into an accepted
// connection. A missing request reads the same whether it was declined,
// expired, or never sent.
func (s *Service) Accept(ctx context.Context, from, to string) error {
	ok, err := s.connections.Accept(ctx, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("request not found")
	}
	s.appCtx.Logger.Info("connection accepted", "from", from, "to", to)
	return nil
}

// Decline removes a pending request without leaving any trace. The
// sender is never told; to them a decline is indistinguishable from no
// response.
func (s *Service) Decline(ctx context.Context, from, to string) error {
	ok, err := s.connections.DeletePending(ctx, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("request not found")
	}
	return nil
}

// AreConnected reports whether an accepted connection exists, in either
// argument order.
func (s *Service) AreConnected(ctx context.Context, a, b string) (bool, error) {
	return s.connections.AreConnected(ctx, a, b)
}

// ExpireStale removes pending requests older than the configured TTL,
// the logical equivalent of an automatic silent decline. Runs at boot
// and on the sweep interval; idempotent.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.appCtx.Config.Connections.PendingTTL)
	removed, err := s.connections.ExpireStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.appCtx.Logger.Info("expired stale connection requests", "count", removed)
	}
	return removed, nil
}

// Pending lists incoming pending requests for an account.
func (s *Service) Pending(ctx context.Context, to string) ([]repository.RequestRow, error) {
	return s.connections.PendingFor(ctx, to)
}

// Connections lists the account's accepted connections with peer
// profiles. Contact handles are left intact: connected accounts may see
// each other's handle regardless of the public flag.
func (s *Service) Connections(ctx context.Context, handle string) ([]repository.RequestRow, error) {
	return s.connections.ConnectionsOf(ctx, handle)
}

// Accepted lists requests the account sent that have been accepted,
// feeding the connection-accepted notification.
func (s *Service) Accepted(ctx context.Context, from string) ([]repository.RequestRow, error) {
	return s.connections.AcceptedFrom(ctx, from)
}
