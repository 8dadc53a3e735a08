// Package notify runs the periodic notification sweep. Every delivery
// is guarded by a persisted dedup mark, so the sweep is idempotent
// across runs, restarts, and concurrent instances.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/introslabs/intros/internal/config"
	"github.com/introslabs/intros/internal/db"
	"github.com/introslabs/intros/internal/limits"
	"github.com/introslabs/intros/internal/repository"
)

// Deliverer is the outbound chat-transport collaborator. Delivery is
// best-effort and at-least-once from the transport's point of view;
// failures are logged, never retried synchronously.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, text string) error
}

type Notifier struct {
	accounts    *repository.AccountRepository
	messages    *repository.MessageRepository
	connections *repository.ConnectionRepository
	marks       *repository.NotificationRepository
	limiter     *limits.Limiter
	transport   Deliverer
	log         *slog.Logger
	now         func() time.Time
}

func New(database *gorm.DB, cfg *config.Config, transport Deliverer, log *slog.Logger) *Notifier {
	return &Notifier{
		accounts:    repository.NewAccountRepository(database),
		messages:    repository.NewMessageRepository(database),
		connections: repository.NewConnectionRepository(database),
		marks:       repository.NewNotificationRepository(database),
		limiter:     limits.New(repository.NewUsageRepository(database), cfg),
		transport:   transport,
		log:         log,
		now:         time.Now,
	}
}

// WithClock replaces the clock, for tests that cross day boundaries.
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}

// Run sweeps immediately, then on every tick until the context is
// canceled. The sweep has no other cancellation contract; a crashed run
// is safe to restart because marks persist.
func (n *Notifier) Run(ctx context.Context, interval time.Duration) {
	n.log.Info("notification loop started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := n.Sweep(ctx); err != nil {
			n.log.Error("notification sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			n.log.Info("notification loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep checks every notifiable account (verified, with a chat
// destination) and returns how many notifications were delivered. One
// account's failure never aborts the rest.
func (n *Notifier) Sweep(ctx context.Context) (int, error) {
	accounts, err := n.accounts.Notifiable(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, acc := range accounts {
		count, err := n.sweepAccount(ctx, &acc)
		delivered += count
		if err != nil {
			n.log.Warn("notification sweep error for account",
				"handle", acc.Handle, "err", err)
		}
	}
	return delivered, nil
}

func (n *Notifier) sweepAccount(ctx context.Context, acc *db.Account) (int, error) {
	delivered := 0

	// New unread messages.
	unread, err := n.messages.Unread(ctx, acc.Handle)
	if err != nil {
		return delivered, err
	}
	for _, m := range unread {
		text := fmt.Sprintf("📬 New message from %s\n\n%q\n\nOpen your agent to reply.",
			m.FromName, m.Content)
		sent, err := n.notify(ctx, acc, db.KindMessage, strconv.FormatUint(m.ID, 10), text)
		if err != nil {
			return delivered, err
		}
		if sent {
			delivered++
		}
	}

	// New pending connection requests.
	pending, err := n.connections.PendingFor(ctx, acc.Handle)
	if err != nil {
		return delivered, err
	}
	for _, req := range pending {
		text := fmt.Sprintf("🔔 New connection request\n\nFrom: %s\n", req.Name)
		if req.Interests != "" {
			text += fmt.Sprintf("Interests: %s\n", req.Interests)
		}
		if req.Location != "" {
			text += fmt.Sprintf("Location: %s\n", req.Location)
		}
		text += "\nOpen your agent to accept or decline."
		sent, err := n.notify(ctx, acc, db.KindConnectionRequest,
			strconv.FormatUint(req.ConnectionID, 10), text)
		if err != nil {
			return delivered, err
		}
		if sent {
			delivered++
		}
	}

	// Requests this account sent that were accepted. Declines produce
	// nothing here: a declined request simply no longer exists.
	accepted, err := n.connections.AcceptedFrom(ctx, acc.Handle)
	if err != nil {
		return delivered, err
	}
	for _, conn := range accepted {
		text := fmt.Sprintf("✅ Connection accepted!\n\n%s accepted your connection request.\n", conn.Name)
		if conn.ContactHandle != "" {
			text += fmt.Sprintf("Contact: @%s\n", conn.ContactHandle)
		}
		text += "\nYou can now message each other."
		sent, err := n.notify(ctx, acc, db.KindConnectionAccepted,
			strconv.FormatUint(conn.ConnectionID, 10), text)
		if err != nil {
			return delivered, err
		}
		if sent {
			delivered++
		}
	}

	// Daily nudge, at most once per calendar day and only while view
	// quota remains.
	today := n.now().UTC().Format("2006-01-02")
	marked, err := n.marks.IsMarked(ctx, acc.Handle, db.KindDailyNudge, today)
	if err != nil {
		return delivered, err
	}
	if !marked {
		remaining, err := n.limiter.Remaining(ctx, acc.Handle, repository.ActionProfileView)
		if err != nil {
			return delivered, err
		}
		if remaining > 0 {
			text := fmt.Sprintf("🌟 Your daily matches are ready! You have %d profile views today.\n\nAsk for recommendations to discover new people.", remaining)
			sent, err := n.notify(ctx, acc, db.KindDailyNudge, today, text)
			if err != nil {
				return delivered, err
			}
			if sent {
				delivered++
			}
		}
	}

	return delivered, nil
}

// notify performs the check-then-mark-then-deliver sequence for one
// entity. The mark is written before the transport call: re-running the
// sweep must never re-deliver, so a transport failure after marking
// drops the notification rather than duplicating it.
func (n *Notifier) notify(ctx context.Context, acc *db.Account, kind, entityID, text string) (bool, error) {
	marked, err := n.marks.IsMarked(ctx, acc.Handle, kind, entityID)
	if err != nil {
		return false, err
	}
	if marked {
		return false, nil
	}
	if err := n.marks.Mark(ctx, acc.Handle, kind, entityID); err != nil {
		return false, err
	}
	if err := n.transport.Deliver(ctx, acc.ChatID, text); err != nil {
		n.log.Warn("notification delivery failed",
			"handle", acc.Handle, "kind", kind, "entity", entityID, "err", err)
		return false, err
	}
	return true, nil
}
