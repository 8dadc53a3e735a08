// Package transport holds the default wiring for the outbound chat
// collaborator. The real transport lives outside this engine; the log
// deliverer stands in wherever one has not been configured.
package transport

import (
	"context"
	"log/slog"
)

// LogDeliverer writes notifications to the log instead of a chat
// transport. Deliveries still consume dedup marks, so swapping in a real
// transport later will not replay history.
type LogDeliverer struct {
	log *slog.Logger
}

func NewLogDeliverer(log *slog.Logger) *LogDeliverer {
	return &LogDeliverer{log: log}
}

func (d *LogDeliverer) Deliver(ctx context.Context, chatID int64, text string) error {
	d.log.Info("notification delivered", "chat_id", chatID, "text", text)
	return nil
}
