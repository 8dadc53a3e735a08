// Package messaging implements direct messages between connected
// accounts.
package messaging

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/introslabs/intros/internal/app"
	"github.com/introslabs/intros/internal/apperr"
	"github.com/introslabs/intros/internal/db"
	"github.com/introslabs/intros/internal/repository"
)

const maxContentLen = 500

type Service struct {
	appCtx      *app.AppContext
	messages    *repository.MessageRepository
	connections *repository.ConnectionRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		messages:    repository.NewMessageRepository(appCtx.DB),
		connections: repository.NewConnectionRepository(appCtx.DB),
	}
}

// Send delivers a message to a connected account. Content is capped at
// 500 characters (runes, not bytes).
func (s *Service) Send(ctx context.Context, from, to, content string) (uint64, error) {
	if strings.TrimSpace(content) == "" {
		return 0, apperr.Invalid("message content is required")
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return 0, apperr.Invalid("message too long (max 500 characters)")
	}

	connected, err := s.connections.AreConnected(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if !connected {
		return 0, apperr.Conflict("you must be connected to send messages")
	}

	m := &db.Message{FromHandle: from, ToHandle: to, Content: content}
	if err := s.messages.Create(ctx, m); err != nil {
		return 0, err
	}
	return m.ID, nil
}

// Conversation returns the two-way message history with a peer, newest
// first, and marks the peer's messages as read. An unconnected pair gets
// an empty history rather than an error.
func (s *Service) Conversation(ctx context.Context, handle, peer string, limit int) ([]db.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	connected, err := s.connections.AreConnected(ctx, handle, peer)
	if err != nil {
		return nil, err
	}
	if !connected {
		return []db.Message{}, nil
	}

	messages, err := s.messages.Conversation(ctx, handle, peer, limit)
	if err != nil {
		return nil, err
	}
	if err := s.messages.MarkRead(ctx, handle, peer); err != nil {
		return nil, err
	}
	return messages, nil
}

// Conversations returns one summary per peer, most recent exchange
// first.
func (s *Service) Conversations(ctx context.Context, handle string) ([]repository.ConversationSummary, error) {
	return s.messages.Summaries(ctx, handle)
}

// Unread lists unread messages for the notification sweep.
func (s *Service) Unread(ctx context.Context, handle string) ([]repository.UnreadRow, error) {
	return s.messages.Unread(ctx, handle)
}
