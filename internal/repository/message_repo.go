package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/introslabs/intros/internal/db"
)

// MessageRepository provides data access for direct messages.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) Create(ctx context.Context, message *db.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// Conversation returns messages between two accounts in both directions,
// newest first.
func (r *MessageRepository) Conversation(ctx context.Context, a, b string, limit int) ([]db.Message, error) {
	var messages []db.Message
	err := r.db.WithContext(ctx).
		Where("(from_handle = ? AND to_handle = ?) OR (from_handle = ? AND to_handle = ?)",
			a, b, b, a).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// MarkRead marks everything `from` sent `to` as read. Called when the
// recipient opens the conversation.
func (r *MessageRepository) MarkRead(ctx context.Context, to, from string) error {
	return r.db.WithContext(ctx).Model(&db.Message{}).
		Where("to_handle = ? AND from_handle = ? AND `read` = ?", to, from, false).
		Update("read", true).Error
}

// UnreadRow is an unread message joined with the sender's display name
// for notification text.
type UnreadRow struct {
	ID         uint64    `json:"id"`
	FromHandle string    `json:"from_handle"`
	FromName   string    `json:"from_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Unread lists unread messages for an account, newest first. The sweep
// dedups against notification marks, not the read flag, so reading and
// notifying stay independent.
func (r *MessageRepository) Unread(ctx context.Context, to string) ([]UnreadRow, error) {
	var rows []UnreadRow
	err := r.db.WithContext(ctx).
		Table("messages m").
		Select("m.id, m.from_handle, p.name AS from_name, m.content, m.created_at").
		Joins("JOIN profiles p ON p.handle = m.from_handle").
		Where("m.to_handle = ? AND m.`read` = ?", to, false).
		Order("m.created_at DESC").
		Scan(&rows).Error
	return rows, err
}

// ConversationSummary is the latest message exchanged with one peer.
type ConversationSummary struct {
	PeerHandle    string    `json:"peer_handle"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	Unread        bool      `json:"unread"`
}

// Summaries returns one entry per conversation peer with the most recent
// message. Deduplication happens in memory; message volume per account is
// small.
func (r *MessageRepository) Summaries(ctx context.Context, handle string) ([]ConversationSummary, error) {
	var messages []db.Message
	err := r.db.WithContext(ctx).
		Where("from_handle = ? OR to_handle = ?", handle, handle).
		Order("created_at DESC, id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var summaries []ConversationSummary
	for _, m := range messages {
		peer := m.FromHandle
		if m.FromHandle == handle {
			peer = m.ToHandle
		}
		if seen[peer] {
			continue
		}
		seen[peer] = true
		summaries = append(summaries, ConversationSummary{
			PeerHandle:    peer,
			LastMessage:   m.Content,
			LastMessageAt: m.CreatedAt,
			Unread:        m.ToHandle == handle && !m.Read,
		})
	}
	return summaries, nil
}
