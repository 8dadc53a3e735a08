package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/introslabs/intros/internal/db"
)

// AccountRepository provides data access for Account rows and the
// account-deletion cascade.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(database *gorm.DB) *AccountRepository {
	return &AccountRepository{db: database}
}

// Create inserts a new account. A duplicate handle surfaces as
// gorm.ErrDuplicatedKey for the service layer to translate.
func (r *AccountRepository) Create(ctx context.Context, account *db.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByHandle(ctx context.Context, handle string) (*db.Account, error) {
	var account db.Account
	err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ConsumeVerifyCode flips an unverified account to verified, clears the
// code, and stores the chat destination. The conditional update makes the
// code one-time: whichever caller's UPDATE lands first wins, the other
// sees zero rows affected.
func (r *AccountRepository) ConsumeVerifyCode(ctx context.Context, code string, chatID int64) (string, error) {
	var account db.Account
	err := r.db.WithContext(ctx).
		Where("verify_code = ? AND verified = ?", code, false).
		First(&account).Error
	if err != nil {
		return "", err
	}

	res := r.db.WithContext(ctx).Model(&db.Account{}).
		Where("verify_code = ? AND verified = ?", code, false).
		Updates(map[string]interface{}{
			"verified":    true,
			"verify_code": nil,
			"chat_id":     chatID,
		})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", gorm.ErrRecordNotFound
	}
	return account.Handle, nil
}

// UpdateChatID re-captures the transport destination for an already
// verified account (e.g. the agent messaged the bot from a new chat).
func (r *AccountRepository) UpdateChatID(ctx context.Context, externalID string, chatID int64) error {
	return r.db.WithContext(ctx).Model(&db.Account{}).
		Where("external_id = ?", externalID).
		Update("chat_id", chatID).Error
}

// Notifiable lists accounts eligible for the notification sweep:
// verified with a known chat destination.
func (r *AccountRepository) Notifiable(ctx context.Context) ([]db.Account, error) {
	var accounts []db.Account
	err := r.db.WithContext(ctx).
		Where("verified = ? AND chat_id <> 0", true).
		Find(&accounts).Error
	return accounts, err
}

// DeleteCascade removes an account and every record keyed to it, in one
// transaction. The relevance index entry is the caller's responsibility.
func (r *AccountRepository) DeleteCascade(ctx context.Context, handle string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []*gorm.DB{
			tx.Where("viewer_handle = ? OR viewed_handle = ?", handle, handle).Delete(&db.Visit{}),
			tx.Where("from_handle = ? OR to_handle = ?", handle, handle).Delete(&db.Connection{}),
			tx.Where("from_handle = ? OR to_handle = ?", handle, handle).Delete(&db.Message{}),
			tx.Where("handle = ?", handle).Delete(&db.DailyUsage{}),
			tx.Where("handle = ?", handle).Delete(&db.NotificationMark{}),
			tx.Where("handle = ?", handle).Delete(&db.Profile{}),
			tx.Where("handle = ?", handle).Delete(&db.Account{}),
		}
		for _, res := range steps {
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
}

// IsNotFound reports whether err is the store's record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
