// Package account implements registration, one-time verification, and
// credential checks for agent accounts.
package account

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/introslabs/intros/internal/app"
	"github.com/introslabs/intros/internal/apperr"
	"github.com/introslabs/intros/internal/db"
	"github.com/introslabs/intros/internal/repository"
)

var handleRE = regexp.MustCompile(`^[a-z0-9_]{2,64}$`)

// Credentials is returned once at registration; the API key is never
// recoverable afterwards.
type Credentials struct {
	Handle     string `json:"handle"`
	APIKey     string `json:"api_key"`
	VerifyCode string `json:"verify_code"`
}

type Service struct {
	appCtx   *app.AppContext
	accounts *repository.AccountRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		accounts: repository.NewAccountRepository(appCtx.DB),
	}
}

// Register creates an unverified account and returns its credentials.
// The handle is normalized to lower case; duplicates conflict.
func (s *Service) Register(ctx context.Context, handle, externalID string) (*Credentials, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	if !handleRE.MatchString(handle) {
		return nil, apperr.Invalid("handle must be 2-64 lowercase letters, digits, or underscores")
	}

	apiKey := "intros_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	verifyCode := "VERIFY-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	acc := &db.Account{
		Handle:     handle,
		APIKeyHash: string(hash),
		VerifyCode: &verifyCode,
		ExternalID: externalID,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.Conflict("account already registered")
		}
		return nil, err
	}

	s.appCtx.Logger.Info("account registered", "handle", handle)
	return &Credentials{Handle: handle, APIKey: apiKey, VerifyCode: verifyCode}, nil
}

// Verify consumes a one-time verification code and records the chat
// destination used for notifications. A consumed or unknown code is
// indistinguishable from an expired one.
func (s *Service) Verify(ctx context.Context, code string, chatID int64) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", apperr.Invalid("verification code is required")
	}
	handle, err := s.accounts.ConsumeVerifyCode(ctx, code, chatID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", apperr.NotFound("invalid or expired verification code")
		}
		return "", err
	}
	s.appCtx.Logger.Info("account verified", "handle", handle)
	return handle, nil
}

// Authenticate checks a handle/key pair. Unknown handles and bad keys
// return the same error so the response leaks nothing.
func (s *Service) Authenticate(ctx context.Context, handle, apiKey string) (*db.Account, error) {
	acc, err := s.accounts.GetByHandle(ctx, strings.ToLower(strings.TrimSpace(handle)))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("unknown account or bad credentials")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.APIKeyHash), []byte(apiKey)) != nil {
		return nil, apperr.NotFound("unknown account or bad credentials")
	}
	return acc, nil
}

// Get returns the account for a handle.
func (s *Service) Get(ctx context.Context, handle string) (*db.Account, error) {
	acc, err := s.accounts.GetByHandle(ctx, handle)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, err
	}
	return acc, nil
}

// UpdateChatID re-captures the transport destination for an account
// identified by its external identity.
func (s *Service) UpdateChatID(ctx context.Context, externalID string, chatID int64) error {
	return s.accounts.UpdateChatID(ctx, externalID, chatID)
}

// Delete removes the account and everything keyed to it, including its
// relevance-index entry.
func (s *Service) Delete(ctx context.Context, handle string) error {
	if err := s.accounts.DeleteCascade(ctx, handle); err != nil {
		return err
	}
	if err := s.appCtx.Index.Remove(handle); err != nil {
		s.appCtx.Logger.Warn("failed to remove profile from index", "handle", handle, "err", err)
	}
	if err := s.appCtx.RedisCache.InvalidateSeen(ctx, handle); err != nil {
		s.appCtx.Logger.Warn("failed to drop cached seen set", "handle", handle, "err", err)
	}
	return nil
}
