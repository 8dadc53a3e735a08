// Package profile owns profile mutations. Every write reindexes the
// document synchronously so the relevance index never trails the store.
package profile

import (
	"context"
	"strings"

	"github.com/introslabs/intros/internal/app"
	"github.com/introslabs/intros/internal/apperr"
	"github.com/introslabs/intros/internal/db"
	"github.com/introslabs/intros/internal/index"
	"github.com/introslabs/intros/internal/repository"
)

// Input is the full-replace profile payload.
type Input struct {
	Name          string `json:"name"`
	Interests     string `json:"interests"`
	LookingFor    string `json:"looking_for"`
	Location      string `json:"location"`
	Bio           string `json:"bio"`
	ContactHandle string `json:"contact_handle"`
	ContactPublic bool   `json:"contact_public"`
}

// patchable maps accepted patch fields to their column names.
var patchable = map[string]string{
	"name":           "name",
	"interests":      "interests",
	"looking_for":    "looking_for",
	"location":       "location",
	"bio":            "bio",
	"contact_handle": "contact_handle",
	"contact_public": "contact_public",
}

type Service struct {
	appCtx   *app.AppContext
	profiles *repository.ProfileRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		profiles: repository.NewProfileRepository(appCtx.DB),
	}
}

// Upsert creates or fully replaces the account's profile.
func (s *Service) Upsert(ctx context.Context, handle string, in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("name is required")
	}

	p := &db.Profile{
		Handle:        handle,
		Name:          in.Name,
		Interests:     in.Interests,
		LookingFor:    in.LookingFor,
		Location:      in.Location,
		Bio:           in.Bio,
		ContactHandle: in.ContactHandle,
		ContactPublic: in.ContactPublic,
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return err
	}
	return s.reindex(ctx, handle)
}

// Patch updates a subset of fields on an existing profile. Unknown field
// names are a validation error; clearing name is rejected.
func (s *Service) Patch(ctx context.Context, handle string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return apperr.Invalid("no fields to update")
	}

	columns := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		col, ok := patchable[k]
		if !ok {
			return apperr.Invalid("unknown profile field: " + k)
		}
		if col == "name" {
			name, _ := v.(string)
			if strings.TrimSpace(name) == "" {
				return apperr.Invalid("name cannot be empty")
			}
		}
		columns[col] = v
	}

	if err := s.profiles.Patch(ctx, handle, columns); err != nil {
		if repository.IsNotFound(err) {
			return apperr.NotFound("profile not found")
		}
		return err
	}
	return s.reindex(ctx, handle)
}

// Get returns the account's own profile, contact handle included.
func (s *Service) Get(ctx context.Context, handle string) (*db.Profile, error) {
	p, err := s.profiles.GetByHandle(ctx, handle)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("profile not found")
		}
		return nil, err
	}
	return p, nil
}

// RebuildIndex re-indexes the full profile corpus. Run at boot; safe to
// re-run at any time.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	profiles, err := s.profiles.ListByRecency(ctx)
	if err != nil {
		return 0, err
	}
	docs := make(map[string]index.Document, len(profiles))
	for _, p := range profiles {
		docs[p.Handle] = documentFor(&p)
	}
	if err := s.appCtx.Index.Rebuild(docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *Service) reindex(ctx context.Context, handle string) error {
	p, err := s.profiles.GetByHandle(ctx, handle)
	if err != nil {
		return err
	}
	return s.appCtx.Index.Index(handle, documentFor(p))
}

func documentFor(p *db.Profile) index.Document {
	return index.Document{
		Name:       p.Name,
		Interests:  p.Interests,
		LookingFor: p.LookingFor,
		Location:   p.Location,
		Bio:        p.Bio,
	}
}
