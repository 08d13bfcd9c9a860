package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
)

// UsersRepository provides persistence helpers for account profiles.
type UsersRepository struct {
	store docstore.Store
}

// Get loads a profile by user id.
func (r *UsersRepository) Get(ctx context.Context, id string) (domain.UserProfile, error) {
	doc, err := r.store.Get(ctx, docstore.Users, id)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return UserFromDoc(id, doc), nil
}

// Save inserts or replaces a profile.
func (r *UsersRepository) Save(ctx context.Context, u domain.UserProfile) error {
	if err := r.store.Set(ctx, docstore.Users, u.ID, UserDoc(u)); err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

// Authors resolves the public author info of each id, skipping ids
// without a profile. Lookups are deduplicated.
func (r *UsersRepository) Authors(ctx context.Context, ids []string) (map[string]domain.Author, error) {
	out := make(map[string]domain.Author, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		u, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load author %s: %w", id, err)
		}
		out[id] = domain.Author{DisplayName: u.DisplayName, PhotoURL: u.PhotoURL, Role: u.Role}
	}
	return out, nil
}

// UserDoc encodes a user profile.
func UserDoc(u domain.UserProfile) docstore.Doc {
	return docstore.Doc{
		"email":        u.Email,
		"displayName":  u.DisplayName,
		"photoURL":     u.PhotoURL,
		"role":         string(u.Role),
		"isVerified":   u.IsVerified,
		FieldCreatedAt: u.CreatedAt,
		FieldUpdatedAt: u.UpdatedAt,
	}
}

// UserFromDoc decodes a user profile stored under id.
func UserFromDoc(id string, d docstore.Doc) domain.UserProfile {
	return domain.UserProfile{
		ID:          id,
		Email:       d.String("email"),
		DisplayName: d.String("displayName"),
		PhotoURL:    d.String("photoURL"),
		Role:        domain.Role(d.String("role")),
		IsVerified:  d.Bool("isVerified"),
		CreatedAt:   d.Time(FieldCreatedAt),
		UpdatedAt:   d.Time(FieldUpdatedAt),
	}
}
