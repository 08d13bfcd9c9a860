// Package identity turns request credentials into verified actors.
package identity

import (
	"context"
	"errors"

	"github.com/lilylongbay/kiwispark/internal/domain"
)

// ErrInvalidCredential is returned for any credential a verifier rejects:
// malformed, expired, badly signed or naming an unknown account.
var ErrInvalidCredential = errors.New("identity: invalid credential")

// Verifier resolves a credential to the actor it was issued for.
type Verifier interface {
	Verify(ctx context.Context, credential string) (domain.Actor, error)
}

func actorFrom(id, role string) (domain.Actor, error) {
	actor := domain.Actor{ID: id, Role: domain.Role(role)}
	if actor.ID == "" || !actor.Role.Valid() {
		return domain.Actor{}, ErrInvalidCredential
	}
	return actor, nil
}
