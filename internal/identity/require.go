package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/lilylongbay/kiwispark/internal/apperr"
	"github.com/lilylongbay/kiwispark/internal/domain"
)

// Require verifies credential and checks the actor holds role. Missing or
// rejected credentials are Unauthenticated; a wrong role is Forbidden.
func Require(ctx context.Context, v Verifier, credential string, role domain.Role, forbidden string) (domain.Actor, error) {
	if credential == "" {
		return domain.Actor{}, apperr.New(apperr.Unauthenticated, "authentication required")
	}
	actor, err := v.Verify(ctx, credential)
	if errors.Is(err, ErrInvalidCredential) {
		return domain.Actor{}, apperr.Wrap(apperr.Unauthenticated, "invalid or expired credential", err)
	}
	if err != nil {
		return domain.Actor{}, fmt.Errorf("verify credential: %w", err)
	}
	if actor.Role != role {
		return domain.Actor{}, apperr.New(apperr.Forbidden, forbidden)
	}
	return actor, nil
}
