package identity

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/lilylongbay/kiwispark/internal/docstore"
	"github.com/lilylongbay/kiwispark/internal/domain"
)

// IDTokenVerifier is the part of *auth.Client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier verifies Firebase ID tokens. The role comes from the
// role custom claim when set, otherwise from the users/{uid} profile.
type FirebaseVerifier struct {
	tokens   IDTokenVerifier
	profiles docstore.Getter
	logger   *zap.Logger
}

// NewFirebaseVerifier builds a verifier. profiles may be nil when every
// token carries a role claim.
func NewFirebaseVerifier(tokens IDTokenVerifier, profiles docstore.Getter, logger *zap.Logger) *FirebaseVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirebaseVerifier{tokens: tokens, profiles: profiles, logger: logger}
}

// Verify checks the token signature and resolves the role.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (domain.Actor, error) {
	tok, err := v.tokens.VerifyIDToken(ctx, idToken)
	if err != nil {
		v.logger.Debug("firebase token rejected", zap.Error(err))
		return domain.Actor{}, ErrInvalidCredential
	}

	if role, ok := tok.Claims[claimRole].(string); ok && role != "" {
		return actorFrom(tok.UID, role)
	}
	if v.profiles == nil {
		return domain.Actor{}, ErrInvalidCredential
	}

	profile, err := v.profiles.Get(ctx, docstore.Users, tok.UID)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Actor{}, ErrInvalidCredential
	}
	if err != nil {
		return domain.Actor{}, fmt.Errorf("load profile %s: %w", tok.UID, err)
	}
	return actorFrom(tok.UID, profile.String(claimRole))
}
