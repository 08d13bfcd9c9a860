package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/lilylongbay/kiwispark/internal/domain"
)

const claimRole = "role"

// JWTVerifier accepts HS256 tokens whose sub claim is the actor id and
// whose role claim is the actor role.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier builds a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), now: time.Now}
}

// Verify parses and validates token.
func (v *JWTVerifier) Verify(_ context.Context, token string) (domain.Actor, error) {
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	claims := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Actor{}, ErrInvalidCredential
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims[claimRole].(string)
	return actorFrom(sub, role)
}

// Issue signs a token for actor that expires after ttl.
func (v *JWTVerifier) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     actor.ID,
		claimRole: string(actor.Role),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
