package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lilylongbay/kiwispark/internal/domain"
)

// HTTPVerifier asks an external identity service to introspect the token.
type HTTPVerifier struct {
	baseURL *url.URL
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPVerifier constructs a verifier calling GET {baseURL}/introspect.
func NewHTTPVerifier(baseURL string, timeout time.Duration, logger *zap.Logger) (*HTTPVerifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse identity url: %w", err)
	}
	return &HTTPVerifier{
		baseURL: parsed,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// Verify forwards token as a bearer credential.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (domain.Actor, error) {
	endpoint := v.baseURL.ResolveReference(&url.URL{Path: v.baseURL.Path + "/introspect"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return domain.Actor{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("identity: introspect: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload introspection
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return domain.Actor{}, fmt.Errorf("decode introspection response: %w", err)
		}
		return convertToActor(payload)
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return domain.Actor{}, ErrInvalidCredential
	default:
		v.logger.Warn("identity: unexpected introspection status", zap.Int("status", resp.StatusCode))
		return domain.Actor{}, fmt.Errorf("identity: upstream returned %d", resp.StatusCode)
	}
}

type introspection struct {
	Active *bool  `json:"active"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// convertToActor treats a missing active flag as active.
func convertToActor(payload introspection) (domain.Actor, error) {
	if payload.Active != nil && !*payload.Active {
		return domain.Actor{}, ErrInvalidCredential
	}
	return actorFrom(strings.TrimSpace(payload.UserID), strings.ToLower(strings.TrimSpace(payload.Role)))
}
