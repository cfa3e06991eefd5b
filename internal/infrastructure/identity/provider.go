package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relaypoint/backend/internal/domain/entitlement"
	"github.com/relaypoint/backend/internal/domain/shared"
	"github.com/relaypoint/backend/internal/infrastructure/config"
)

// maxResponseSize is the maximum allowed response size from the identity
// service (1MB)
const maxResponseSize = 1 * 1024 * 1024

// ErrProviderUnavailable indicates the identity service could not be reached
var ErrProviderUnavailable = errors.New("identity: provider unavailable")

// ErrProviderRequestFailed indicates the identity service rejected the request
var ErrProviderRequestFailed = errors.New("identity: provider request failed")

// HTTPProvider implements entitlement.IdentityProvider against the central
// identity service's REST API. Lookups are read-only and carry a service
// token; the provider is safe for concurrent use.
type HTTPProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPProvider creates an identity provider client from configuration.
func NewHTTPProvider(cfg config.IdentityConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("identity: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("identity: invalid base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// directoryUserResponse is the wire shape of a user record as returned by
// the identity service.
type directoryUserResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
}

// LookupUser resolves a user reference against the identity service.
// Platform IDs hit the user resource directly; legacy tokens go through
// the token resolution endpoint, which maps a token to its owning user.
func (p *HTTPProvider) LookupUser(ctx context.Context, ref entitlement.UserRef) (*entitlement.DirectoryUser, error) {
	var path string
	switch ref.Kind {
	case entitlement.RefPlatformUserID:
		path = "/v1/users/" + ref.UserID.String()
	case entitlement.RefLegacyToken:
		path = "/v1/tokens/" + url.PathEscape(ref.Token) + "/user"
	default:
		return nil, fmt.Errorf("identity: unsupported reference kind %q", ref.Kind)
	}

	body, err := p.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	var wire directoryUserResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("identity: failed to parse response: %w", err)
	}
	if wire.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: response missing user_id", ErrProviderRequestFailed)
	}

	return &entitlement.DirectoryUser{
		UserID:      wire.UserID,
		DisplayName: wire.DisplayName,
		Email:       wire.Email,
	}, nil
}

// doRequest performs an authenticated GET against the identity service.
// A 404 maps to shared.ErrNotFound so callers can distinguish "identity
// does not exist" from transport and server failures.
func (p *HTTPProvider) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("identity: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, shared.ErrNotFound
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d", ErrProviderRequestFailed, resp.StatusCode)
	}

	return body, nil
}

var _ entitlement.IdentityProvider = (*HTTPProvider)(nil)
