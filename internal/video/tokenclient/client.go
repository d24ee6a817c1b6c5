/*
Package tokenclient obtains video session credentials from the token issuance
endpoint with minimal redundant issuance.

It caches issued tokens per (user, room, role), retries transient failures
with exponential backoff, and classifies every failure so callers can decide
whether to prompt for login, fix input, or surface a retry affordance.
*/
package tokenclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"telemed/internal/video/token"
)

const (
	// TokenEndpointPath is the issuance endpoint on the API server.
	TokenEndpointPath = "/api/video/token"

	// DefaultBaseDelay is the first retry delay; subsequent delays double.
	DefaultBaseDelay = time.Second

	// DefaultMaxRetries bounds retries after the initial attempt
	// (4 attempts total).
	DefaultMaxRetries = 3
)

// tokenEnvelope is the wire shape of the issuance endpoint's response, for
// both the success and failure branches.
type tokenEnvelope struct {
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expiresAt"`
	RoomName     string    `json:"roomName"`
	UserRole     string    `json:"userRole"`
	Moderator    bool      `json:"moderator"`
	Domain       string    `json:"domain"`
}

// Client fetches and caches issued tokens. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *Cache
	baseDelay  time.Duration
	maxRetries uint64

	// session returns the caller's bearer token, or "" when signed out.
	session func() string
}

// ClientOption adjusts client construction.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCache replaces the token cache, e.g. with one using an injected clock.
func WithCache(cache *Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithBaseDelay sets the first retry delay.
func WithBaseDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

// WithMaxRetries sets the retry budget after the initial attempt.
func WithMaxRetries(retries uint64) ClientOption {
	return func(c *Client) {
		c.maxRetries = retries
	}
}

// WithSession sets the supplier of the caller's session bearer token.
func WithSession(session func() string) ClientOption {
	return func(c *Client) {
		c.session = session
	}
}

// NewClient constructs a Client targeting the API server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			// Redirects are not followed: a redirect to a login page must be
			// observed and classified as an authentication failure.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cache:      NewCache(),
		baseDelay:  DefaultBaseDelay,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// GetToken returns a valid issued token for the request. When useCache is
// true, a cached token outside its expiry safety margin is returned without
// any network interaction; otherwise the issuance endpoint is called with
// retry/backoff and the result cached.
func (c *Client) GetToken(ctx context.Context, req token.Request, useCache bool) (*token.IssuedToken, error) {
	if useCache {
		if cached := c.cache.Get(req); cached != nil {
			return cached, nil
		}
	}

	var issued *token.IssuedToken
	attempts := 0

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		fetched, fetchErr := c.fetchOnce(ctx, req)
		if fetchErr != nil {
			if retryable(fetchErr) {
				return retry.RetryableError(fetchErr)
			}
			return fetchErr
		}

		issued = fetched
		return nil
	})

	if err != nil {
		// Non-retryable failures on the first attempt surface unchanged so
		// callers can branch on the classification without unwrapping.
		var fetchErr *Error
		if attempts == 1 && errors.As(err, &fetchErr) {
			return nil, fetchErr
		}
		return nil, fmt.Errorf("token fetch failed after %d attempt(s): %w", attempts, err)
	}

	if useCache {
		c.cache.Set(req, issued)
	}

	return issued, nil
}

// ClearCache removes every cached token. Required on logout or role switch.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// fetchOnce performs a single issuance call and classifies any failure.
func (c *Client) fetchOnce(ctx context.Context, req token.Request) (*token.IssuedToken, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "failed to encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TokenEndpointPath, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.session != nil {
		if bearer := c.session(); bearer != "" {
			httpReq.Header.Set("Authorization", "Bearer "+bearer)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "request failed", Err: err}
	}
	defer httpResp.Body.Close()

	// Verify the response is JSON before parsing: an HTML login redirect page
	// must not be fed to the decoder.
	contentType := httpResp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		if isRedirectStatus(httpResp.StatusCode) {
			return nil, &Error{
				Kind:    KindAuthenticationRequired,
				Status:  httpResp.StatusCode,
				Message: "please sign in to access video consultation",
			}
		}
		return nil, &Error{
			Kind:    KindProtocol,
			Status:  httpResp.StatusCode,
			Message: fmt.Sprintf("expected JSON response, received %q", contentType),
		}
	}

	var envelope tokenEnvelope
	if err := json.NewDecoder(httpResp.Body).Decode(&envelope); err != nil {
		return nil, &Error{
			Kind:    KindProtocol,
			Status:  httpResp.StatusCode,
			Message: "invalid JSON response",
			Err:     err,
		}
	}

	if httpResp.StatusCode != http.StatusOK || !envelope.Success {
		message := envelope.ErrorMessage
		if message == "" {
			message = http.StatusText(httpResp.StatusCode)
		}

		switch {
		case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
			return nil, &Error{Kind: KindAuthenticationRequired, Status: httpResp.StatusCode, Message: message}
		case httpResp.StatusCode == http.StatusBadRequest:
			return nil, &Error{Kind: KindValidation, Status: httpResp.StatusCode, Message: message}
		default:
			return nil, &Error{Kind: KindRemoteIssuer, Status: httpResp.StatusCode, Message: message}
		}
	}

	return &token.IssuedToken{
		Token:     envelope.Token,
		ExpiresAt: envelope.ExpiresAt,
		RoomName:  envelope.RoomName,
		UserRole:  envelope.UserRole,
		Moderator: envelope.Moderator,
		Domain:    envelope.Domain,
	}, nil
}

func isRedirectStatus(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}
