package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Client talks to the record provider. Token state lives on the client
// and is guarded for concurrent use from multiple tool invocations.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	logger  *slog.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the provider API root.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a record-provider client with injected credentials.
func NewClient(creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		creds:   creds,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "records.client")
	return c
}

// tokenResponse is the provider's auth payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// EnsureAuthenticated guarantees a token valid for at least the
// refresh margin, logging in or refreshing as needed.
func (c *Client) EnsureAuthenticated(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureAuthenticatedLocked(ctx)
}

func (c *Client) ensureAuthenticatedLocked(ctx context.Context) error {
	if c.token == nil {
		return c.loginLocked(ctx)
	}
	if time.Now().After(c.token.Expiry.Add(-refreshMargin)) {
		return c.refreshLocked(ctx)
	}
	return nil
}

// Login authenticates from scratch with the configured credentials.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	payload := map[string]string{
		"client_id":     c.creds.ClientID,
		"client_secret": c.creds.ClientSecret,
	}
	if c.creds.Username != "" && c.creds.Password != "" {
		payload["username"] = c.creds.Username
		payload["password"] = c.creds.Password
	}

	tok, err := c.authPost(ctx, "/auth/login", payload)
	if err != nil {
		c.logger.Error("login failed", "error", err)
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	c.token = tok
	return nil
}

// Refresh exchanges the refresh token for a new access token, falling
// back to a fresh login when no refresh token exists or the exchange
// is rejected.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Client) refreshLocked(ctx context.Context) error {
	if c.token == nil || c.token.RefreshToken == "" {
		return c.loginLocked(ctx)
	}

	tok, err := c.authPost(ctx, "/auth/refresh-token", map[string]string{
		"client_id":     c.creds.ClientID,
		"client_secret": c.creds.ClientSecret,
		"refresh_token": c.token.RefreshToken,
	})
	if err != nil {
		c.logger.Warn("token refresh failed, retrying login", "error", err)
		return c.loginLocked(ctx)
	}
	c.token = tok
	return nil
}

// authPost performs one auth exchange and converts the payload into an
// oauth2 token with an absolute expiry.
func (c *Client) authPost(ctx context.Context, path string, payload map[string]string) (*oauth2.Token, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("auth %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("auth %s returned no access token", path)
	}

	return &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Expiry:       time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// Request makes an authenticated API call and decodes the JSON
// response. On a 401 it refreshes once and retries exactly once.
func (c *Client) Request(ctx context.Context, method, endpoint string, data map[string]interface{}, params url.Values) (map[string]interface{}, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, method, endpoint, data, params)
	if err != nil {
		return nil, fmt.Errorf("records: request failed: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		resp, err = c.do(ctx, method, endpoint, data, params)
		if err != nil {
			return nil, fmt.Errorf("records: retry failed: %w", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("records: %s %s returned %d: %s",
			method, endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("records: decode response: %w", err)
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, data map[string]interface{}, params url.Values) (*http.Response, error) {
	u := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	if c.token != nil {
		req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
	}
	c.mu.Unlock()

	return c.http.Do(req)
}

// Token returns a copy of the current token, for inspection.
func (c *Client) Token() *oauth2.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return nil
	}
	tok := *c.token
	return &tok
}

// SetToken seeds the token state, for tests and pre-provisioned
// deployments.
func (c *Client) SetToken(tok *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = tok
}
