package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dghubble/oauth1"
)

const (
	usosRequestTokenPath = "services/oauth/request_token"
	usosAuthorizePath    = "services/oauth/authorize"
	usosAccessTokenPath  = "services/oauth/access_token"
	usosUserPath         = "services/users/user"
	usosUserFields       = "id|first_name|last_name"
)

// USOSClient implements Authenticator against a USOS API installation.
type USOSClient struct {
	config  oauth1.Config
	userURL string
	timeout time.Duration
	states  *StateStore
}

// NewUSOSClient creates a client for the installation at cfg.BaseAddress.
func NewUSOSClient(cfg Config, states *StateStore) *USOSClient {
	base := cfg.BaseAddress
	if base != "" && base[len(base)-1] != '/' {
		base += "/"
	}

	requestTokenURL := base + usosRequestTokenPath
	if cfg.Scopes != "" {
		requestTokenURL += "?" + url.Values{"scopes": {cfg.Scopes}}.Encode()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &USOSClient{
		config: oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: requestTokenURL,
				AuthorizeURL:    base + usosAuthorizePath,
				AccessTokenURL:  base + usosAccessTokenPath,
			},
			HTTPClient: &http.Client{Timeout: timeout},
		},
		userURL: base + usosUserPath + "?" + url.Values{"fields": {usosUserFields}}.Encode(),
		timeout: timeout,
		states:  states,
	}
}

// BeginAuth requests a temporary token and returns the authorize URL.
func (c *USOSClient) BeginAuth(ctx context.Context, callbackURL string) (string, error) {
	cfg := c.config
	cfg.CallbackURL = callbackURL

	requestToken, requestSecret, err := cfg.RequestToken()
	if err != nil {
		return "", fmt.Errorf("%w: request token: %w", ErrUpstreamUnavailable, err)
	}

	authURL, err := cfg.AuthorizationURL(requestToken)
	if err != nil {
		return "", fmt.Errorf("%w: authorization url: %w", ErrUpstreamUnavailable, err)
	}

	err = c.states.Save(ctx, &RequestToken{
		Token:       requestToken,
		Secret:      requestSecret,
		CallbackURL: callbackURL,
	})
	if err != nil {
		return "", fmt.Errorf("%w: save request token: %w", ErrStateStorage, err)
	}

	return authURL.String(), nil
}

// CompleteAuth redeems the request token and loads the user's profile.
func (c *USOSClient) CompleteAuth(ctx context.Context, token, verifier string) (*Profile, error) {
	if token == "" || verifier == "" {
		return nil, fmt.Errorf("%w: token and verifier are required", ErrAuthorizationDenied)
	}

	pending, err := c.states.Take(ctx, token)
	if errors.Is(err, ErrStateNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrAuthorizationDenied, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load request token: %w", ErrStateStorage, err)
	}

	cfg := c.config
	cfg.CallbackURL = pending.CallbackURL

	accessToken, accessSecret, err := cfg.AccessToken(pending.Token, pending.Secret, verifier)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, fmt.Errorf("%w: access token: %w", ErrUpstreamUnavailable, err)
		}
		return nil, fmt.Errorf("%w: access token: %w", ErrAuthorizationDenied, err)
	}

	return c.fetchProfile(ctx, cfg.Client(ctx, oauth1.NewToken(accessToken, accessSecret)))
}

func (c *USOSClient) fetchProfile(ctx context.Context, client *http.Client) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: user request failed: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read user response: %w", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: user endpoint returned %d: %s", ErrAuthorizationDenied, resp.StatusCode, body)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: user endpoint returned %d: %s", ErrUpstreamUnavailable, resp.StatusCode, body)
	}

	var user struct {
		ID        json.RawMessage `json:"id"`
		FirstName string          `json:"first_name"`
		LastName  string          `json:"last_name"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: decode user: %w", ErrUpstreamUnavailable, err)
	}

	profile := &Profile{
		ID:        rawID(user.ID),
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return profile, nil
}

// rawID accepts the user id as either a JSON string or number.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

var _ Authenticator = (*USOSClient)(nil)
