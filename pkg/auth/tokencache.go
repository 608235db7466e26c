package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/quantumdmn/dmn-go/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// RefreshMargin is how long before expiry a cached token stops being served.
	RefreshMargin = 60 * time.Second

	// DefaultTimeout bounds a token exchange when Options.Timeout is zero.
	DefaultTimeout = 10 * time.Second

	// GrantTypeJWTBearer is the RFC 7523 grant type sent to the token endpoint.
	GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// TokenPath is appended to the issuer to form the token endpoint.
	TokenPath = "/oauth/v2/token"

	maxTokenResponse = 1 << 16
)

// BaseScopes are requested on every exchange.
var BaseScopes = []string{"openid", "profile", "urn:zitadel:iam:user:resourceowner"}

// ProjectAudienceScope returns the scope that puts projectID in the token audience.
func ProjectAudienceScope(projectID string) string {
	return fmt.Sprintf("urn:zitadel:iam:org:project:id:%s:aud", projectID)
}

// Options tunes a TokenCache. The zero value is usable.
type Options struct {
	// HTTPClient performs the exchange. Defaults to a client with no timeout
	// of its own; Timeout applies per exchange either way.
	HTTPClient *http.Client

	// Timeout bounds each token exchange. Defaults to DefaultTimeout.
	Timeout time.Duration

	// ExtraScopes are appended after the base and project scopes.
	ExtraScopes []string

	// Now is the clock used for assertions and expiry. Defaults to time.Now.
	Now func() time.Time

	Logger *zap.Logger

	// Registerer receives the refresh metrics. Nil disables registration.
	Registerer prometheus.Registerer
}

type cachedToken struct {
	value  string
	expiry time.Time
}

// TokenCache hands out access tokens, exchanging a fresh assertion only when
// the cached token is within RefreshMargin of expiry. It is safe for
// concurrent use; concurrent callers that find the cache stale share a single
// exchange.
type TokenCache struct {
	assertions *AssertionBuilder
	tokenURL   string
	scope      string
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
	logger     *zap.Logger
	metrics    *telemetry.TokenMetrics

	mu      sync.RWMutex
	current *cachedToken

	flight singleflight.Group
}

// NewTokenCache returns an empty cache for creds. No network call is made.
func NewTokenCache(creds *Credentials, opts Options) (*TokenCache, error) {
	if creds == nil {
		return nil, &ConfigurationError{Field: "credentials", Err: fmt.Errorf("nil credentials")}
	}
	if creds.PrivateKey == nil {
		return nil, missingField("key")
	}
	iss, err := normalizeIssuer(creds.Issuer)
	if err != nil {
		return nil, err
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	scopes := append([]string(nil), BaseScopes...)
	if creds.ProjectID != "" {
		scopes = append(scopes, ProjectAudienceScope(creds.ProjectID))
	}
	scopes = append(scopes, opts.ExtraScopes...)

	return &TokenCache{
		assertions: NewAssertionBuilder(creds, opts.Now),
		tokenURL:   iss + TokenPath,
		scope:      strings.Join(scopes, " "),
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		now:        opts.Now,
		logger:     opts.Logger.With(zap.String("user_id", creds.UserID), zap.String("key_id", creds.KeyID)),
		metrics:    telemetry.NewTokenMetrics(opts.Registerer),
	}, nil
}

// NewTokenCacheFromFile loads the key file at path and builds a cache for it.
func NewTokenCacheFromFile(path, issuer, projectID string, opts Options) (*TokenCache, error) {
	creds, err := LoadCredentials(path, issuer, projectID)
	if err != nil {
		return nil, err
	}
	return NewTokenCache(creds, opts)
}

// GetToken returns a token valid for at least RefreshMargin, refreshing it
// when needed. A refresh, once started, runs to completion even if ctx is
// cancelled; ctx only stops this caller from waiting for it. On failure the
// previously cached token is kept and the error is returned.
func (c *TokenCache) GetToken(ctx context.Context) (string, error) {
	tok, err := c.get(ctx)
	if err != nil {
		return "", err
	}
	return tok.value, nil
}

// Token implements oauth2.TokenSource.
func (c *TokenCache) Token() (*oauth2.Token, error) {
	tok, err := c.get(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok.value, TokenType: "Bearer", Expiry: tok.expiry}, nil
}

// Invalidate drops the cached token so the next call exchanges a new one.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Scope returns the space-joined scope string sent with every exchange.
func (c *TokenCache) Scope() string { return c.scope }

// TokenURL returns the token endpoint.
func (c *TokenCache) TokenURL() string { return c.tokenURL }

func (c *TokenCache) fresh() (*cachedToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current != nil && c.now().Before(c.current.expiry.Add(-RefreshMargin)) {
		return c.current, true
	}
	return nil, false
}

func (c *TokenCache) get(ctx context.Context) (*cachedToken, error) {
	if tok, ok := c.fresh(); ok {
		return tok, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan("token", func() (any, error) {
		// A flight that finished just before this one started may have
		// stored a fresh token already.
		if tok, ok := c.fresh(); ok {
			return tok, nil
		}
		return c.refresh(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cachedToken), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *TokenCache) refresh(ctx context.Context) (*cachedToken, error) {
	start := time.Now()
	c.logger.Debug("exchanging assertion for access token", zap.String("token_url", c.tokenURL))

	assertion, err := c.assertions.Build()
	if err != nil {
		c.fail(telemetry.ResultSigning, start, err, 0)
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", GrantTypeJWTBearer)
	form.Set("scope", c.scope)
	form.Set("assertion", assertion)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{URL: c.tokenURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.fail(telemetry.ResultTransport, start, err, 0)
		return nil, &TransportError{URL: c.tokenURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	if err != nil {
		c.fail(telemetry.ResultTransport, start, err, resp.StatusCode)
		return nil, &TransportError{URL: c.tokenURL, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		authErr := &AuthenticationError{StatusCode: resp.StatusCode, Body: string(body)}
		c.fail(telemetry.ResultAuthentication, start, authErr, resp.StatusCode)
		return nil, authErr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		authErr := &AuthenticationError{StatusCode: resp.StatusCode, Body: string(body), Reason: "malformed response"}
		c.fail(telemetry.ResultAuthentication, start, err, resp.StatusCode)
		return nil, authErr
	}
	if tr.AccessToken == "" {
		authErr := &AuthenticationError{StatusCode: resp.StatusCode, Body: string(body), Reason: "missing access_token"}
		c.fail(telemetry.ResultAuthentication, start, authErr, resp.StatusCode)
		return nil, authErr
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	tok := &cachedToken{value: tr.AccessToken, expiry: c.now().Add(lifetime)}

	c.mu.Lock()
	c.current = tok
	c.mu.Unlock()

	elapsed := time.Since(start)
	c.metrics.RecordRefresh(telemetry.ResultSuccess, elapsed)
	c.logger.Info("access token refreshed",
		zap.Duration("expires_in", lifetime),
		zap.Duration("elapsed", elapsed),
	)
	return tok, nil
}

func (c *TokenCache) fail(result string, start time.Time, err error, status int) {
	elapsed := time.Since(start)
	c.metrics.RecordRefresh(result, elapsed)
	c.logger.Warn("access token refresh failed",
		zap.String("result", result),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
}
