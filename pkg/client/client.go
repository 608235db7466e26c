package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quantumdmn/dmn-go/internal/telemetry"
	"github.com/quantumdmn/dmn-go/pkg/auth"
	"github.com/quantumdmn/dmn-go/pkg/config"
	"github.com/quantumdmn/dmn-go/pkg/feel"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the hosted QuantumDMN API.
const DefaultBaseURL = config.DefaultBaseURL

const maxResponseBody = 4 << 20

var (
	// ErrNoCredentials is returned by New when neither a token source nor a
	// static token is supplied.
	ErrNoCredentials = errors.New("client: a token source or a static token is required")

	// ErrNotContext is returned when an evaluation input is not a FEEL context.
	ErrNotContext = errors.New("client: evaluation input must be a context")
)

// APIError is a non-2xx response from the evaluation API.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: server returned %d: %s", e.Operation, e.StatusCode, e.Body)
}

// EvaluationResult is the outcome of one decision in an evaluated model.
type EvaluationResult struct {
	DecisionID   string     `json:"decisionId"`
	DecisionName string     `json:"decisionName,omitempty"`
	Value        feel.Value `json:"value"`
	Error        string     `json:"error,omitempty"`
}

// Failed reports whether the engine returned an error for this decision.
func (r EvaluationResult) Failed() bool { return r.Error != "" }

// Options configures a Client. Either TokenSource or Token must be set.
type Options struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// TokenSource supplies bearer tokens, typically an *auth.TokenCache.
	TokenSource oauth2.TokenSource

	// Token is a pre-issued bearer token used when TokenSource is nil.
	Token string

	// HTTPClient supplies the base transport. Its Transport is wrapped to
	// attach the bearer token.
	HTTPClient *http.Client

	// Timeout bounds each API request. Defaults to 30s.
	Timeout time.Duration

	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64

	// Burst is the limiter bucket size. Defaults to 1 when RateLimit is set.
	Burst int

	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

// invalidator is implemented by token sources that can drop a rejected token.
type invalidator interface {
	Invalidate()
}

// Client calls the QuantumDMN evaluation API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	source     oauth2.TokenSource
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *telemetry.APIMetrics
}

// New builds a Client from opts.
//
//	cache, _ := auth.NewTokenCacheFromFile("key.json", config.DefaultIssuer, zitadelProject, auth.Options{})
//	c, err := client.New(client.Options{TokenSource: cache})
func New(opts Options) (*Client, error) {
	src := opts.TokenSource
	if src == nil {
		if strings.TrimSpace(opts.Token) == "" {
			return nil, ErrNoCredentials
		}
		src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"})
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("client: invalid base URL %q: %w", opts.BaseURL, err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var transport http.RoundTripper = http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		transport = opts.HTTPClient.Transport
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: transport},
			Timeout:   opts.Timeout,
		},
		source:  src,
		limiter: limiter,
		logger:  opts.Logger,
		metrics: telemetry.NewAPIMetrics(opts.Registerer),
	}, nil
}

// NewFromConfig builds a Client from loaded configuration. A configured key
// file takes precedence over a static token. The configured timeout bounds
// both token exchanges and API requests. Fields of opts that are already set
// win over the configuration.
func NewFromConfig(cfg *config.Config, opts Options) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.BaseURL == "" {
		opts.BaseURL = cfg.BaseURL
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = cfg.RateLimit
	}
	if opts.Timeout == 0 {
		opts.Timeout = cfg.Timeout
	}
	if opts.TokenSource == nil {
		if cfg.UsesKeyFile() {
			z := cfg.Auth.Zitadel
			cache, err := auth.NewTokenCacheFromFile(z.KeyFile, z.Issuer, z.ProjectID, auth.Options{
				HTTPClient: opts.HTTPClient,
				Timeout:    cfg.Timeout,
				Logger:     opts.Logger,
				Registerer: opts.Registerer,
			})
			if err != nil {
				return nil, fmt.Errorf("client: token cache: %w", err)
			}
			opts.TokenSource = cache
		} else {
			opts.Token = cfg.Token
		}
	}
	return New(opts)
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

type evaluateRequest struct {
	Context feel.Value `json:"context"`
}

// Evaluate runs the stored definition xmlID in projectID against input,
// which must be a context (or null, sent as an empty context). version 0
// selects the latest version.
func (c *Client) Evaluate(ctx context.Context, projectID uuid.UUID, xmlID string, version int, input feel.Value) (map[string]EvaluationResult, error) {
	if xmlID == "" {
		return nil, errors.New("evaluate: xml id is required")
	}
	if version < 0 {
		return nil, fmt.Errorf("evaluate: version must not be negative, got %d", version)
	}
	switch input.Kind() {
	case feel.KindNull:
		input = feel.Context(nil)
	case feel.KindContext:
	default:
		return nil, fmt.Errorf("evaluate: %w, got %s", ErrNotContext, input.Kind())
	}

	endpoint := fmt.Sprintf("%s/api/v1/projects/%s/definitions/xml/%s/evaluate",
		c.baseURL, projectID, url.PathEscape(xmlID))
	if version > 0 {
		endpoint += "?version=" + strconv.Itoa(version)
	}

	payload, err := json.Marshal(evaluateRequest{Context: input})
	if err != nil {
		return nil, fmt.Errorf("evaluate: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("evaluate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "evaluate")
	if err != nil {
		return nil, err
	}

	var results map[string]EvaluationResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("evaluate: decode response: %w", err)
	}
	return results, nil
}

// do executes req through the rate limiter and the token transport.
func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("%s: rate limit: %w", operation, err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRequest(operation, 0, time.Since(start))
		c.logger.Warn("api request failed", zap.String("operation", operation), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	elapsed := time.Since(start)
	c.metrics.RecordRequest(operation, resp.StatusCode, elapsed)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", operation, err)
	}

	c.logger.Debug("api request",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		if inv, ok := c.source.(invalidator); ok {
			inv.Invalidate()
		}
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
