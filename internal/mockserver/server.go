// Package mockserver is an in-process stand-in for the Zitadel token
// endpoint and the QuantumDMN evaluation API. Tests and `dmn mock` use it to
// exercise the client end to end.
package mockserver

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quantumdmn/dmn-go/internal/telemetry"
	"github.com/quantumdmn/dmn-go/pkg/auth"
	"github.com/quantumdmn/dmn-go/pkg/feel"
	"go.uber.org/zap"
)

// Config tunes a Server. The zero value is usable.
type Config struct {
	// Issuer is the expected assertion audience. When empty the server uses
	// the scheme and host of each request.
	Issuer string

	// TokenTTL is the expires_in handed out for access tokens. Defaults to 1h.
	TokenTTL time.Duration

	// RateLimit enables per-IP limiting at this many requests per second.
	RateLimit int

	// CORSOrigins lists allowed browser origins. Defaults to "*".
	CORSOrigins []string

	Logger *zap.Logger

	// Now is the server clock. Defaults to time.Now.
	Now func() time.Time
}

// DefinitionFunc evaluates a stored definition against an input context and
// returns one value per decision id.
type DefinitionFunc func(input feel.Value) (map[string]feel.Value, error)

type account struct {
	userID string
	key    *rsa.PublicKey
}

// Server fakes the token and evaluation endpoints.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *telemetry.ServerMetrics
	router   *gin.Engine

	mu          sync.RWMutex
	accounts    map[string]account // by key id
	tokens      map[string]time.Time
	definitions map[string]DefinitionFunc

	exchanges   atomic.Int64
	evaluations atomic.Int64
	tokenStatus atomic.Int32
}

// New builds a Server with the "echo" definition registered.
func New(cfg Config) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	reg := prometheus.NewRegistry()
	s := &Server{
		cfg:         cfg,
		logger:      cfg.Logger,
		registry:    reg,
		metrics:     telemetry.NewServerMetrics(reg),
		accounts:    make(map[string]account),
		tokens:      make(map[string]time.Time),
		definitions: make(map[string]DefinitionFunc),
	}
	s.RegisterDefinition("echo", Echo)
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(s.cfg.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})
	if s.cfg.RateLimit > 0 {
		router.Use(rateLimiter(s.cfg.RateLimit, s.cfg.RateLimit*2))
	}
	router.Use(s.observe())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	router.GET("/.well-known/openid-configuration", s.discovery)
	router.GET("/oauth/v2/keys", s.jwks)
	router.POST(auth.TokenPath, s.token)

	v1 := router.Group("/api/v1", s.requireBearer)
	v1.POST("/projects/:projectId/definitions/xml/:xmlId/evaluate", s.evaluate)
	return router
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

// Registry returns the registry backing /metrics.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// RegisterKey trusts pub for assertions carrying keyID and signed by userID.
func (s *Server) RegisterKey(userID, keyID string, pub *rsa.PublicKey) {
	s.mu.Lock()
	s.accounts[keyID] = account{userID: userID, key: pub}
	s.mu.Unlock()
}

// NewServiceAccount generates an RSA key, registers it, and returns the key
// document a client would be given.
func (s *Server) NewServiceAccount(userID string) (*auth.KeyFile, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	keyID := uuid.New().String()
	s.RegisterKey(userID, keyID, &key.PublicKey)
	return &auth.KeyFile{
		Type:   "serviceaccount",
		KeyID:  keyID,
		Key:    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		UserID: userID,
	}, nil
}

// RegisterDefinition serves fn for xmlID.
func (s *Server) RegisterDefinition(xmlID string, fn DefinitionFunc) {
	s.mu.Lock()
	s.definitions[xmlID] = fn
	s.mu.Unlock()
}

// SetTokenStatus makes the token endpoint answer every exchange with status
// and an error body. Zero restores normal behavior.
func (s *Server) SetTokenStatus(status int) {
	s.tokenStatus.Store(int32(status))
}

// Exchanges returns the number of token requests received.
func (s *Server) Exchanges() int64 { return s.exchanges.Load() }

// Evaluations returns the number of evaluation requests that reached a definition.
func (s *Server) Evaluations() int64 { return s.evaluations.Load() }

// Echo returns the whole input as the "context" decision and each entry as a
// decision of its own.
func Echo(input feel.Value) (map[string]feel.Value, error) {
	out := map[string]feel.Value{"context": input}
	for _, k := range input.Keys() {
		v, _ := input.Get(k)
		out[k] = v
	}
	return out, nil
}

func (s *Server) issuerFor(c *gin.Context) string {
	if s.cfg.Issuer != "" {
		return s.cfg.Issuer
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
