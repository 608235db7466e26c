package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quantumdmn/dmn-go/pkg/auth"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func pkcs8PEM(t *testing.T, key any) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal PKCS#8: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func pkcs1PEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
}

func keyFileJSON(t *testing.T, userID, keyID, key string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]string{
		"type":   "serviceaccount",
		"keyId":  keyID,
		"key":    key,
		"userId": userID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// tokenServer is a minimal token endpoint that counts exchanges.
type tokenServer struct {
	*httptest.Server

	exchanges atomic.Int32
	status    atomic.Int32
	body      atomic.Pointer[string]

	mu       sync.Mutex
	lastForm url.Values

	// arrived receives once per request when gate is set; the handler then
	// blocks until gate is closed.
	arrived chan struct{}
	gate    chan struct{}
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.status.Store(http.StatusOK)
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) blockRequests() {
	ts.arrived = make(chan struct{}, 64)
	ts.gate = make(chan struct{})
}

func (ts *tokenServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != auth.TokenPath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ts.mu.Lock()
	ts.lastForm = r.PostForm
	ts.mu.Unlock()

	if ts.gate != nil {
		ts.arrived <- struct{}{}
		<-ts.gate
	}

	n := ts.exchanges.Add(1)
	w.Header().Set("Content-Type", "application/json")
	status := int(ts.status.Load())
	w.WriteHeader(status)
	if b := ts.body.Load(); b != nil {
		fmt.Fprint(w, *b)
		return
	}
	if status != http.StatusOK {
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
		return
	}
	fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":3600}`, n)
}

func (ts *tokenServer) form() url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.lastForm
}

func testCredentials(t *testing.T, issuer, projectID string) *auth.Credentials {
	t.Helper()
	kf, err := auth.ParseKeyFile(keyFileJSON(t, "user-1", "key-1", pkcs8PEM(t, rsaKey(t))))
	if err != nil {
		t.Fatalf("ParseKeyFile: %v", err)
	}
	creds, err := auth.NewCredentials(kf, issuer, projectID)
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}
	return creds
}
