// Package auth exchanges Zitadel service-account keys for short-lived
// access tokens and caches them.
//
// A key file is the JSON document Zitadel hands out for a machine user:
//
//	creds, err := auth.LoadCredentials("key.json", "https://auth.quantumdmn.com", projectID)
//	cache, err := auth.NewTokenCache(creds, auth.Options{Logger: logger})
//	token, err := cache.GetToken(ctx)
package auth

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// KeyFile is the service-account key document.
type KeyFile struct {
	Type   string `json:"type"`
	KeyID  string `json:"keyId"`
	Key    string `json:"key"`
	UserID string `json:"userId"`
}

// LoadKeyFile reads and validates the key document at path.
func LoadKeyFile(path string) (*KeyFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Field: "key_file", Err: err}
	}
	return ParseKeyFile(b)
}

// ParseKeyFile decodes a key document and checks that userId, keyId, and key
// are present. The PEM block is not parsed here.
func ParseKeyFile(data []byte) (*KeyFile, error) {
	var kf KeyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, &ConfigurationError{Field: "key_file", Err: fmt.Errorf("decode: %w", err)}
	}
	switch {
	case strings.TrimSpace(kf.UserID) == "":
		return nil, missingField("userId")
	case strings.TrimSpace(kf.KeyID) == "":
		return nil, missingField("keyId")
	case strings.TrimSpace(kf.Key) == "":
		return nil, missingField("key")
	}
	return &kf, nil
}

// Credentials is the validated material a TokenCache signs assertions with.
type Credentials struct {
	UserID     string
	KeyID      string
	PrivateKey *rsa.PrivateKey

	// Issuer is the Zitadel base URL without a trailing slash.
	Issuer string

	// ProjectID, when set, adds the project-audience scope to every exchange.
	ProjectID string
}

// NewCredentials parses the key's PEM block and validates the issuer URL.
func NewCredentials(kf *KeyFile, issuer, projectID string) (*Credentials, error) {
	if kf == nil {
		return nil, &ConfigurationError{Field: "key_file", Err: errors.New("nil key file")}
	}
	iss, err := normalizeIssuer(issuer)
	if err != nil {
		return nil, err
	}
	key, err := ParsePrivateKey([]byte(kf.Key))
	if err != nil {
		return nil, &ConfigurationError{Field: "key", Err: err}
	}
	return &Credentials{
		UserID:     kf.UserID,
		KeyID:      kf.KeyID,
		PrivateKey: key,
		Issuer:     iss,
		ProjectID:  strings.TrimSpace(projectID),
	}, nil
}

// LoadCredentials is LoadKeyFile followed by NewCredentials.
func LoadCredentials(path, issuer, projectID string) (*Credentials, error) {
	kf, err := LoadKeyFile(path)
	if err != nil {
		return nil, err
	}
	return NewCredentials(kf, issuer, projectID)
}

// ParsePrivateKey decodes a single PEM block holding an RSA private key in
// PKCS#8 or PKCS#1 form.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, rest := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if len(bytes.TrimSpace(rest)) > 0 {
		return nil, errors.New("unexpected data after PEM block")
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported key type %T, want RSA", parsed)
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse %s: not a PKCS#8 or PKCS#1 RSA key: %w", block.Type, err)
	}
	return key, nil
}

func normalizeIssuer(issuer string) (string, error) {
	iss := strings.TrimRight(strings.TrimSpace(issuer), "/")
	if iss == "" {
		return "", missingField("issuer")
	}
	u, err := url.Parse(iss)
	if err != nil {
		return "", &ConfigurationError{Field: "issuer", Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &ConfigurationError{Field: "issuer", Err: fmt.Errorf("%q is not an absolute http(s) URL", issuer)}
	}
	return iss, nil
}
