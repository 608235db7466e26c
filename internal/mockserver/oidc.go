package mockserver

import (
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/quantumdmn/dmn-go/pkg/auth"
)

// Discovery is the subset of the OpenID Connect discovery document the
// client ecosystem reads.
type Discovery struct {
	Issuer                           string   `json:"issuer"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

// JWKSet is a JSON Web Key Set (RFC 7517).
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWK is an RSA public key.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (s *Server) discovery(c *gin.Context) {
	iss := s.issuerFor(c)
	c.JSON(http.StatusOK, Discovery{
		Issuer:                           iss,
		TokenEndpoint:                    iss + auth.TokenPath,
		JWKSURI:                          iss + "/oauth/v2/keys",
		GrantTypesSupported:              []string{auth.GrantTypeJWTBearer},
		ScopesSupported:                  auth.BaseScopes,
		TokenEndpointAuthMethods:         []string{"private_key_jwt"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
	})
}

// jwks publishes the registered service-account keys.
func (s *Server) jwks(c *gin.Context) {
	s.mu.RLock()
	keys := make([]JWK, 0, len(s.accounts))
	for kid, acct := range s.accounts {
		keys = append(keys, publicJWK(acct.key, kid))
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Kid < keys[j].Kid })
	c.JSON(http.StatusOK, JWKSet{Keys: keys})
}

// publicJWK describes an account key as an RS256 signing JWK.
func publicJWK(pub *rsa.PublicKey, kid string) JWK {
	b64 := base64.RawURLEncoding.EncodeToString
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   b64(pub.N.Bytes()),
		E:   b64(big.NewInt(int64(pub.E)).Bytes()),
	}
}
