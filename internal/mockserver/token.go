package mockserver

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/quantumdmn/dmn-go/pkg/auth"
	"go.uber.org/zap"
)

// token implements the JWT-bearer grant (RFC 7523) the way Zitadel does for
// service accounts.
func (s *Server) token(c *gin.Context) {
	s.exchanges.Add(1)

	if status := int(s.tokenStatus.Load()); status != 0 {
		s.reject(c, status, "forced", "invalid_grant", "token endpoint configured to fail")
		return
	}
	if gt := c.PostForm("grant_type"); gt != auth.GrantTypeJWTBearer {
		s.reject(c, http.StatusBadRequest, "unsupported_grant_type", "unsupported_grant_type", fmt.Sprintf("grant type %q is not supported", gt))
		return
	}
	assertion := c.PostForm("assertion")
	if assertion == "" {
		s.reject(c, http.StatusBadRequest, "invalid_request", "invalid_request", "assertion is required")
		return
	}
	if !slices.Contains(strings.Fields(c.PostForm("scope")), "openid") {
		s.reject(c, http.StatusBadRequest, "invalid_scope", "invalid_scope", "scope must include openid")
		return
	}

	userID, err := s.verifyAssertion(assertion, s.issuerFor(c))
	if err != nil {
		s.reject(c, http.StatusBadRequest, "invalid_grant", "invalid_grant", err.Error())
		return
	}

	token := uuid.New().String()
	s.mu.Lock()
	s.tokens[token] = s.cfg.Now().Add(s.cfg.TokenTTL)
	s.mu.Unlock()

	s.metrics.RecordTokenExchange("issued")
	s.logger.Debug("access token issued", zap.String("user_id", userID))
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int64(s.cfg.TokenTTL.Seconds()),
	})
}

func (s *Server) reject(c *gin.Context, status int, outcome, code, description string) {
	s.metrics.RecordTokenExchange(outcome)
	s.logger.Debug("token exchange rejected", zap.String("error", code), zap.String("description", description))
	c.JSON(status, gin.H{"error": code, "error_description": description})
}

// verifyAssertion checks the signature against the key named by kid and
// returns the service-account user id.
func (s *Server) verifyAssertion(assertion, audience string) (string, error) {
	var claims jwt.RegisteredClaims
	var acct account
	_, err := jwt.ParseWithClaims(
		assertion,
		&claims,
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			kid, _ := tok.Header["kid"].(string)
			s.mu.RLock()
			a, ok := s.accounts[kid]
			s.mu.RUnlock()
			if !ok {
				return nil, fmt.Errorf("unknown key id %q", kid)
			}
			acct = a
			return a.key, nil
		},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.cfg.Now),
	)
	if err != nil {
		return "", fmt.Errorf("verify assertion: %w", err)
	}
	if claims.Issuer != acct.userID || claims.Subject != acct.userID {
		return "", errors.New("verify assertion: iss and sub must equal the key's user id")
	}
	return acct.userID, nil
}
