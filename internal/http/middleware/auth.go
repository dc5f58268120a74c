// README: JWT auth middleware; puts the caller's user id on the gin context.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"

	"ridepool/internal/types"
)

const principalKey = "principal_user_id"

var (
	ErrNoAuthHeader  = errors.New("authorization header missing")
	ErrBadAuthScheme = errors.New("authorization must start with Bearer")
	ErrInvalidToken  = errors.New("invalid token")
)

// TokenManager signs and verifies the HS256 access tokens the API accepts.
// Token issuance lives elsewhere; this only needs the shared secret.
type TokenManager struct {
	secret []byte
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(strings.TrimSpace(secret))}
}

// Issue returns a signed token for a user. Kept for tests and local tooling.
func (m *TokenManager) Issue(userID types.ID, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwtlib.RegisteredClaims{
		Subject:   string(userID),
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies the signature and expiry and returns the subject user id.
func (m *TokenManager) Parse(raw string) (types.ID, error) {
	var claims jwtlib.RegisteredClaims
	tkn, err := jwtlib.ParseWithClaims(raw, &claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return types.ID(claims.Subject), nil
}

func fromAuthorization(c *gin.Context) (string, error) {
	h := c.GetHeader("Authorization")
	if h == "" {
		return "", ErrNoAuthHeader
	}
	if !strings.HasPrefix(h, "Bearer ") {
		return "", ErrBadAuthScheme
	}
	return strings.TrimPrefix(h, "Bearer "), nil
}

// Auth rejects requests without a valid bearer token.
func Auth(mgr *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := fromAuthorization(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		userID, err := mgr.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(principalKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated caller's id. Empty outside Auth routes.
func UserID(c *gin.Context) types.ID {
	v, ok := c.Get(principalKey)
	if !ok {
		return ""
	}
	id, _ := v.(types.ID)
	return id
}
