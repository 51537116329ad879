package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Context keys set by the auth middleware.
const (
	UserIDKey    = "user_id"
	SessionIDKey = "session_id"
)

// AnonymousSessionID marks unauthenticated callers when auth is optional.
const AnonymousSessionID = "anonymous"

// Claims carries the caller identity. SessionID scopes job ownership to one
// client session even for the same user.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ExtractToken pulls the bearer token from the Authorization header, falling
// back to the token query parameter. Browsers cannot set headers on websocket
// handshakes, hence the query fallback.
func ExtractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return c.Query("token")
}

// JWTAuth authenticates HTTP requests. When required is false, requests
// without a valid token proceed with the anonymous identity.
func JWTAuth(secret string, required bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
				return
			}
			c.Set(UserIDKey, "")
			c.Set(SessionIDKey, AnonymousSessionID)
			c.Next()
			return
		}

		claims, err := ParseToken(secret, token)
		if err != nil {
			logger.Warn("Token rejected", zap.Error(err))
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.Set(UserIDKey, "")
			c.Set(SessionIDKey, AnonymousSessionID)
			c.Next()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(SessionIDKey, claims.SessionID)
		c.Next()
	}
}

// CallerIdentity reads the identity the auth middleware stored.
func CallerIdentity(c *gin.Context) (userID, sessionID string) {
	return c.GetString(UserIDKey), c.GetString(SessionIDKey)
}
