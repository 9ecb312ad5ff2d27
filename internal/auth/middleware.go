package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"call-screener/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const bearerScheme = "bearer"

// RequireAccessToken admits requests carrying a valid bearer token and stores the
// caller's Identity on the request context and logger. Role checks live in rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "", "missing bearer token")
			return
		}

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("access token rejected", "err", err)
			if errors.Is(err, jwt.ErrTokenExpired) {
				unauthorized(c, "invalid_token", "token expired")
				return
			}
			unauthorized(c, "invalid_token", "invalid token")
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), claims.UserID, claims.Role))
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		logger.SetGin(c, logger.FromGin(c).With("user_id", claims.UserID, "role", claims.Role))
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header. The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func unauthorized(c *gin.Context, code, msg string) {
	challenge := `Bearer realm="call-screener"`
	if code != "" {
		challenge += `, error="` + code + `"`
	}
	c.Header("WWW-Authenticate", challenge)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
