package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"classroom-poll-backend/internal/services"

	"github.com/gin-gonic/gin"
)

const claimsKey = "participant"

// ParticipantAuth accepts the bearer token handed out by the join endpoint.
func ParticipantAuth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole must run after ParticipantAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "only a " + role + " may do this"})
			return
		}
		c.Next()
	}
}

// RequireSeat must run after ParticipantAuth. It rejects a token whose
// participant is gone or no longer holds the role the token was issued for,
// such as a teacher replaced by a later join.
func RequireSeat(presence *services.PresenceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		p, err := presence.Get(c.Request.Context(), claims.Subject)
		if err != nil && !services.IsNotFound(err) {
			slog.Error("seat lookup failed", "subject", claims.Subject, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if err != nil || p.Role != claims.Role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "your session has been replaced"})
			return
		}
		c.Next()
	}
}

func Claims(c *gin.Context) (*services.ParticipantClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*services.ParticipantClaims)
	return claims, ok
}
