package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/watchhub/signalhub/internal/auth"
)

const userIDContextKey = "user_id"

// requireBearerToken validates the Authorization: Bearer <token> header and
// stores the resulting user ID in the gin context, for handlers that act on
// behalf of a viewer (spec.md §4.4, §4.7).
func (s *Server) requireBearerToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	userID, err := auth.ValidateToken(s.cfg.Secret, strings.TrimPrefix(header, prefix))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
		return
	}

	c.Set(userIDContextKey, userID)
	c.Next()
}

func userIDFromContext(c *gin.Context) uint {
	v, ok := c.Get(userIDContextKey)
	if !ok {
		return 0
	}
	userID, _ := v.(uint)
	return userID
}

// corsMiddleware allows cross-origin requests from cfg.CORSHosts, mirroring
// the origin check applied to WebSocket upgrades.
func corsMiddleware(hosts []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(hosts) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = hosts
	}
	return cors.New(cfg)
}
