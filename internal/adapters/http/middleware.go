package http

import (
	nethttp "net/http"
	"strings"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const userKey = "user"

// BearerMiddleware resolves "Authorization: Bearer <token>" to the request user.
func BearerMiddleware(auth core.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(nethttp.StatusUnauthorized, gin.H{"error": core.ErrMissingToken.Error()})
			return
		}
		user, err := auth.Verify(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Msg("rejected bearer token")
			c.AbortWithStatusJSON(nethttp.StatusUnauthorized, gin.H{"error": core.ErrInvalidToken.Error()})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(userKey).(*domain.User)
}
