package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-crop-inspector/internal/logger"
	"go-crop-inspector/pkg/models"
)

// IdentityKey is the gin context key holding the verified Identity.
const IdentityKey = "identity"

// Middleware rejects requests without a valid bearer token.
func Middleware(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorResponse(msgMissingHeader))
			return
		}

		token, err := BearerTokenFromHeader(header)
		if err == nil {
			var id Identity
			id, err = v.Verify(c.Request.Context(), token)
			if err == nil {
				c.Set(IdentityKey, id)
				c.Next()
				return
			}
		}

		logger.Component("auth").WithError(err).WithField("path", c.Request.URL.Path).Error("Authentication error")
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorResponse(msgInvalidToken))
	}
}

// IdentityFrom returns the caller stored by Middleware.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
