package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"onboarding-api/internal/log"
)

// CloudTasksAuthMiddleware verifies the static secret Cloud Tasks sends with
// every email task.
func CloudTasksAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		providedSecret := c.GetHeader("X-Cloud-Tasks-Secret")
		if providedSecret == "" {
			log.Error(ctx, "Missing X-Cloud-Tasks-Secret header for Cloud Tasks request")
			abortWithDetail(c, http.StatusUnauthorized, "authentication required")
			return
		}

		if secret == "" || subtle.ConstantTimeCompare([]byte(providedSecret), []byte(secret)) != 1 {
			log.Error(ctx, "Invalid Cloud Tasks secret provided")
			abortWithDetail(c, http.StatusUnauthorized, "authentication failed")
			return
		}

		log.Debug(ctx, "Cloud Tasks authentication successful")
		c.Next()
	}
}
