package middleware

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"onboarding-api/internal/log"
)

// AuthUIDKey is the gin context key holding the verified caller's uid.
const AuthUIDKey = "auth_uid"

// IDTokenVerifier verifies Firebase ID tokens.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthMiddleware requires a valid Firebase ID token. A non-empty
// requiredRole must match the token's "role" claim, and an :adminId path
// parameter must match the token's uid.
func FirebaseAuthMiddleware(verifier IDTokenVerifier, requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		idToken, ok := bearerToken(c)
		if !ok {
			abortWithDetail(c, http.StatusUnauthorized, "authentication required")
			return
		}

		token, err := verifier.VerifyIDToken(ctx, idToken)
		if err != nil {
			log.Warn(ctx, "Firebase ID token rejected", "error", err)
			abortWithDetail(c, http.StatusUnauthorized, "invalid ID token")
			return
		}

		if requiredRole != "" {
			if role, _ := token.Claims["role"].(string); role != requiredRole {
				log.Warn(ctx, "Caller lacks required role", "user_id", token.UID, "required_role", requiredRole)
				abortWithDetail(c, http.StatusForbidden, "insufficient role")
				return
			}
		}

		if adminID := c.Param("adminId"); adminID != "" && adminID != token.UID {
			log.Warn(ctx, "Caller does not own admin scope", "user_id", token.UID, "admin_id", adminID)
			abortWithDetail(c, http.StatusForbidden, "forbidden")
			return
		}

		c.Set(AuthUIDKey, token.UID)
		c.Next()
	}
}

// CallerMatches reports whether the authenticated caller is uid. Requests that
// did not pass through FirebaseAuthMiddleware always match.
func CallerMatches(c *gin.Context, uid string) bool {
	caller, ok := c.Get(AuthUIDKey)
	if !ok {
		return true
	}
	return caller == uid
}
