package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/idtoken"

	"onboarding-api/internal/log"
)

var (
	// ErrTokenValidationFailed indicates token validation failed.
	ErrTokenValidationFailed = errors.New("token validation failed")
	// ErrInvalidServiceAccount indicates invalid service account in token.
	ErrInvalidServiceAccount = errors.New("invalid service account in token")
)

// OIDCValidator validates a Google-signed ID token for an audience.
type OIDCValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// OIDCConfig configures OIDCMiddleware.
type OIDCConfig struct {
	// ServiceAccountEmail is the Cloud Tasks caller. Empty disables the check.
	ServiceAccountEmail string
	// Audience is the worker URL the token was minted for.
	Audience string
	// Validate defaults to idtoken.Validate.
	Validate OIDCValidator
}

// OIDCMiddleware verifies Google Cloud OIDC tokens from Cloud Tasks.
func OIDCMiddleware(cfg OIDCConfig) gin.HandlerFunc {
	validate := cfg.Validate
	if validate == nil {
		validate = idtoken.Validate
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		// Development mode: no service account, shared secret only.
		if cfg.ServiceAccountEmail == "" {
			log.Debug(ctx, "Skipping OIDC verification - no service account configured")
			c.Next()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			log.Error(ctx, "Missing or malformed Authorization header for Cloud Tasks request")
			abortWithDetail(c, http.StatusUnauthorized, "authentication required")
			return
		}

		if err := verifyOIDCToken(ctx, validate, token, cfg); err != nil {
			log.Error(ctx, "OIDC token verification failed", "error", err)
			abortWithDetail(c, http.StatusUnauthorized, "token verification failed")
			return
		}

		log.Debug(ctx, "OIDC token verification successful")
		c.Next()
	}
}

func verifyOIDCToken(ctx context.Context, validate OIDCValidator, token string, cfg OIDCConfig) error {
	payload, err := validate(ctx, token, cfg.Audience)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenValidationFailed, err)
	}

	email, ok := payload.Claims["email"].(string)
	if !ok {
		return fmt.Errorf("%w: missing email claim", ErrTokenValidationFailed)
	}
	if email != cfg.ServiceAccountEmail {
		return fmt.Errorf("%w: got %s, expected %s", ErrInvalidServiceAccount, email, cfg.ServiceAccountEmail)
	}
	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return fmt.Errorf("%w: service account email not verified", ErrTokenValidationFailed)
	}

	return nil
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(c *gin.Context) (string, bool) {
	const bearerPrefix = "Bearer "
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	return token, token != ""
}
