package services

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	"onboarding-api/internal/log"
)

// FirebaseIdentityService talks to Firebase Authentication.
type FirebaseIdentityService struct {
	client *auth.Client
}

// NewFirebaseIdentityService creates a FirebaseIdentityService.
func NewFirebaseIdentityService(client *auth.Client) *FirebaseIdentityService {
	return &FirebaseIdentityService{client: client}
}

// SetCustomClaims replaces the custom claims on a Firebase user.
func (s *FirebaseIdentityService) SetCustomClaims(ctx context.Context, uid string, claims map[string]interface{}) error {
	if err := s.client.SetCustomUserClaims(ctx, uid, claims); err != nil {
		log.Error(ctx, "Failed to set custom claims",
			"error", err,
			"user_id", uid,
			"operation", "set_custom_claims",
		)
		return fmt.Errorf("failed to set custom claims for %s: %w", uid, err)
	}
	return nil
}

// VerifyIDToken checks a Firebase ID token and returns its decoded form.
func (s *FirebaseIdentityService) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	return s.client.VerifyIDToken(ctx, idToken)
}
