package auth

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"

	"github.com/goldenyears/premium-api/internal/pkg/billing"
	"github.com/goldenyears/premium-api/internal/pkg/env"
	"github.com/goldenyears/premium-api/internal/pkg/principal"
)

const verifyTimeout = 10 * time.Second

// TokenVerifier verifies a bearer ID token and returns the caller identity.
// Implementations must reject missing, malformed, expired and
// signature-invalid tokens uniformly.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (principal.Principal, error)
}

// FirebaseVerifier verifies Firebase ID tokens via the Admin SDK.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier initializes the Firebase app with application-default
// credentials and the configured project ID.
func NewFirebaseVerifier(ctx context.Context) (*FirebaseVerifier, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID: env.GetEnv("FIREBASE_PROJECT_ID", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify checks the ID token and extracts the caller's UID and email. Every
// verification failure collapses to ErrUnauthenticated so callers cannot
// probe which check failed.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (principal.Principal, error) {
	if strings.TrimSpace(idToken) == "" {
		return principal.Principal{}, billing.ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		log.Printf("auth: token verification failed: %v", err)
		return principal.Principal{}, billing.ErrUnauthenticated
	}

	email := ""
	if e, ok := token.Claims["email"].(string); ok {
		email = e
	}
	return principal.Principal{UID: token.UID, Email: email}, nil
}
