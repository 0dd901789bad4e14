package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type AuthClaims struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Coop      string    `json:"coop"`
	Verified  bool      `json:"verified"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	KeyID     string    `json:"kid"`
}

type TokenSigner interface {
	Sign(claims AuthClaims) (string, error)
	ParseAndValidate(token string) (AuthClaims, error)
	PublicJWKs() ([]map[string]any, error)
}

// WebhookVerdict is the outcome of a webhook signature check.
type WebhookVerdict struct {
	Authentic bool
	// Reason is "bad-client-id" or "bad-signature" when the verdict is a rejection.
	Reason string
}

const (
	RejectBadClientID  = "bad-client-id"
	RejectBadSignature = "bad-signature"
)

// WebhookVerifier authenticates a raw webhook body. Implementations must be pure
// and must not panic on malformed input.
type WebhookVerifier interface {
	Verify(body []byte, clientID, signature string) WebhookVerdict
}

// SocialIdentity is what a social provider returns for an access token.
type SocialIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
}

type SocialIdentityProvider interface {
	Lookup(ctx context.Context, accessToken string) (SocialIdentity, error)
}
