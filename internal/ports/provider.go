package ports

import (
	"context"

	"github.com/google/uuid"
)

// CreateProviderSessionRequest is sent to the verification provider.
type CreateProviderSessionRequest struct {
	UserID      uuid.UUID
	VendorData  string
	CallbackURL string
	FirstName   string
	LastName    string
}

// ProviderSession describes a session freshly created by the provider.
type ProviderSession struct {
	ID         string
	URL        string
	VendorData string
	Host       string
	Status     string
}

// ProviderDecision is the decision as reported by the provider API.
type ProviderDecision struct {
	SessionID      string
	Status         string
	Code           *int
	Reason         *string
	ReasonCode     *int
	VendorData     string
	AcceptanceTime string
	DecisionTime   *string
}

// VerificationProvider is the synchronous boundary to the external KYC API.
// Any transport failure or non-2xx answer is reported as domain.ErrProviderUnavailable.
// FetchDecision returns domain.ErrNotFound when the provider has no decision yet.
type VerificationProvider interface {
	CreateSession(ctx context.Context, req CreateProviderSessionRequest) (ProviderSession, error)
	FetchDecision(ctx context.Context, sessionID string) (ProviderDecision, error)
}
