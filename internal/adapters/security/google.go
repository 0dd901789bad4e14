package security

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
	"golang.org/x/oauth2"
)

const (
	GoogleIssuer       = "https://accounts.google.com"
	googleProviderName = "google"
)

// GoogleIdentityProvider resolves a Google access token through the OIDC userinfo endpoint.
type GoogleIdentityProvider struct {
	provider *oidc.Provider
}

// NewGoogleIdentityProvider runs OIDC discovery against issuer once at startup.
func NewGoogleIdentityProvider(ctx context.Context, issuer string) (*GoogleIdentityProvider, error) {
	if strings.TrimSpace(issuer) == "" {
		issuer = GoogleIssuer
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}
	return &GoogleIdentityProvider{provider: provider}, nil
}

func (g *GoogleIdentityProvider) Lookup(ctx context.Context, accessToken string) (ports.SocialIdentity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return ports.SocialIdentity{}, errors.New("access token is required")
	}
	info, err := g.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return ports.SocialIdentity{}, fmt.Errorf("google userinfo: %w", err)
	}

	var claims struct {
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := info.Claims(&claims); err != nil {
		return ports.SocialIdentity{}, fmt.Errorf("google userinfo claims: %w", err)
	}
	if info.Subject == "" || info.Email == "" {
		return ports.SocialIdentity{}, errors.New("google userinfo missing required claims")
	}

	return ports.SocialIdentity{
		Provider:      googleProviderName,
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		FirstName:     claims.GivenName,
		LastName:      claims.FamilyName,
	}, nil
}
