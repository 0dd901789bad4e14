package security

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

func TestJWTSignerRoundTrip(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralJWTSigner("test-key")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	userID := uuid.New()
	token, err := signer.Sign(ports.AuthClaims{
		UserID:    userID,
		Email:     "user@example.com",
		Role:      "ADMIN",
		Coop:      "ampnet",
		Verified:  true,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := signer.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != userID || claims.Coop != "ampnet" || !claims.Verified || claims.Role != "ADMIN" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.KeyID != "test-key" {
		t.Fatalf("expected kid test-key, got %q", claims.KeyID)
	}
}

func TestJWTSignerRejectsForeignAndExpiredTokens(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralJWTSigner("a")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	other, err := NewEphemeralJWTSigner("b")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	now := time.Now().UTC()

	foreign, _ := other.Sign(ports.AuthClaims{UserID: uuid.New(), IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
	if _, err := signer.ParseAndValidate(foreign); err == nil {
		t.Fatalf("expected foreign token to be rejected")
	}

	expired, _ := signer.Sign(ports.AuthClaims{UserID: uuid.New(), IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)})
	if _, err := signer.ParseAndValidate(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestGoogleIdentityProviderLookup(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/auth",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
			"userinfo_endpoint":      srv.URL + "/userinfo",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            "google-sub-1",
			"email":          "social@example.com",
			"email_verified": true,
			"given_name":     "Ada",
			"family_name":    "Lovelace",
		})
	})

	ctx := context.Background()
	provider, err := NewGoogleIdentityProvider(ctx, srv.URL)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	identity, err := provider.Lookup(ctx, "good-token")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if identity.Email != "social@example.com" || identity.FirstName != "Ada" || identity.LastName != "Lovelace" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if identity.Provider != "google" || identity.Subject != "google-sub-1" || !identity.EmailVerified {
		t.Fatalf("unexpected identity metadata: %+v", identity)
	}

	if _, err := provider.Lookup(ctx, "bad-token"); err == nil {
		t.Fatalf("expected rejected token to fail")
	}
}
