package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maribelle/backoffice/internal/domain"
)

// Verifier resolves a bearer token to an authenticated user.
type Verifier interface {
	GetUser(ctx context.Context, token string) (*domain.AuthUser, error)
}

// SupabaseVerifier verifies tokens against the Supabase auth endpoint
// (GET /auth/v1/user). Customers authenticate on the storefront through
// Supabase; this service only ever sees their access tokens.
type SupabaseVerifier struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// Compile-time check that SupabaseVerifier implements Verifier.
var _ Verifier = (*SupabaseVerifier)(nil)

// NewSupabaseVerifier creates a verifier for the given Supabase project.
func NewSupabaseVerifier(projectURL, anonKey string) *SupabaseVerifier {
	return &SupabaseVerifier{
		baseURL: strings.TrimSuffix(projectURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetUser resolves the token's user. Any auth failure, including an expired
// or malformed token, comes back as a single Unauthorized error.
func (v *SupabaseVerifier) GetUser(ctx context.Context, token string) (*domain.AuthUser, error) {
	if token == "" {
		return nil, domain.Unauthorized("auth.get_user", "Unauthorized")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.anonKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, domain.Internal(err, "auth.get_user", "auth provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, domain.Unauthorized("auth.get_user", "Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, domain.Internal(
			fmt.Errorf("auth provider returned %d: %s", resp.StatusCode, string(body)),
			"auth.get_user", "auth provider request failed")
	}

	var payload struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.Internal(err, "auth.get_user", "failed to decode auth response")
	}
	if payload.ID == "" {
		return nil, domain.Unauthorized("auth.get_user", "Unauthorized")
	}

	return &domain.AuthUser{
		ID:    payload.ID,
		Email: payload.Email,
		Phone: payload.Phone,
	}, nil
}
