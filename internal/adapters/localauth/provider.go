package localauth

// Package localauth implements the PasswordAuthenticator port against the
// backend's local login verification endpoint.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

const defaultTimeout = 10 * time.Second

// Config holds configuration for the local credentials provider.
type Config struct {
	// LoginURL is the backend endpoint that verifies {identifier, secret}.
	LoginURL string
	// SessionDuration bounds the minted session lifetime. Default 8h.
	SessionDuration time.Duration
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// Provider verifies email/password against the backend login endpoint.
// Every failure mode (wrong password, unknown user, backend unreachable)
// surfaces as the same ports.ErrInvalidCredentials so the error surface
// cannot be used for account enumeration.
type Provider struct {
	loginURL        string
	sessionDuration time.Duration
	httpClient      *http.Client
	logger          *slog.Logger
}

// NewProvider constructs a credentials provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.LoginURL == "" {
		return nil, errors.New("login URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		loginURL:        cfg.LoginURL,
		sessionDuration: dur,
		httpClient:      httpClient,
		logger:          logger,
	}, nil
}

// loginRequest is the backend login verification payload.
type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// loginResponse is the backend's success payload.
type loginResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Authenticate submits the credentials and maps the result to an Identity.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if email == "" || password == "" {
		return domainauth.Identity{}, ports.ErrInvalidCredentials
	}

	body, err := json.Marshal(loginRequest{Identifier: email, Secret: password})
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.loginURL, bytes.NewReader(body))
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Log the real cause server-side; the caller only sees the
		// uniform failure.
		p.logger.WarnContext(ctx, "local login request failed", "error", err)
		return domainauth.Identity{}, ports.ErrInvalidCredentials
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.logger.WarnContext(ctx, "close login response body failed", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domainauth.Identity{}, ports.ErrInvalidCredentials
	}

	var payload loginResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		p.logger.WarnContext(ctx, "decode login response failed", "error", decodeErr)
		return domainauth.Identity{}, ports.ErrInvalidCredentials
	}
	if payload.ID == "" {
		return domainauth.Identity{}, ports.ErrInvalidCredentials
	}

	identity := domainauth.Identity{
		UserID:      payload.ID,
		Email:       payload.Email,
		DisplayName: payload.Name,
		ExpiresAt:   time.Now().Add(p.sessionDuration),
	}
	if identity.Email == "" {
		identity.Email = email
	}
	return identity, nil
}
