package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
)

// BeginResult carries everything the caller must round-trip through the
// browser to complete a federated login: the provider auth URL plus the
// state, nonce, and PKCE verifier bound to this attempt.
type BeginResult struct {
	AuthURL      string
	State        string
	Nonce        string
	PKCEVerifier string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code         string
	State        string
	Nonce        string
	PKCEVerifier string
}

// AuthProvider initiates and completes a federated authentication flow
// against an identity provider.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL together
	// with the state, nonce, and PKCE verifier for this attempt.
	Begin(ctx context.Context) (BeginResult, error)

	// Exchange completes the login flow, verifying nonce and PKCE binding,
	// and returns the authenticated identity. It does not perform directory
	// augmentation; that is the service's concern.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// PasswordAuthenticator verifies local credentials against the backend's
// login endpoint. Implementations must return a uniform invalid-credentials
// error for every failure mode to avoid account enumeration.
type PasswordAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (domainauth.Identity, error)
}

// DirectoryRecord is the typed shape of an upstream directory entry.
// Any field may be absent independently; absent fields are zero-valued.
type DirectoryRecord struct {
	Roles        []string
	Phone        string
	DepartmentID string
}

// DirectoryClient queries the upstream directory of record for a subject's
// declared roles, phone, and department. Directory unavailability is
// non-fatal to sign-in; callers degrade to empty values.
type DirectoryClient interface {
	Lookup(ctx context.Context, subjectID string) (DirectoryRecord, error)
}

// SessionStore persists and retrieves user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}
