package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider  ports.AuthProvider
	Passwords ports.PasswordAuthenticator
	Directory ports.DirectoryClient
	Sessions  ports.SessionStore

	// BootstrapAdmins are subject IDs granted administrator regardless of
	// directory content.
	BootstrapAdmins []string
	// SessionDuration caps session lifetime when the provider identity
	// carries no expiry of its own. Default 8h.
	SessionDuration time.Duration

	// Optional
	Audit  ports.AuditRecorder
	Logger *slog.Logger
}

// AuthService orchestrates sign-in flows: it completes the provider exchange,
// augments the identity from the directory, resolves the canonical role, and
// persists the session. Both the federated and the local-credentials paths
// converge on the same augmentation and session minting.
type AuthService struct {
	provider        ports.AuthProvider
	passwords       ports.PasswordAuthenticator
	directory       ports.DirectoryClient
	sessions        ports.SessionStore
	bootstrapAdmins []string
	sessionDuration time.Duration
	audit           ports.AuditRecorder
	logger          *slog.Logger
}

var errSessionExpired = errors.New("session expired")

// ErrSessionNotFound is returned when no live session exists for the ID.
var ErrSessionNotFound = errors.New("session not found")

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	dur := opts.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		provider:        opts.Provider,
		passwords:       opts.Passwords,
		directory:       opts.Directory,
		sessions:        opts.Sessions,
		bootstrapAdmins: opts.BootstrapAdmins,
		sessionDuration: dur,
		audit:           opts.Audit,
		logger:          logger,
	}
}

// BeginLogin initiates a federated authentication flow and returns the
// provider auth URL with the state, nonce, and PKCE verifier bound to it.
func (s *AuthService) BeginLogin(ctx context.Context) (ports.BeginResult, error) {
	if s.provider == nil {
		return ports.BeginResult{}, errors.New("federated sign-in is not configured")
	}
	res, err := s.provider.Begin(ctx)
	if err != nil {
		return ports.BeginResult{}, fmt.Errorf("begin auth flow: %w", err)
	}
	return res, nil
}

// CompleteLoginInput groups parameters for completing a federated login flow.
type CompleteLoginInput struct {
	Code         string
	State        string
	Nonce        string
	PKCEVerifier string
}

// CompleteLogin completes a federated authentication flow by exchanging the
// code for an identity, augmenting it from the directory, resolving the role,
// and persisting a session.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (domainauth.Session, error) {
	if s.provider == nil {
		return domainauth.Session{}, errors.New("federated sign-in is not configured")
	}
	if input.Code == "" {
		return domainauth.Session{}, errors.New("authorization code is required")
	}
	if input.State == "" {
		return domainauth.Session{}, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return domainauth.Session{}, errors.New("nonce parameter is required")
	}

	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:         input.Code,
		State:        input.State,
		Nonce:        input.Nonce,
		PKCEVerifier: input.PKCEVerifier,
	})
	if err != nil {
		s.record(ctx, ports.AuditEvent{
			Event: ports.AuditEventSignIn, Provider: "federated", Detail: "exchange failed",
		})
		return domainauth.Session{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	sess, err := s.establishSession(ctx, identity, "federated")
	if err != nil {
		return domainauth.Session{}, err
	}
	return sess, nil
}

// PasswordLogin verifies local credentials and establishes a session through
// the same augmentation path as the federated flow. All credential failures
// surface as ports.ErrInvalidCredentials.
func (s *AuthService) PasswordLogin(ctx context.Context, email, password string) (domainauth.Session, error) {
	if s.passwords == nil {
		return domainauth.Session{}, errors.New("local sign-in is not configured")
	}

	identity, err := s.passwords.Authenticate(ctx, email, password)
	if err != nil {
		s.record(ctx, ports.AuditEvent{
			Actor: email, Event: ports.AuditEventSignIn, Provider: "local", Detail: "invalid credentials",
		})
		if errors.Is(err, ports.ErrInvalidCredentials) {
			return domainauth.Session{}, err
		}
		return domainauth.Session{}, fmt.Errorf("authenticate credentials: %w", err)
	}

	return s.establishSession(ctx, identity, "local")
}

// establishSession augments the identity from the directory, resolves the
// canonical role, and persists a fresh session with OTPVerified unset.
func (s *AuthService) establishSession(ctx context.Context, identity domainauth.Identity, provider string) (domainauth.Session, error) {
	identity = s.augment(ctx, identity)

	role := domainauth.Resolve(domainauth.ResolveInput{
		SubjectID:       identity.UserID,
		DeclaredRoles:   identity.DeclaredRoles,
		Email:           identity.Email,
		DisplayName:     identity.DisplayName,
		BootstrapAdmins: s.bootstrapAdmins,
	})

	expiresAt := identity.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(s.sessionDuration)
	}

	session := domainauth.Session{
		ID:           uuid.NewString(),
		UserID:       identity.UserID,
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
		Role:         role,
		DepartmentID: identity.DepartmentID,
		Phone:        identity.Phone,
		OTPVerified:  false,
		ExpiresAt:    expiresAt,
	}

	if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", saveErr)
	}

	s.record(ctx, ports.AuditEvent{
		Actor: identity.UserID, Event: ports.AuditEventSignIn, Provider: provider, Success: true,
	})
	return session, nil
}

// augment merges the directory record for the subject into the identity.
// Directory unavailability is non-fatal: sign-in proceeds with whatever the
// provider supplied and role resolution falls through to heuristics.
func (s *AuthService) augment(ctx context.Context, identity domainauth.Identity) domainauth.Identity {
	if s.directory == nil {
		return identity
	}

	record, err := s.directory.Lookup(ctx, identity.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "directory lookup failed, continuing with degraded claims",
			"subject_id", identity.UserID, "error", err)
		return identity
	}

	if len(record.Roles) > 0 {
		identity.DeclaredRoles = record.Roles
	}
	if record.Phone != "" {
		identity.Phone = record.Phone
	}
	if record.DepartmentID != "" {
		identity.DepartmentID = record.DepartmentID
	}
	return identity
}

// GetSession retrieves a session by ID.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	// Check if session is expired
	if time.Now().After(session.ExpiresAt) {
		// Clean up expired session
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(errSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, errSessionExpired
	}

	return &session, nil
}

// MarkOTPVerified flips the session's OTP flag after a successful challenge
// verification. This is the only path that sets the flag; it never trusts a
// client-supplied value.
func (s *AuthService) MarkOTPVerified(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session.OTPVerified = true
	if saveErr := s.sessions.Save(ctx, *session); saveErr != nil {
		return nil, fmt.Errorf("save session: %w", saveErr)
	}
	return session, nil
}

// Logout removes a session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil // Nothing to logout
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.record(ctx, ports.AuditEvent{Event: ports.AuditEventSignOut, Success: true})
	return nil
}

// record writes an audit event best-effort.
func (s *AuthService) record(ctx context.Context, event ports.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", "event", event.Event, "error", err)
	}
}
