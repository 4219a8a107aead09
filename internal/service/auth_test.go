package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
	mocksauth "github.com/DexterMayheww/nit-portal-api/internal/mocks/auth"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

func newTestAuthService(opts AuthServiceOptions) (*AuthService, *mocksauth.MemorySessionStore) {
	sessions := mocksauth.NewMemorySessionStore()
	opts.Sessions = sessions
	return NewAuthService(opts), sessions
}

func TestAuthService_BeginLogin(t *testing.T) {
	svc, _ := newTestAuthService(AuthServiceOptions{
		Provider: mocksauth.NewMockAuthProvider(),
	})

	res, err := svc.BeginLogin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", res.AuthURL)
	assert.NotEmpty(t, res.State)
	assert.NotEmpty(t, res.Nonce)
	assert.NotEmpty(t, res.PKCEVerifier)
}

func TestAuthService_BeginLogin_NoProvider(t *testing.T) {
	svc, _ := newTestAuthService(AuthServiceOptions{})

	_, err := svc.BeginLogin(context.Background())
	assert.Error(t, err)
}

func TestAuthService_CompleteLogin(t *testing.T) {
	provider := mocksauth.NewMockAuthProvider()
	directory := &mocksauth.MockDirectoryClient{
		Records: map[string]ports.DirectoryRecord{
			"mock-user-1": {
				Roles:        []string{"administrator"},
				Phone:        "+911234567890",
				DepartmentID: "cse",
			},
		},
	}
	svc, sessions := newTestAuthService(AuthServiceOptions{
		Provider:  provider,
		Directory: directory,
	})

	sess, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{
		Code: "code", State: "state-1", Nonce: "nonce-1", PKCEVerifier: "verifier-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "mock-user-1", sess.UserID)
	assert.Equal(t, domainauth.RoleAdministrator, sess.Role)
	assert.Equal(t, "+911234567890", sess.Phone)
	assert.Equal(t, "cse", sess.DepartmentID)
	assert.False(t, sess.OTPVerified)

	stored, err := sessions.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, stored)
}

func TestAuthService_CompleteLogin_Validation(t *testing.T) {
	svc, _ := newTestAuthService(AuthServiceOptions{
		Provider: mocksauth.NewMockAuthProvider(),
	})

	tests := []struct {
		name  string
		input CompleteLoginInput
	}{
		{"missing code", CompleteLoginInput{State: "s", Nonce: "n"}},
		{"missing state", CompleteLoginInput{Code: "c", Nonce: "n"}},
		{"missing nonce", CompleteLoginInput{Code: "c", State: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CompleteLogin(context.Background(), tt.input)
			assert.Error(t, err)
		})
	}
}

func TestAuthService_CompleteLogin_ExchangeDenied(t *testing.T) {
	provider := mocksauth.NewMockAuthProvider()
	provider.ExchangeFunc = func(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{}, ports.ErrAccessDenied
	}
	svc, _ := newTestAuthService(AuthServiceOptions{Provider: provider})

	_, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{
		Code: "c", State: "s", Nonce: "n",
	})
	assert.ErrorIs(t, err, ports.ErrAccessDenied)
}

// A directory outage must not abort a federated sign-in: the session is
// established with degraded claims, the role falls back to the default, and
// no phone is on record.
func TestAuthService_CompleteLogin_DirectoryUnavailable(t *testing.T) {
	svc, _ := newTestAuthService(AuthServiceOptions{
		Provider:  mocksauth.NewMockAuthProvider(),
		Directory: &mocksauth.MockDirectoryClient{Err: ports.ErrDirectoryUnavailable},
	})

	sess, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{
		Code: "code", State: "state-1", Nonce: "nonce-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domainauth.RoleFaculty, sess.Role)
	assert.Empty(t, sess.Phone)
	assert.Empty(t, sess.DepartmentID)
	assert.False(t, sess.OTPVerified)
}

// An account whose directory record lists no explicit roles still gets
// department_head from the email naming convention.
func TestAuthService_PasswordLogin_HeadOfDepartmentHeuristic(t *testing.T) {
	passwords := &mocksauth.MockPasswordAuthenticator{
		Accounts: map[string]string{"hod.cs@inst.edu": "secret"},
	}
	directory := &mocksauth.MockDirectoryClient{
		Records: map[string]ports.DirectoryRecord{
			"hod.cs@inst.edu": {Phone: "+911234567890"},
		},
	}
	svc, _ := newTestAuthService(AuthServiceOptions{
		Passwords: passwords,
		Directory: directory,
	})

	sess, err := svc.PasswordLogin(context.Background(), "hod.cs@inst.edu", "secret")
	require.NoError(t, err)

	assert.Equal(t, domainauth.RoleDepartmentHead, sess.Role)
	assert.Equal(t, "+911234567890", sess.Phone)
	assert.False(t, sess.OTPVerified)
}

func TestAuthService_PasswordLogin_InvalidCredentials(t *testing.T) {
	passwords := &mocksauth.MockPasswordAuthenticator{
		Accounts: map[string]string{"user@inst.edu": "secret"},
	}
	svc, _ := newTestAuthService(AuthServiceOptions{Passwords: passwords})

	_, err := svc.PasswordLogin(context.Background(), "user@inst.edu", "wrong")
	assert.ErrorIs(t, err, ports.ErrInvalidCredentials)

	_, err = svc.PasswordLogin(context.Background(), "unknown@inst.edu", "secret")
	assert.ErrorIs(t, err, ports.ErrInvalidCredentials)
}

func TestAuthService_BootstrapAdmin(t *testing.T) {
	provider := mocksauth.NewMockAuthProvider()
	svc, _ := newTestAuthService(AuthServiceOptions{
		Provider:        provider,
		BootstrapAdmins: []string{"mock-user-1"},
	})

	sess, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{
		Code: "code", State: "state-1", Nonce: "nonce-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdministrator, sess.Role)
}

// Every fresh sign-in resets the OTP flag, even when a prior session for the
// same user had already been verified.
func TestAuthService_SessionFlagReset(t *testing.T) {
	directory := &mocksauth.MockDirectoryClient{
		Records: map[string]ports.DirectoryRecord{
			"mock-user-1": {Phone: "+911234567890"},
		},
	}
	svc, sessions := newTestAuthService(AuthServiceOptions{
		Provider:  mocksauth.NewMockAuthProvider(),
		Directory: directory,
	})
	ctx := context.Background()

	first, err := svc.CompleteLogin(ctx, CompleteLoginInput{
		Code: "code", State: "state-1", Nonce: "nonce-1",
	})
	require.NoError(t, err)

	verified, err := svc.MarkOTPVerified(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, verified.OTPVerified)

	second, err := svc.CompleteLogin(ctx, CompleteLoginInput{
		Code: "code", State: "state-2", Nonce: "nonce-2",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, second.OTPVerified)

	stored, err := sessions.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, stored.OTPVerified)
}

func TestAuthService_GetSession_Expired(t *testing.T) {
	svc, sessions := newTestAuthService(AuthServiceOptions{})
	ctx := context.Background()

	require.NoError(t, sessions.Save(ctx, domainauth.Session{
		ID:        "stale",
		UserID:    "user-1",
		Role:      domainauth.RoleFaculty,
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err := svc.GetSession(ctx, "stale")
	require.Error(t, err)

	// The stale record is gone.
	_, err = sessions.Get(ctx, "stale")
	assert.True(t, errors.Is(err, mocksauth.ErrNotFound))
}

func TestAuthService_MarkOTPVerified_UnknownSession(t *testing.T) {
	svc, _ := newTestAuthService(AuthServiceOptions{})

	_, err := svc.MarkOTPVerified(context.Background(), "missing")
	assert.Error(t, err)
}

func TestAuthService_Logout(t *testing.T) {
	svc, sessions := newTestAuthService(AuthServiceOptions{})
	ctx := context.Background()

	require.NoError(t, sessions.Save(ctx, domainauth.Session{
		ID:        "live",
		UserID:    "user-1",
		Role:      domainauth.RoleFaculty,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, svc.Logout(ctx, "live"))
	_, err := sessions.Get(ctx, "live")
	assert.Error(t, err)

	// Logging out an absent session is a no-op.
	assert.NoError(t, svc.Logout(ctx, ""))
}

func TestAuthService_AuditTrail(t *testing.T) {
	audit := &mocksauth.MemoryAuditRecorder{}
	passwords := &mocksauth.MockPasswordAuthenticator{
		Accounts: map[string]string{"user@inst.edu": "secret"},
	}
	svc, _ := newTestAuthService(AuthServiceOptions{
		Passwords: passwords,
		Audit:     audit,
	})
	ctx := context.Background()

	_, err := svc.PasswordLogin(ctx, "user@inst.edu", "wrong")
	require.ErrorIs(t, err, ports.ErrInvalidCredentials)

	_, err = svc.PasswordLogin(ctx, "user@inst.edu", "secret")
	require.NoError(t, err)

	events := audit.Events()
	require.Len(t, events, 2)
	assert.Equal(t, ports.AuditEventSignIn, events[0].Event)
	assert.False(t, events[0].Success)
	assert.True(t, events[1].Success)
	assert.Equal(t, "local", events[1].Provider)
}
