package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
	domainotp "github.com/DexterMayheww/nit-portal-api/internal/domain/otp"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

func TestMockAuthProvider_Begin_Defaults(t *testing.T) {
	provider := NewMockAuthProvider()
	ctx := context.Background()

	first, err := provider.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", first.AuthURL)
	assert.Equal(t, "state-1", first.State)
	assert.Equal(t, "nonce-1", first.Nonce)
	assert.Equal(t, "verifier-1", first.PKCEVerifier)

	second, err := provider.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "state-2", second.State)
	assert.Equal(t, "nonce-2", second.Nonce)
}

func TestMockAuthProvider_Exchange_Defaults(t *testing.T) {
	provider := NewMockAuthProvider()

	identity, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "code"})
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", identity.UserID)
	assert.Equal(t, "mock.user@institute.edu", identity.Email)
	assert.True(t, identity.ExpiresAt.After(time.Now()))
}

func TestMockAuthProvider_FuncOverrides(t *testing.T) {
	provider := &MockAuthProvider{
		BeginFunc: func(context.Context) (ports.BeginResult, error) {
			return ports.BeginResult{AuthURL: "https://custom-idp/login", State: "s"}, nil
		},
	}

	result, err := provider.Begin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://custom-idp/login", result.AuthURL)
	assert.Equal(t, "s", result.State)
}

func TestMockPasswordAuthenticator(t *testing.T) {
	authn := &MockPasswordAuthenticator{
		Accounts: map[string]string{"jdoe@inst.edu": "hunter2"},
	}

	identity, err := authn.Authenticate(context.Background(), "jdoe@inst.edu", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "jdoe@inst.edu", identity.Email)

	_, err = authn.Authenticate(context.Background(), "jdoe@inst.edu", "wrong")
	assert.ErrorIs(t, err, ports.ErrInvalidCredentials)

	_, err = authn.Authenticate(context.Background(), "nobody@inst.edu", "hunter2")
	assert.ErrorIs(t, err, ports.ErrInvalidCredentials)
}

func TestMockDirectoryClient(t *testing.T) {
	client := &MockDirectoryClient{
		Records: map[string]ports.DirectoryRecord{
			"u-100": {Phone: "+15550001111", Roles: []string{"faculty"}},
		},
	}

	record, err := client.Lookup(context.Background(), "u-100")
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", record.Phone)

	// Unknown subjects resolve to an empty record, not an error.
	record, err = client.Lookup(context.Background(), "u-missing")
	require.NoError(t, err)
	assert.Empty(t, record.Phone)

	client.Err = ports.ErrDirectoryUnavailable
	_, err = client.Lookup(context.Background(), "u-100")
	assert.ErrorIs(t, err, ports.ErrDirectoryUnavailable)
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	sess := domainauth.Session{ID: "sess-1", Email: "jdoe@inst.edu", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.Email, got.Email)

	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.Error(t, store.Save(ctx, domainauth.Session{}))
}

func TestMemoryChallengeStore_ConsumeSemantics(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	ch := domainotp.Challenge{
		Phone:             "+15550001111",
		Code:              "123456",
		ExpiresAt:         time.Now().Add(5 * time.Minute),
		AttemptsRemaining: 2,
	}
	require.NoError(t, store.Replace(ctx, ch))

	// Wrong code burns an attempt.
	err := store.Consume(ctx, ch.Phone, "000000")
	assert.ErrorIs(t, err, ports.ErrCodeMismatch)

	// Second wrong code exhausts the budget and removes the challenge.
	err = store.Consume(ctx, ch.Phone, "000000")
	assert.ErrorIs(t, err, ports.ErrAttemptsExhausted)

	err = store.Consume(ctx, ch.Phone, ch.Code)
	assert.ErrorIs(t, err, ports.ErrChallengeNotFound)
}

func TestMemoryChallengeStore_CorrectCodeConsumes(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	ch := domainotp.Challenge{
		Phone:             "+15550001111",
		Code:              "123456",
		ExpiresAt:         time.Now().Add(5 * time.Minute),
		AttemptsRemaining: 3,
	}
	require.NoError(t, store.Replace(ctx, ch))

	require.NoError(t, store.Consume(ctx, ch.Phone, ch.Code))

	_, live := store.Live(ch.Phone)
	assert.False(t, live, "challenge should be gone after successful verify")
}

func TestMemoryChallengeStore_ExpiredLooksMissing(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	ch := domainotp.Challenge{
		Phone:             "+15550001111",
		Code:              "123456",
		ExpiresAt:         time.Now().Add(5 * time.Minute),
		AttemptsRemaining: 3,
	}
	require.NoError(t, store.Replace(ctx, ch))

	store.Now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	err := store.Consume(ctx, ch.Phone, ch.Code)
	assert.ErrorIs(t, err, ports.ErrChallengeNotFound)
}

func TestMockCodeSender(t *testing.T) {
	sender := &MockCodeSender{}
	ctx := context.Background()

	require.NoError(t, sender.Send(ctx, "+15550001111", "111111"))
	require.NoError(t, sender.Send(ctx, "+15550001111", "222222"))

	code, ok := sender.LastCode("+15550001111")
	require.True(t, ok)
	assert.Equal(t, "222222", code)

	assert.Len(t, sender.Sent(), 2)

	_, ok = sender.LastCode("+15559999999")
	assert.False(t, ok)
}

func TestMemoryAuditRecorder(t *testing.T) {
	recorder := &MemoryAuditRecorder{}
	ctx := context.Background()

	require.NoError(t, recorder.Record(ctx, ports.AuditEvent{Actor: "jdoe@inst.edu", Event: "login", Success: true}))
	events := recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "login", events[0].Event)

	recorder.Err = assert.AnError
	assert.Error(t, recorder.Record(ctx, ports.AuditEvent{}))
}
