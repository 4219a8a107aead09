package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
	mocksauth "github.com/DexterMayheww/nit-portal-api/internal/mocks/auth"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

type otpFixture struct {
	svc        *OTPService
	challenges *mocksauth.MemoryChallengeStore
	sender     *mocksauth.MockCodeSender
	sessions   *mocksauth.MemorySessionStore
}

func newOTPFixture(t *testing.T, opts OTPServiceOptions) *otpFixture {
	t.Helper()
	f := &otpFixture{
		challenges: mocksauth.NewMemoryChallengeStore(),
		sender:     &mocksauth.MockCodeSender{},
		sessions:   mocksauth.NewMemorySessionStore(),
	}
	opts.Challenges = f.challenges
	opts.Sender = f.sender
	// Verification goes through a real auth service so the session flag has
	// the same single writer path as production wiring.
	opts.Sessions = NewAuthService(AuthServiceOptions{Sessions: f.sessions})
	f.svc = NewOTPService(opts)
	return f
}

func sessionWithPhone(phone string) domainauth.Session {
	return domainauth.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		Email:     "user@inst.edu",
		Role:      domainauth.RoleFaculty,
		Phone:     phone,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func TestOTPService_SendAndVerify(t *testing.T) {
	f := newOTPFixture(t, OTPServiceOptions{})
	ctx := context.Background()
	sess := sessionWithPhone("+911234567890")
	require.NoError(t, f.sessions.Save(ctx, sess))

	require.NoError(t, f.svc.Send(ctx, sess))

	code, ok := f.sender.LastCode("+911234567890")
	require.True(t, ok)
	assert.Regexp(t, sixDigits, code)

	// Wrong guess consumes one attempt and keeps the challenge live.
	_, err := f.svc.Verify(ctx, sess, "000000")
	assert.ErrorIs(t, err, ports.ErrCodeMismatch)

	live, ok := f.challenges.Live("+911234567890")
	require.True(t, ok)
	assert.Equal(t, 2, live.AttemptsRemaining)

	// Correct code flips the session flag server-side.
	updated, err := f.svc.Verify(ctx, sess, code)
	require.NoError(t, err)
	assert.True(t, updated.OTPVerified)

	stored, err := f.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.OTPVerified)

	// The challenge is destroyed on success.
	_, ok = f.challenges.Live("+911234567890")
	assert.False(t, ok)
}

func TestOTPService_AttemptExhaustion(t *testing.T) {
	f := newOTPFixture(t, OTPServiceOptions{AttemptLimit: 3})
	ctx := context.Background()
	sess := sessionWithPhone("+911234567890")
	require.NoError(t, f.sessions.Save(ctx, sess))

	require.NoError(t, f.svc.Send(ctx, sess))
	code, ok := f.sender.LastCode(sess.Phone)
	require.True(t, ok)

	_, err := f.svc.Verify(ctx, sess, "999001")
	assert.ErrorIs(t, err, ports.ErrCodeMismatch)
	_, err = f.svc.Verify(ctx, sess, "999002")
	assert.ErrorIs(t, err, ports.ErrCodeMismatch)

	// Third consecutive miss spends the budget.
	_, err = f.svc.Verify(ctx, sess, "999003")
	assert.ErrorIs(t, err, ports.ErrAttemptsExhausted)

	// Even the originally correct code is dead until a fresh send.
	_, err = f.svc.Verify(ctx, sess, code)
	assert.ErrorIs(t, err, ports.ErrChallengeNotFound)

	require.NoError(t, f.svc.Send(ctx, sess))
	fresh, ok := f.sender.LastCode(sess.Phone)
	require.True(t, ok)
	_, err = f.svc.Verify(ctx, sess, fresh)
	assert.NoError(t, err)
}

func TestOTPService_NoPhoneOnRecord(t *testing.T) {
	f := newOTPFixture(t, OTPServiceOptions{})
	ctx := context.Background()
	sess := sessionWithPhone("")

	assert.ErrorIs(t, f.svc.Send(ctx, sess), ErrNoPhoneOnRecord)
	assert.ErrorIs(t, f.svc.Resend(ctx, sess), ErrNoPhoneOnRecord)

	_, err := f.svc.Verify(ctx, sess, "123456")
	assert.ErrorIs(t, err, ErrNoPhoneOnRecord)
}

func TestOTPService_ResendSupersedes(t *testing.T) {
	f := newOTPFixture(t, OTPServiceOptions{})
	ctx := context.Background()
	sess := sessionWithPhone("+911234567890")
	require.NoError(t, f.sessions.Save(ctx, sess))

	require.NoError(t, f.svc.Send(ctx, sess))
	first, ok := f.sender.LastCode(sess.Phone)
	require.True(t, ok)

	require.NoError(t, f.svc.Resend(ctx, sess))
	second, ok := f.sender.LastCode(sess.Phone)
	require.True(t, ok)

	if first == second {
		t.Skip("codes collided; superseding cannot be distinguished")
	}

	// The superseded code no longer matches.
	_, err := f.svc.Verify(ctx, sess, first)
	assert.ErrorIs(t, err, ports.ErrCodeMismatch)

	_, err = f.svc.Verify(ctx, sess, second)
	assert.NoError(t, err)
}

func TestOTPService_ResendThrottled(t *testing.T) {
	f := newOTPFixture(t, OTPServiceOptions{ResendCooldown: time.Minute})
	ctx := context.Background()
	sess := sessionWithPhone("+911234567890")

	require.NoError(t, f.svc.Send(ctx, sess))
	require.NoError(t, f.svc.Resend(ctx, sess))

	err := f.svc.Resend(ctx, sess)
	assert.ErrorIs(t, err, ErrResendThrottled)

	// Throttling is per phone.
	other := sessionWithPhone("+911234500000")
	other.ID = "sess-2"
	assert.NoError(t, f.svc.Resend(ctx, other))
}

func TestOTPService_Expiry(t *testing.T) {
	f := newOTPFixture(t, OTPServiceOptions{TTL: 5 * time.Minute})
	ctx := context.Background()
	sess := sessionWithPhone("+911234567890")

	require.NoError(t, f.svc.Send(ctx, sess))
	code, ok := f.sender.LastCode(sess.Phone)
	require.True(t, ok)

	// Move the store clock past the expiry window; attempts remain but the
	// challenge is void.
	f.challenges.Now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	_, err := f.svc.Verify(ctx, sess, code)
	assert.ErrorIs(t, err, ports.ErrChallengeNotFound)
}

func TestOTPService_DeliveryFailureDropsChallenge(t *testing.T) {
	f := newOTPFixture(t, OTPServiceOptions{})
	f.sender.Err = errors.New("gateway down")
	ctx := context.Background()
	sess := sessionWithPhone("+911234567890")

	err := f.svc.Send(ctx, sess)
	require.Error(t, err)

	_, ok := f.challenges.Live(sess.Phone)
	assert.False(t, ok, "undelivered challenge must not stay live")
}

// recordingVerifier captures MarkOTPVerified calls so tests can assert that
// the OTP service never flips the session flag itself.
type recordingVerifier struct {
	calls   []string
	session domainauth.Session
}

func (v *recordingVerifier) MarkOTPVerified(_ context.Context, sessionID string) (*domainauth.Session, error) {
	v.calls = append(v.calls, sessionID)
	updated := v.session
	updated.OTPVerified = true
	return &updated, nil
}

func TestOTPService_VerifyDelegatesFlagToAuthService(t *testing.T) {
	challenges := mocksauth.NewMemoryChallengeStore()
	sender := &mocksauth.MockCodeSender{}
	sess := sessionWithPhone("+911234567890")
	verifier := &recordingVerifier{session: sess}

	svc := NewOTPService(OTPServiceOptions{
		Challenges: challenges,
		Sender:     sender,
		Sessions:   verifier,
	})
	ctx := context.Background()

	require.NoError(t, svc.Send(ctx, sess))
	code, ok := sender.LastCode(sess.Phone)
	require.True(t, ok)

	// A wrong guess never touches the session.
	_, err := svc.Verify(ctx, sess, "000000")
	assert.ErrorIs(t, err, ports.ErrCodeMismatch)
	assert.Empty(t, verifier.calls)

	updated, err := svc.Verify(ctx, sess, code)
	require.NoError(t, err)
	assert.True(t, updated.OTPVerified)

	// The auth service is the only writer of the flag, keyed by session ID.
	assert.Equal(t, []string{sess.ID}, verifier.calls)
}

func TestOTPService_CodeNeverInAudit(t *testing.T) {
	audit := &mocksauth.MemoryAuditRecorder{}
	f := newOTPFixture(t, OTPServiceOptions{Audit: audit})
	ctx := context.Background()
	sess := sessionWithPhone("+911234567890")
	require.NoError(t, f.sessions.Save(ctx, sess))

	require.NoError(t, f.svc.Send(ctx, sess))
	code, ok := f.sender.LastCode(sess.Phone)
	require.True(t, ok)
	_, err := f.svc.Verify(ctx, sess, code)
	require.NoError(t, err)

	for _, event := range audit.Events() {
		assert.NotContains(t, event.Detail, code)
	}
}
