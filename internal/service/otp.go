package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
	domainotp "github.com/DexterMayheww/nit-portal-api/internal/domain/otp"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

// Errors surfaced by the OTP service in addition to the store sentinels.
var (
	// ErrNoPhoneOnRecord means the session carries no phone, so the second
	// factor cannot be completed; the user needs out-of-band remediation.
	ErrNoPhoneOnRecord = errors.New("no phone on record")
	// ErrResendThrottled means the per-phone resend cooldown has not elapsed.
	ErrResendThrottled = errors.New("otp resend throttled")
)

// SessionVerifier marks a session as second-factor verified. AuthService is
// the one implementation; OTPService delegates so the flag has a single
// writer path.
type SessionVerifier interface {
	MarkOTPVerified(ctx context.Context, sessionID string) (*domainauth.Session, error)
}

// OTPServiceOptions groups dependencies for OTPService.
type OTPServiceOptions struct {
	Challenges ports.ChallengeStore
	Sender     ports.CodeSender
	Sessions   SessionVerifier

	// TTL is the challenge expiry window. Default 5m.
	TTL time.Duration
	// AttemptLimit is the wrong-guess budget per challenge. Default 3.
	AttemptLimit int
	// ResendCooldown is the minimum gap between resends per phone.
	// Zero disables throttling.
	ResendCooldown time.Duration

	// Optional
	Audit  ports.AuditRecorder
	Logger *slog.Logger
}

// OTPService owns the phone challenge lifecycle: it issues codes, hands them
// to the messaging gateway, verifies submissions, and on success flips the
// session's OTP flag. At most one live challenge exists per phone.
type OTPService struct {
	challenges ports.ChallengeStore
	sender     ports.CodeSender
	sessions   SessionVerifier

	ttl          time.Duration
	attemptLimit int
	cooldown     time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	audit  ports.AuditRecorder
	logger *slog.Logger
}

// NewOTPService constructs a new OTPService.
func NewOTPService(opts OTPServiceOptions) *OTPService {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	limit := opts.AttemptLimit
	if limit == 0 {
		limit = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OTPService{
		challenges:   opts.Challenges,
		sender:       opts.Sender,
		sessions:     opts.Sessions,
		ttl:          ttl,
		attemptLimit: limit,
		cooldown:     opts.ResendCooldown,
		limiters:     make(map[string]*rate.Limiter),
		audit:        opts.Audit,
		logger:       logger,
	}
}

// Send issues a fresh challenge for the session's phone and hands the code to
// the messaging gateway. Any live challenge for the phone is superseded. The
// code never appears in the return value or logs.
func (s *OTPService) Send(ctx context.Context, sess domainauth.Session) error {
	return s.issue(ctx, sess, ports.AuditEventOTPSend)
}

// Resend is Send behind a per-phone cooldown so the gateway cannot be used to
// spam a number.
func (s *OTPService) Resend(ctx context.Context, sess domainauth.Session) error {
	if !sess.HasPhone() {
		return ErrNoPhoneOnRecord
	}
	if s.cooldown > 0 && !s.limiter(sess.Phone).Allow() {
		return ErrResendThrottled
	}
	return s.issue(ctx, sess, ports.AuditEventOTPResend)
}

func (s *OTPService) issue(ctx context.Context, sess domainauth.Session, event string) error {
	if !sess.HasPhone() {
		return ErrNoPhoneOnRecord
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	now := time.Now()
	challenge := domainotp.Challenge{
		Phone:             sess.Phone,
		Code:              code,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.ttl),
		AttemptsRemaining: s.attemptLimit,
	}

	if replaceErr := s.challenges.Replace(ctx, challenge); replaceErr != nil {
		return fmt.Errorf("store challenge: %w", replaceErr)
	}

	if sendErr := s.sender.Send(ctx, sess.Phone, code); sendErr != nil {
		// A challenge whose code never reached the user is dead weight;
		// drop it so the next send starts clean.
		if delErr := s.challenges.Delete(ctx, sess.Phone); delErr != nil {
			s.logger.WarnContext(ctx, "cleanup undelivered challenge failed", "error", delErr)
		}
		s.record(ctx, ports.AuditEvent{Actor: sess.UserID, Event: event, Detail: "delivery failed"})
		return fmt.Errorf("deliver code: %w", sendErr)
	}

	s.record(ctx, ports.AuditEvent{Actor: sess.UserID, Event: event, Success: true})
	return nil
}

// Verify checks the submitted code against the live challenge for the
// session's phone. A match destroys the challenge, flips the session's OTP
// flag server-side, and returns the updated session. Failures surface the
// store sentinels: ErrCodeMismatch, ErrAttemptsExhausted, or
// ErrChallengeNotFound for a missing or expired challenge.
func (s *OTPService) Verify(ctx context.Context, sess domainauth.Session, submitted string) (domainauth.Session, error) {
	if !sess.HasPhone() {
		return domainauth.Session{}, ErrNoPhoneOnRecord
	}
	submitted = strings.TrimSpace(submitted)

	if err := s.challenges.Consume(ctx, sess.Phone, submitted); err != nil {
		if isChallengeOutcome(err) {
			s.record(ctx, ports.AuditEvent{Actor: sess.UserID, Event: ports.AuditEventOTPVerify, Detail: err.Error()})
			return domainauth.Session{}, err
		}
		return domainauth.Session{}, fmt.Errorf("consume challenge: %w", err)
	}

	updated, markErr := s.sessions.MarkOTPVerified(ctx, sess.ID)
	if markErr != nil {
		return domainauth.Session{}, fmt.Errorf("mark session verified: %w", markErr)
	}

	s.record(ctx, ports.AuditEvent{Actor: sess.UserID, Event: ports.AuditEventOTPVerify, Success: true})
	return *updated, nil
}

func isChallengeOutcome(err error) bool {
	return errors.Is(err, ports.ErrCodeMismatch) ||
		errors.Is(err, ports.ErrAttemptsExhausted) ||
		errors.Is(err, ports.ErrChallengeNotFound)
}

// limiter returns the per-phone resend limiter, creating it on first use.
func (s *OTPService) limiter(phone string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[phone]
	if !ok {
		lim = rate.NewLimiter(rate.Every(s.cooldown), 1)
		s.limiters[phone] = lim
	}
	return lim
}

// generateCode draws a uniform 6-digit numeric code from crypto/rand.
func generateCode() (string, error) {
	upper := big.NewInt(1)
	for i := 0; i < domainotp.CodeLength; i++ {
		upper.Mul(upper, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", domainotp.CodeLength, n), nil
}

func (s *OTPService) record(ctx context.Context, event ports.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", "event", event.Event, "error", err)
	}
}
