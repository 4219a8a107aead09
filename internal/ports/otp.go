package ports

import (
	"context"
	"errors"

	domainotp "github.com/DexterMayheww/nit-portal-api/internal/domain/otp"
)

// Challenge store errors shared by all implementations so the OTP service can
// map them to user-facing outcomes regardless of the backing store.
var (
	// ErrChallengeNotFound means no live challenge exists for the phone,
	// either because none was issued or because it expired.
	ErrChallengeNotFound = errors.New("otp challenge not found")
	// ErrCodeMismatch means the submitted code did not match; one attempt
	// was consumed and the challenge stays live.
	ErrCodeMismatch = errors.New("otp code mismatch")
	// ErrAttemptsExhausted means the attempt budget is spent; the challenge
	// was destroyed and a fresh send is required.
	ErrAttemptsExhausted = errors.New("otp attempts exhausted")
)

// ChallengeStore holds at most one live challenge per phone number.
type ChallengeStore interface {
	// Replace atomically installs the challenge for its phone, superseding
	// any live challenge for the same phone (last writer wins).
	Replace(ctx context.Context, ch domainotp.Challenge) error

	// Consume atomically verifies the submitted code against the live
	// challenge for the phone. A match destroys the challenge and returns
	// nil. A mismatch decrements the attempt budget and returns
	// ErrCodeMismatch, or ErrAttemptsExhausted when the budget is spent
	// (which also destroys the challenge). Expired or missing challenges
	// return ErrChallengeNotFound. The read-and-decrement must be atomic so
	// concurrent verify attempts cannot both observe the same budget.
	Consume(ctx context.Context, phone, submitted string) error

	// Delete removes any live challenge for the phone.
	Delete(ctx context.Context, phone string) error
}

// CodeSender hands a generated code to the external messaging gateway for
// delivery. Implementations must never log or return the code.
type CodeSender interface {
	Send(ctx context.Context, phone, code string) error
}
