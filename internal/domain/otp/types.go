package otp

// Package otp contains the domain model for phone-based one-time-passcode
// challenges. Storage and delivery live in adapters.

import "time"

// CodeLength is the number of digits in a challenge code.
const CodeLength = 6

// Challenge is a short-lived verification code and its metadata, keyed by
// phone number. At most one live challenge exists per phone; a resend
// supersedes the previous one.
type Challenge struct {
	Phone             string    `json:"phone"`
	Code              string    `json:"code"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	AttemptsRemaining int       `json:"attempts_remaining"`
}

// Expired reports whether the challenge is void at the given instant.
// Expiry is evaluated at read time; no background sweep is required.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
