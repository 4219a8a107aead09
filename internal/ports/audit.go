package ports

import "context"

// Audit event names recorded by the services.
const (
	AuditEventSignIn    = "sign_in"
	AuditEventSignOut   = "sign_out"
	AuditEventOTPSend   = "otp_send"
	AuditEventOTPResend = "otp_resend"
	AuditEventOTPVerify = "otp_verify"
)

// AuditEvent is one sign-in or OTP lifecycle event. Detail is a short
// human-readable note (an error class, never a code or credential).
type AuditEvent struct {
	Actor    string
	Event    string
	Provider string
	Success  bool
	Detail   string
}

// AuditRecorder persists audit events. Recording is best-effort: callers log
// failures and continue, an audit outage must never block sign-in.
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent) error
}
