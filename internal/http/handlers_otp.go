package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
	"github.com/DexterMayheww/nit-portal-api/internal/service"
)

// OTPServiceInterface defines the interface for OTP challenge operations.
type OTPServiceInterface interface {
	Send(ctx context.Context, sess domainauth.Session) error
	Resend(ctx context.Context, sess domainauth.Session) error
	Verify(ctx context.Context, sess domainauth.Session, submitted string) (domainauth.Session, error)
}

// OTPHandlers provides HTTP handlers for the phone challenge flow. All three
// endpoints operate on the signed-in session from the request context; the
// phone number is never client-supplied.
type OTPHandlers struct {
	Svc    OTPServiceInterface
	Logger *slog.Logger
}

func (h *OTPHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Send issues a challenge for the session's phone.
// POST /otp/send (no body). The response never contains the code.
func (h *OTPHandlers) Send(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, func(ctx context.Context, sess domainauth.Session) error {
		return h.Svc.Send(ctx, sess)
	})
}

// Resend supersedes any live challenge with a fresh one, behind a per-phone
// cooldown. POST /otp/resend (no body).
func (h *OTPHandlers) Resend(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, func(ctx context.Context, sess domainauth.Session) error {
		return h.Svc.Resend(ctx, sess)
	})
}

func (h *OTPHandlers) issue(w http.ResponseWriter, r *http.Request, send func(context.Context, domainauth.Session) error) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	if err := send(r.Context(), *session); err != nil {
		h.writeIssueError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *OTPHandlers) writeIssueError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNoPhoneOnRecord):
		WriteError(w, ErrorParams{
			Code:    http.StatusConflict,
			ErrCode: "phone_not_on_record",
			Err:     errors.New("no phone on record; contact an administrator"),
		})
	case errors.Is(err, service.ErrResendThrottled):
		WriteError(w, ErrorParams{
			Code:    http.StatusTooManyRequests,
			ErrCode: "resend_throttled",
			Err:     errors.New("please wait before requesting another code"),
		})
	default:
		h.logger().ErrorContext(r.Context(), "otp send failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusBadGateway,
			ErrCode: "delivery_failed",
			Err:     errors.New("could not deliver the code; try again"),
		})
	}
}

// verifyRequest is the challenge verification payload.
type verifyRequest struct {
	Code string `json:"code"`
}

// Verify checks the submitted code and unlocks the session on a match.
// POST /otp/verify with {code}.
func (h *OTPHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	var req verifyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	updated, err := h.Svc.Verify(r.Context(), *session, req.Code)
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "verified",
		"otp_verified": updated.OTPVerified,
	})
}

// writeVerifyError keeps the three challenge outcomes distinct so the caller
// knows whether to retype, resend, or start over.
func (h *OTPHandlers) writeVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrCodeMismatch):
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_code",
			Err:     errors.New("the code does not match; check it and try again"),
		})
	case errors.Is(err, ports.ErrAttemptsExhausted):
		WriteError(w, ErrorParams{
			Code:    http.StatusForbidden,
			ErrCode: "attempts_exhausted",
			Err:     errors.New("too many wrong attempts; request a new code"),
		})
	case errors.Is(err, ports.ErrChallengeNotFound):
		WriteError(w, ErrorParams{
			Code:    http.StatusGone,
			ErrCode: "code_expired",
			Err:     errors.New("the code has expired; request a new one"),
		})
	case errors.Is(err, service.ErrNoPhoneOnRecord):
		WriteError(w, ErrorParams{
			Code:    http.StatusConflict,
			ErrCode: "phone_not_on_record",
			Err:     errors.New("no phone on record; contact an administrator"),
		})
	default:
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "verify_failed",
			Err:     errors.New("verification failed; try again"),
		})
	}
}
