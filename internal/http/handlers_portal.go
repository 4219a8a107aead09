package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/DexterMayheww/nit-portal-api/internal/data"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditListerInterface lists recorded audit events, newest first.
type AuditListerInterface interface {
	List(ctx context.Context, limit int) ([]data.AuditEntry, error)
}

// PortalHandlers serves the protected portal API surface behind the session gate.
type PortalHandlers struct {
	Audit AuditListerInterface
}

// Me returns the caller's session projection.
// GET /api/portal/me.
func (h *PortalHandlers) Me(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"id":            session.UserID,
		"email":         session.Email,
		"display_name":  session.DisplayName,
		"role":          session.Role,
		"department_id": session.DepartmentID,
		"otp_verified":  session.OTPVerified,
		"expires_at":    session.ExpiresAt,
	})
}

// AuditList returns recent sign-in and OTP events for administrators.
// GET /api/portal/audit?limit=<n>.
func (h *PortalHandlers) AuditList(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotImplemented,
			ErrCode: "audit_disabled",
			Err:     errors.New("audit storage is not configured"),
		})
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_limit",
				Err:     errors.New("limit must be a positive integer"),
			})
			return
		}
		limit = min(parsed, maxAuditLimit)
	}

	entries, err := h.Audit.List(r.Context(), limit)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "audit_list_failed",
			Err:     errors.New("could not list audit events"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"events": entries})
}
