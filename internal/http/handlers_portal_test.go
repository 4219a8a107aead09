package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DexterMayheww/nit-portal-api/internal/data"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

// mockAuditLister is a test double for the audit repository.
type mockAuditLister struct {
	listFunc func(ctx context.Context, limit int) ([]data.AuditEntry, error)
	gotLimit int
}

func (m *mockAuditLister) List(ctx context.Context, limit int) ([]data.AuditEntry, error) {
	m.gotLimit = limit
	if m.listFunc != nil {
		return m.listFunc(ctx, limit)
	}
	return []data.AuditEntry{
		{Actor: "alice@inst.edu", Event: ports.AuditEventSignIn, Provider: "oidc", Success: true},
	}, nil
}

func TestPortalHandlers_Me(t *testing.T) {
	handlers := &PortalHandlers{}

	sess := testSession()
	sess.OTPVerified = true
	req := httptest.NewRequest(http.MethodGet, "/api/portal/me", nil)
	req = req.WithContext(SetSessionInContext(req.Context(), &sess))
	w := httptest.NewRecorder()

	handlers.Me(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test@inst.edu")
	assert.Contains(t, w.Body.String(), `"otp_verified":true`)
}

func TestPortalHandlers_Me_NoSession(t *testing.T) {
	handlers := &PortalHandlers{}

	req := httptest.NewRequest(http.MethodGet, "/api/portal/me", nil)
	w := httptest.NewRecorder()

	handlers.Me(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPortalHandlers_AuditList(t *testing.T) {
	t.Run("default limit", func(t *testing.T) {
		lister := &mockAuditLister{}
		handlers := &PortalHandlers{Audit: lister}

		req := httptest.NewRequest(http.MethodGet, "/api/portal/audit", nil)
		w := httptest.NewRecorder()
		handlers.AuditList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, defaultAuditLimit, lister.gotLimit)
		assert.Contains(t, w.Body.String(), "alice@inst.edu")
	})

	t.Run("explicit limit", func(t *testing.T) {
		lister := &mockAuditLister{}
		handlers := &PortalHandlers{Audit: lister}

		req := httptest.NewRequest(http.MethodGet, "/api/portal/audit?limit=5", nil)
		w := httptest.NewRecorder()
		handlers.AuditList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 5, lister.gotLimit)
	})

	t.Run("limit capped", func(t *testing.T) {
		lister := &mockAuditLister{}
		handlers := &PortalHandlers{Audit: lister}

		req := httptest.NewRequest(http.MethodGet, "/api/portal/audit?limit=99999", nil)
		w := httptest.NewRecorder()
		handlers.AuditList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, maxAuditLimit, lister.gotLimit)
	})

	t.Run("invalid limit", func(t *testing.T) {
		handlers := &PortalHandlers{Audit: &mockAuditLister{}}

		req := httptest.NewRequest(http.MethodGet, "/api/portal/audit?limit=zero", nil)
		w := httptest.NewRecorder()
		handlers.AuditList(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_limit")
	})

	t.Run("audit storage not configured", func(t *testing.T) {
		handlers := &PortalHandlers{}

		req := httptest.NewRequest(http.MethodGet, "/api/portal/audit", nil)
		w := httptest.NewRecorder()
		handlers.AuditList(w, req)

		assert.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Contains(t, w.Body.String(), "audit_disabled")
	})

	t.Run("listing failure", func(t *testing.T) {
		lister := &mockAuditLister{
			listFunc: func(context.Context, int) ([]data.AuditEntry, error) {
				return nil, errors.New("connection refused")
			},
		}
		handlers := &PortalHandlers{Audit: lister}

		req := httptest.NewRequest(http.MethodGet, "/api/portal/audit", nil)
		w := httptest.NewRecorder()
		handlers.AuditList(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "audit_list_failed")
	})
}

func TestNewRouter_HealthAndWiring(t *testing.T) {
	router := NewRouter(RouterServices{
		Auth: &mockAuthService{},
		OTP:  &mockOTPService{},
	})

	t.Run("health endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("protected route requires verification", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/portal/me", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "test-session-id"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		// Default mock session is unverified.
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "otp_required")
	})

	t.Run("otp endpoint accepts unverified session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/otp/send", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "test-session-id"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
