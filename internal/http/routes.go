package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
	"github.com/DexterMayheww/nit-portal-api/internal/observability/statsd"
	"github.com/DexterMayheww/nit-portal-api/internal/token"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth         AuthServiceInterface
	OTP          OTPServiceInterface
	Audit        AuditListerInterface // optional; audit listing returns 501 when nil
	Tokens       *token.Manager
	Metrics      statsd.Sink // optional; request metrics skipped when nil
	CookieDomain string
	Logger       *slog.Logger
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	if services.Logger == nil {
		services.Logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:          services.Auth,
		Tokens:       services.Tokens,
		CookieDomain: services.CookieDomain,
		Logger:       services.Logger,
	}
	otpHandlers := &OTPHandlers{Svc: services.OTP, Logger: services.Logger}
	portalHandlers := &PortalHandlers{Audit: services.Audit}

	gate := GateOptions{Auth: services.Auth, Tokens: services.Tokens}

	registerAuthRoutes(mux, authHandlers, gate)
	registerOTPRoutes(mux, otpHandlers, gate)
	registerPortalRoutes(mux, portalHandlers, gate)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	handler := Logging(services.Logger)(Recover(services.Logger)(mux))
	if services.Metrics != nil {
		handler = RequestMetrics(services.Metrics)(handler)
	}
	return handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, gate GateOptions) {
	mux.Handle("GET /auth/login", http.HandlerFunc(h.Login))
	mux.Handle("GET /auth/callback", http.HandlerFunc(h.Callback))
	mux.Handle("POST /auth/password-login", http.HandlerFunc(h.PasswordLogin))
	mux.Handle("POST /auth/logout", http.HandlerFunc(h.Logout))
	mux.Handle("GET /auth/status", http.HandlerFunc(h.Status))
	mux.Handle("POST /auth/session/refresh", RequireSession(gate)(http.HandlerFunc(h.Refresh)))
}

func registerOTPRoutes(mux *http.ServeMux, h *OTPHandlers, gate GateOptions) {
	// Challenge endpoints require a signed-in session, not a verified one:
	// verifying is how a session becomes verified.
	requireSession := RequireSession(gate)
	mux.Handle("POST /otp/send", requireSession(http.HandlerFunc(h.Send)))
	mux.Handle("POST /otp/resend", requireSession(http.HandlerFunc(h.Resend)))
	mux.Handle("POST /otp/verify", requireSession(http.HandlerFunc(h.Verify)))
}

func registerPortalRoutes(mux *http.ServeMux, h *PortalHandlers, gate GateOptions) {
	mux.Handle("GET /api/portal/me", RequireVerified(gate)(http.HandlerFunc(h.Me)))
	mux.Handle("GET /api/portal/audit",
		RequireRole(gate, domainauth.RoleAdministrator)(http.HandlerFunc(h.AuditList)))
}
