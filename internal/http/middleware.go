package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
	"github.com/DexterMayheww/nit-portal-api/internal/token"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// GateOptions groups the dependencies of the session gate middlewares.
// Tokens is optional; when set, API clients may authenticate with a bearer
// session token instead of the session cookie.
type GateOptions struct {
	Auth   AuthServiceInterface
	Tokens *token.Manager
}

// RequireSession returns a middleware that requires a signed-in session but
// does not require the second factor. The OTP endpoints themselves sit behind
// this: a user must be signed in to request or verify a challenge.
func RequireSession(opts GateOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sessionFromRequest(r, opts)
			if session == nil {
				unauthenticated(w, r)
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireVerified returns the full session gate for protected routes:
//
//	no session                      -> sign-in (401 for API clients)
//	session, unverified, has phone  -> challenge flow (403 otp_required for API)
//	session, unverified, no phone   -> 403 phone_not_on_record, never a bypass
//	session, verified               -> allow
func RequireVerified(opts GateOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sessionFromRequest(r, opts)
			if session == nil {
				unauthenticated(w, r)
				return
			}

			if !session.OTPVerified {
				if !session.HasPhone() {
					// The second factor cannot be completed; surface a
					// terminal error instead of silently letting the
					// request through.
					WriteError(w, ErrorParams{
						Code:    http.StatusForbidden,
						ErrCode: "phone_not_on_record",
						Err:     errors.New("no phone on record; contact an administrator"),
					})
					return
				}
				if isBrowserRequest(r) {
					http.Redirect(w, r, "/auth/otp", http.StatusSeeOther)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "otp_required",
					Err:     errors.New("second-factor verification required"),
				})
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns a middleware that layers a minimum-role check on top of
// the full session gate.
func RequireRole(opts GateOptions, requiredRole domainauth.Role) func(http.Handler) http.Handler {
	gate := RequireVerified(opts)
	return func(next http.Handler) http.Handler {
		return gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := GetSessionFromContext(r.Context())
			if session == nil || !hasRequiredRole(session.Role, requiredRole) {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// sessionFromRequest retrieves and validates a session from the request,
// trying the session cookie first and then a bearer session token.
func sessionFromRequest(r *http.Request, opts GateOptions) *domainauth.Session {
	if sessionCookie, err := r.Cookie("session_id"); err == nil {
		if session, getErr := opts.Auth.GetSession(r.Context(), sessionCookie.Value); getErr == nil {
			return session
		}
	}

	if opts.Tokens == nil {
		return nil
	}
	raw := bearerToken(r)
	if raw == "" {
		return nil
	}
	claims, err := opts.Tokens.Parse(raw)
	if err != nil {
		return nil
	}
	// The token is only a projection; the redis-backed session stays
	// authoritative, so a revoked session fails here even with a valid
	// signature.
	session, err := opts.Auth.GetSession(r.Context(), claims.SessionID())
	if err != nil {
		return nil
	}
	return session
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// hasRequiredRole checks if the user's role meets the required role.
// Role hierarchy: staff < faculty < department_head < administrator.
func hasRequiredRole(userRole, requiredRole domainauth.Role) bool {
	roleHierarchy := map[domainauth.Role]int{
		domainauth.RoleStaff:          0,
		domainauth.RoleFaculty:        1,
		domainauth.RoleDepartmentHead: 2,
		domainauth.RoleAdministrator:  3,
	}

	userLevel, userExists := roleHierarchy[userRole]
	requiredLevel, requiredExists := roleHierarchy[requiredRole]

	if !userExists || !requiredExists {
		return false
	}

	return userLevel >= requiredLevel
}

// unauthenticated answers a request with no usable session: browsers are sent
// to sign-in, API clients get a 401.
func unauthenticated(w http.ResponseWriter, r *http.Request) {
	if isBrowserRequest(r) {
		redirectParam := url.QueryEscape(safeRedirectPath(r.URL.RequestURI()))
		http.Redirect(w, r, "/auth/login?redirect_uri="+redirectParam, http.StatusSeeOther)
		return
	}
	WriteError(w, ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: "authentication_required",
		Err:     errors.New("authentication required"),
	})
}

// isBrowserRequest reports whether the request prefers an HTML answer.
// API routes are explicitly not browser requests.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
