package bootstrap

import (
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/DexterMayheww/nit-portal-api/config"
	"github.com/DexterMayheww/nit-portal-api/internal/adapters/devauth"
	"github.com/DexterMayheww/nit-portal-api/internal/adapters/directory"
	"github.com/DexterMayheww/nit-portal-api/internal/adapters/localauth"
	"github.com/DexterMayheww/nit-portal-api/internal/adapters/oidc"
	redisadapter "github.com/DexterMayheww/nit-portal-api/internal/adapters/redis"
	"github.com/DexterMayheww/nit-portal-api/internal/adapters/sms"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
	"github.com/DexterMayheww/nit-portal-api/internal/service"
	"github.com/DexterMayheww/nit-portal-api/internal/token"
)

// AuthConfig contains configuration for auth and OTP services.
type AuthConfig struct {
	Auth        config.AuthConfig
	OTP         config.OTPConfig
	RedisClient redis.UniversalClient
	Audit       ports.AuditRecorder
	Logger      *slog.Logger
}

// BuildAuthService creates an auth service based on the configured auth mode.
// Returns nil if auth is not configured or configuration is invalid.
func BuildAuthService(cfg AuthConfig) *service.AuthService {
	if cfg.RedisClient == nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("auth service disabled: redis client not configured", "mode", cfg.Auth.Mode)
		}
		return nil
	}

	sessionStore := redisadapter.NewSessionStore(cfg.RedisClient)

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevAuthService(cfg, sessionStore)

	case config.AuthModeOAuth:
		return buildOAuthService(cfg, sessionStore)

	default:
		return nil
	}
}

func buildDevAuthService(cfg AuthConfig, sessionStore *redisadapter.SessionStore) *service.AuthService {
	// Explicitly enabled dev auth mode; build a local provider.
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:          cfg.Auth.DevAuth.UserID,
		Email:           cfg.Auth.DevAuth.Email,
		DisplayName:     cfg.Auth.DevAuth.Name,
		DeclaredRoles:   cfg.Auth.DevAuth.Roles,
		Phone:           cfg.Auth.DevAuth.Phone,
		SessionDuration: cfg.Auth.SessionDuration,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create dev auth provider, auth disabled", "error", err)
		}
		return nil
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Provider:        prov,
		Passwords:       buildPasswordAuthenticator(cfg),
		Directory:       buildDirectoryClient(cfg),
		Sessions:        sessionStore,
		BootstrapAdmins: cfg.Auth.BootstrapAdmins,
		SessionDuration: cfg.Auth.SessionDuration,
		Audit:           cfg.Audit,
		Logger:          cfg.Logger,
	})
}

func buildOAuthService(cfg AuthConfig, sessionStore *redisadapter.SessionStore) *service.AuthService {
	// Only enable when fully configured
	oauth := cfg.Auth.OAuth
	if oauth.DiscoveryURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
		if cfg.Logger != nil {
			cfg.Logger.Warn("AuthModeOAuth selected but required config missing; auth disabled",
				"discovery_url_empty", oauth.DiscoveryURL == "",
				"client_id_empty", oauth.ClientID == "",
				"client_secret_empty", oauth.ClientSecret == "",
			)
		}
		return nil
	}

	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.DiscoveryURL,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create OIDC provider, auth disabled", "error", err)
		}
		return nil
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Provider:        prov,
		Passwords:       buildPasswordAuthenticator(cfg),
		Directory:       buildDirectoryClient(cfg),
		Sessions:        sessionStore,
		BootstrapAdmins: cfg.Auth.BootstrapAdmins,
		SessionDuration: cfg.Auth.SessionDuration,
		Audit:           cfg.Audit,
		Logger:          cfg.Logger,
	})
}

// buildPasswordAuthenticator wires the local credential fallback when its
// verification endpoint is configured.
//
//nolint:ireturn // the service consumes the port, not the adapter type.
func buildPasswordAuthenticator(cfg AuthConfig) ports.PasswordAuthenticator {
	local := cfg.Auth.LocalLogin
	if local.VerifyURL == "" {
		return nil
	}

	prov, err := localauth.NewProvider(localauth.Config{
		LoginURL:        local.VerifyURL,
		SessionDuration: cfg.Auth.SessionDuration,
		HTTPClient:      &http.Client{Timeout: local.Timeout},
		Logger:          cfg.Logger,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create local login provider, password sign-in disabled", "error", err)
		}
		return nil
	}
	return prov
}

// buildDirectoryClient wires the directory augmentation when configured.
// Sign-in degrades gracefully without it.
//
//nolint:ireturn // the service consumes the port, not the adapter type.
func buildDirectoryClient(cfg AuthConfig) ports.DirectoryClient {
	dir := cfg.Auth.Directory
	if dir.BaseURL == "" {
		return nil
	}

	client, err := directory.NewClient(directory.Config{
		BaseURL:    dir.BaseURL,
		HTTPClient: &http.Client{Timeout: dir.Timeout},
		Logger:     cfg.Logger,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create directory client, identity augmentation disabled", "error", err)
		}
		return nil
	}
	return client
}

// BuildOTPService creates the phone challenge service. Verification delegates
// to the auth service, which owns the session flag. Returns nil when redis,
// the SMS gateway, or the auth service is not configured.
func BuildOTPService(cfg AuthConfig, verifier *service.AuthService) *service.OTPService {
	if cfg.RedisClient == nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("otp service disabled: redis client not configured")
		}
		return nil
	}
	if verifier == nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("otp service disabled: auth service not configured")
		}
		return nil
	}
	if cfg.OTP.SMS.SendURL == "" {
		if cfg.Logger != nil {
			cfg.Logger.Warn("otp service disabled: sms gateway not configured")
		}
		return nil
	}

	gateway, err := sms.NewGateway(sms.Config{
		SendURL:         cfg.OTP.SMS.SendURL,
		MessageTemplate: cfg.OTP.SMS.MessageTemplate,
		SuccessExpr:     cfg.OTP.SMS.SuccessExpr,
		HTTPClient:      &http.Client{Timeout: cfg.OTP.SMS.Timeout},
		Logger:          cfg.Logger,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create sms gateway, otp disabled", "error", err)
		}
		return nil
	}

	return service.NewOTPService(service.OTPServiceOptions{
		Challenges:     redisadapter.NewChallengeStore(cfg.RedisClient),
		Sender:         gateway,
		Sessions:       verifier,
		TTL:            cfg.OTP.TTL,
		AttemptLimit:   cfg.OTP.AttemptLimit,
		ResendCooldown: cfg.OTP.ResendCooldown,
		Audit:          cfg.Audit,
		Logger:         cfg.Logger,
	})
}

// BuildTokenManager creates the session token signer. Returns nil when no
// signing key is configured; the session cookie keeps working without it.
func BuildTokenManager(cfg config.AuthConfig, logger *slog.Logger) *token.Manager {
	if cfg.SessionSigningKey == "" {
		if logger != nil {
			logger.Warn("session token signing disabled: no signing key configured")
		}
		return nil
	}

	mgr, err := token.NewManager(token.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
	})
	if err != nil {
		if logger != nil {
			logger.Warn("failed to create session token manager, bearer auth disabled", "error", err)
		}
		return nil
	}
	return mgr
}
