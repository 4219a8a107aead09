package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses the federated OIDC provider for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration for the federated provider.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"nit-portal"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email groups"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// LocalLoginConfig points at the institutional directory's credential
// verification endpoint for local email/password sign-in.
type LocalLoginConfig struct {
	VerifyURL string        `env:"VERIFY_URL"`
	Timeout   time.Duration `env:"TIMEOUT"    envDefault:"10s"`
}

// DirectoryConfig points at the directory service used to augment identities
// with phone, department, and declared roles after sign-in.
type DirectoryConfig struct {
	BaseURL string        `env:"BASE_URL"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"10s"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID string   `env:"USER_ID" envDefault:"dev-user"`
	Email  string   `env:"EMAIL"   envDefault:"dev@example.edu"`
	Name   string   `env:"NAME"    envDefault:"Dev User"`
	Phone  string   `env:"PHONE"`
	Roles  []string `env:"ROLES"   envDefault:"faculty"        envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// LocalLogin configuration for the email/password fallback.
	LocalLogin LocalLoginConfig `envPrefix:"LOCAL_LOGIN_"`

	// Directory configuration for identity augmentation.
	Directory DirectoryConfig `envPrefix:"DIRECTORY_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// BootstrapAdmins lists emails that always resolve to the administrator
	// role, so a fresh deployment is never locked out.
	BootstrapAdmins []string `env:"BOOTSTRAP_ADMINS" envSeparator:";"`

	// SessionDuration is the server-side session lifetime.
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`

	// SessionSigningKey signs the client-visible session token (HMAC-SHA256,
	// at least 32 bytes). Required outside dev mode.
	SessionSigningKey string `env:"SESSION_SIGNING_KEY"`

	// SessionIssuer is stamped into every session token.
	SessionIssuer string `env:"SESSION_ISSUER" envDefault:"nit-portal"`
}

// Sanitize applies guardrails to authentication configuration values.
func (c *AuthConfig) Sanitize() {
	if c.SessionDuration <= 0 {
		c.SessionDuration = 8 * time.Hour
	}
	for i, email := range c.BootstrapAdmins {
		c.BootstrapAdmins[i] = strings.ToLower(strings.TrimSpace(email))
	}
}
