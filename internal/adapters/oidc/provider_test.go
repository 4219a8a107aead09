package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

// discoveryDoc is the minimal discovery payload the tests serve.
type discoveryDoc struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

func newDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()
	issuer := ""
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		doc := discoveryDoc{
			Issuer:                issuer,
			AuthorizationEndpoint: "https://example.com/auth",
			TokenEndpoint:         "https://example.com/token",
			UserinfoEndpoint:      "https://example.com/userinfo",
			JwksURI:               "https://example.com/jwks",
		}
		_ = json.NewEncoder(w).Encode(doc)
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	issuer = server.URL
	return server
}

func createTestProvider(t *testing.T) *Provider {
	t.Helper()
	server := newDiscoveryServer(t)

	provider, err := NewProvider(ProviderConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scope:        "openid profile email",
		DiscoveryURL: server.URL,
	})
	require.NoError(t, err)
	return provider
}

func TestNewProvider_Success(t *testing.T) {
	provider := createTestProvider(t)
	assert.Equal(t, "https://example.com/auth", provider.config.Endpoint.AuthURL)
	assert.Equal(t, "https://example.com/token", provider.config.Endpoint.TokenURL)
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name: "missing client ID",
			config: ProviderConfig{
				ClientSecret: "secret",
				RedirectURL:  "http://localhost/callback",
				DiscoveryURL: "http://example.com",
			},
			errMsg: "client ID is required",
		},
		{
			name: "missing client secret",
			config: ProviderConfig{
				ClientID:     "client",
				RedirectURL:  "http://localhost/callback",
				DiscoveryURL: "http://example.com",
			},
			errMsg: "client secret is required",
		},
		{
			name: "missing redirect URL",
			config: ProviderConfig{
				ClientID:     "client",
				ClientSecret: "secret",
				DiscoveryURL: "http://example.com",
			},
			errMsg: "redirect URL is required",
		},
		{
			name: "missing discovery URL",
			config: ProviderConfig{
				ClientID:     "client",
				ClientSecret: "secret",
				RedirectURL:  "http://localhost/callback",
			},
			errMsg: "discovery URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	provider := createTestProvider(t)

	result, err := provider.Begin(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, result.State)
	assert.NotEmpty(t, result.Nonce)
	assert.NotEmpty(t, result.PKCEVerifier)
	assert.Contains(t, result.AuthURL, "https://example.com/auth")
	assert.Contains(t, result.AuthURL, "client_id=test-client")
	assert.Contains(t, result.AuthURL, "state="+result.State)
	assert.Contains(t, result.AuthURL, "nonce="+result.Nonce)
	assert.Contains(t, result.AuthURL, "code_challenge=")
	assert.Contains(t, result.AuthURL, "code_challenge_method=S256")
}

func TestProvider_Begin_FreshPerAttempt(t *testing.T) {
	provider := createTestProvider(t)

	first, err := provider.Begin(context.Background())
	require.NoError(t, err)
	second, err := provider.Begin(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.State, second.State)
	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.NotEqual(t, first.PKCEVerifier, second.PKCEVerifier)
}

func TestProvider_Exchange_ValidationErrors(t *testing.T) {
	provider := createTestProvider(t)

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{
		State:        "state",
		Nonce:        "nonce",
		PKCEVerifier: "verifier",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrCallbackFailed)

	_, err = provider.Exchange(context.Background(), ports.ExchangeInput{
		Code:  "code",
		State: "state",
		Nonce: "nonce",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrCallbackFailed)
}

func TestGenerateRandomString(t *testing.T) {
	for _, n := range []int{0, 1, 24, 32, 43} {
		s, err := generateRandomString(n)
		require.NoError(t, err)
		assert.Len(t, s, n)
	}

	first, err := generateRandomString(32)
	require.NoError(t, err)
	second, err := generateRandomString(32)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestProvider_ImplementsInterface(t *testing.T) {
	var _ ports.AuthProvider = (*Provider)(nil)
}

func TestGetIDTokenFromToken(t *testing.T) {
	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "raw-id-token"})
	raw, err := getIDTokenFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "raw-id-token", raw)

	_, err = getIDTokenFromToken(&oauth2.Token{})
	require.Error(t, err)

	_, err = getIDTokenFromToken(nil)
	require.Error(t, err)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("", "a", "b"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
