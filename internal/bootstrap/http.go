package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/DexterMayheww/nit-portal-api/config"
	httpx "github.com/DexterMayheww/nit-portal-api/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	ErrCh    chan<- error
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	routerServices := httpx.RouterServices{
		Tokens:       cfg.Services.Tokens,
		CookieDomain: appCfg.HTTP.CookieDomain,
		Logger:       logger,
	}
	if cfg.Services.Auth != nil {
		routerServices.Auth = cfg.Services.Auth
	}
	if cfg.Services.OTP != nil {
		routerServices.OTP = cfg.Services.OTP
	}
	if cfg.Services.Audit != nil {
		routerServices.Audit = cfg.Services.Audit
	}
	if cfg.Services.Metrics != nil {
		routerServices.Metrics = cfg.Services.Metrics
	}

	handler := httpx.NewRouter(routerServices)

	return startServer(serverParams{Logger: logger, Handler: handler, Addr: appCfg.HTTP.Addr, ErrCh: cfg.ErrCh})
}

// serverParams groups startServer inputs to keep parameter count <= 3.
type serverParams struct {
	Logger  *slog.Logger
	Handler http.Handler
	Addr    string
	ErrCh   chan<- error
}

func startServer(p serverParams) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := p.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      p.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		p.Logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.Logger.Error("HTTP server failed", "error", err)
			if p.ErrCh != nil {
				p.ErrCh <- err
			}
		}
	}()

	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}

	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}

	return nil
}
