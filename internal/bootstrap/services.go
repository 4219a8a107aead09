package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/DexterMayheww/nit-portal-api/config"
	"github.com/DexterMayheww/nit-portal-api/internal/data"
	"github.com/DexterMayheww/nit-portal-api/internal/observability/statsd"
	"github.com/DexterMayheww/nit-portal-api/internal/service"
	"github.com/DexterMayheww/nit-portal-api/internal/token"
)

// errChannelCapacity bounds the shared error channel; one slot per runner
// plus one for the HTTP server keeps failed goroutines from blocking.
const errChannelCapacity = 4

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth    *service.AuthService
	OTP     *service.OTPService
	Audit   *data.AuditRepo
	Tokens  *token.Manager
	Metrics *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// InitializeServices builds the service container from shared infrastructure.
func InitializeServices(deps ServiceDeps) ServiceContainer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	var auditRepo *data.AuditRepo
	if deps.DB != nil {
		auditRepo = data.NewAuditRepo(deps.DB)
	} else {
		logger.Warn("audit trail disabled: database not configured")
	}

	authCfg := AuthConfig{
		Auth:        appCfg.Auth,
		OTP:         appCfg.OTP,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	}
	if auditRepo != nil {
		authCfg.Audit = auditRepo
	}

	authSvc := BuildAuthService(authCfg)

	return ServiceContainer{
		Auth:    authSvc,
		OTP:     BuildOTPService(authCfg, authSvc),
		Audit:   auditRepo,
		Tokens:  BuildTokenManager(appCfg.Auth, logger),
		Metrics: buildMetricsSink(appCfg.Metrics, logger),
	}
}

// buildMetricsSink dials the StatsD endpoint when metrics are enabled.
// Metrics are best effort: a dial failure disables emission but never
// blocks startup.
func buildMetricsSink(cfg config.MetricsConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// NewErrorChannel creates the shared channel that background goroutines use
// to surface fatal errors to main.
func NewErrorChannel() chan error {
	return make(chan error, errChannelCapacity)
}

// WaitForShutdown blocks until a termination signal arrives or a fatal error
// is reported, then returns the reason.
func WaitForShutdown(ctx context.Context, errCh <-chan error, logger *slog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		if logger != nil {
			logger.Info("received shutdown signal", "signal", sig.String())
		}
		return nil
	case err := <-errCh:
		if logger != nil {
			logger.Error("fatal service error", "error", err)
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
