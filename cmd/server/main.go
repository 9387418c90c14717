package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	employeehandler "github.com/gramv/onboardingsoftware-sub000/internal/employee/handler"
	employeesvc "github.com/gramv/onboardingsoftware-sub000/internal/employee/service"
	hiringhandler "github.com/gramv/onboardingsoftware-sub000/internal/hiring/handler"
	hiringmetrics "github.com/gramv/onboardingsoftware-sub000/internal/hiring/metrics"
	hiringsvc "github.com/gramv/onboardingsoftware-sub000/internal/hiring/service"
	"github.com/gramv/onboardingsoftware-sub000/internal/jwt_token"
	"github.com/gramv/onboardingsoftware-sub000/internal/notify"
	onboardinghandler "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/handler"
	onboardingmetrics "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/metrics"
	onboardingsvc "github.com/gramv/onboardingsoftware-sub000/internal/onboarding/service"
	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/token"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/config"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/httpserver"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/logger"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/metrics"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/middleware"
	"github.com/gramv/onboardingsoftware-sub000/internal/ratelimit"
	httptransport "github.com/gramv/onboardingsoftware-sub000/internal/transport/http"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/middleware/metadata"
)

const (
	shutdownTimeout = 15 * time.Second
	uploadTimeout   = 90 * time.Second
	auditBufferSize = 256
)

// main wires configuration, backends and services, then serves until
// SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	if b.redis != nil {
		b.redis.RegisterMetrics(reg)
	}

	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	auditor := audit.NewRecorder(log, audit.WithStore(b.auditStore(), auditBufferSize))
	go func() {
		_ = auditor.Run(auditCtx)
	}()

	notifyMetrics := notify.NewMetrics(reg)
	dispatcher := notify.NewDispatcher(b.relay(log, notifyMetrics, auditor),
		notify.WithLogger(log),
		notify.WithMetrics(notifyMetrics),
		notify.WithBufferSize(cfg.Notifications.BufferSize),
		notify.WithMaxRetries(cfg.Notifications.MaxRetries),
	)

	employees := employeesvc.New(b.employees, employeesvc.WithLogger(log), employeesvc.WithAuditor(auditor))
	onboardingOpts := []onboardingsvc.Option{
		onboardingsvc.WithLogger(log),
		onboardingsvc.WithAuditor(auditor),
		onboardingsvc.WithMetrics(onboardingmetrics.New(reg)),
		onboardingsvc.WithTxRunner(b.tx),
		onboardingsvc.WithNotifier(dispatcher),
		onboardingsvc.WithTracer(otel.Tracer("onboarding")),
		onboardingsvc.WithPortalBaseURL(cfg.Onboarding.PortalBaseURL),
	}
	if b.tokenIndex != nil {
		onboardingOpts = append(onboardingOpts, onboardingsvc.WithTokenIndex(b.tokenIndex))
	}
	onboarding := onboardingsvc.New(b.sessions,
		token.NewIssuer(token.Policy{RemoteTTL: cfg.Onboarding.RemoteTokenTTL, WalkInTTL: cfg.Onboarding.WalkInTokenTTL}),
		employees, b.documents, onboardingOpts...)
	hiring := hiringsvc.New(b.applications, onboarding,
		hiringsvc.WithLogger(log),
		hiringsvc.WithAuditor(auditor),
		hiringsvc.WithMetrics(hiringmetrics.New(reg)),
		hiringsvc.WithTxRunner(b.tx),
		hiringsvc.WithPayRateFloor(cfg.Onboarding.PayRateFloor),
	)

	var limiter middleware.RateLimiter
	if !cfg.RateLimit.Disabled {
		window := cfg.RateLimit.Window
		limiter = ratelimit.NewLimiter(b.rateLimitStore(), map[string]ratelimit.Policy{
			ratelimit.ScopeApplicant:  {Limit: cfg.RateLimit.ApplicantRequests, Window: window},
			ratelimit.ScopePublic:     {Limit: cfg.RateLimit.PublicRequests, Window: window},
			ratelimit.ScopeActivation: {Limit: cfg.RateLimit.ActivationAttempts, Window: window},
		}, log)
	}

	jwtService := jwt_token.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
	trusted, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}
	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		Checks:         b.healthChecks(),
		TrustedProxies: trusted,
	},
		onboardinghandler.New(onboarding, jwtService, log, onboardinghandler.WithRateLimiter(limiter)),
		hiringhandler.New(hiring, jwtService, log, hiringhandler.WithRateLimiter(limiter)),
		employeehandler.New(employees, jwtService, log, employeehandler.WithRateLimiter(limiter)),
	)

	log.Info("starting onboarding service",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"postgres", b.pool != nil,
		"redis", b.redis != nil,
		"kafka", b.producer != nil,
	)
	srv := httpserver.New(cfg.Server.Addr, router, httpserver.WithWriteTimeout(uploadTimeout))
	if err := httpserver.Serve(ctx, srv, log, shutdownTimeout); err != nil {
		return err
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		log.Warn("notification dispatcher did not drain", "error", err)
	}
	stopAudit()
	if err := auditor.Wait(drainCtx); err != nil {
		log.Warn("audit recorder did not drain", "error", err)
	}
	return nil
}
