// Command api runs the TRACE self-assessment backend: email verification
// endpoints plus the SSE scan stream.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/client"
	"github.com/trace-osint/trace/internal/config"
	"github.com/trace-osint/trace/internal/dispatcher"
	"github.com/trace-osint/trace/internal/handler"
	"github.com/trace-osint/trace/internal/probe"
	"github.com/trace-osint/trace/internal/scan"
	"github.com/trace-osint/trace/internal/telemetry"
	"github.com/trace-osint/trace/internal/verify"
)

const serviceName = "trace-api"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Telemetry (optional) ────────────────────────────────────────────
	if cfg.TelemetryEndpoint != "" {
		mp, err := telemetry.InitMeterProvider(ctx, serviceName, cfg.TelemetryEndpoint)
		if err != nil {
			logger.Fatal("telemetry init failed", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mp.Shutdown(shutdownCtx)
		}()
	}
	metrics, err := handler.NewMetrics()
	if err != nil {
		logger.Fatal("metrics init failed", zap.Error(err))
	}

	// ── Scan engine ─────────────────────────────────────────────────────
	httpClient := client.New("TRACE-Scanner/1.0 (+self-assessment)", cfg.OutboundLimit)
	registry := probe.NewRegistry(probe.Deps{
		Client:      httpClient,
		Logger:      logger,
		GitHubToken: cfg.GitHubToken,
	})
	engine := scan.NewEngine(registry, logger, scan.Options{
		ScanDeadline: cfg.ScanDeadline,
		ProbeTimeout: cfg.ProbeTimeout,
		Hop1Fanout:   cfg.Hop1Fanout,
		Hop2Fanout:   cfg.Hop2Fanout,
		Pacing:       cfg.ProbePacing,
		MaxUsernames: cfg.MaxUsernames,
		MaxURLs:      cfg.MaxURLs,
	})

	// ── Verification gate ───────────────────────────────────────────────
	codes := verify.NewCodeStore(6, cfg.VerifyCodeTTL, cfg.VerifyMaxAttempts)
	tokens := verify.NewTokenStore(10 * time.Minute)

	var sender dispatcher.Sender
	if cfg.ResendAPIKey != "" {
		sender = dispatcher.NewResendSender(httpClient, logger, cfg.ResendAPIKey, cfg.MailFrom)
	} else {
		logger.Warn("no mail provider key configured, using logging stub")
		sender = dispatcher.NewLogSender(logger)
	}

	// ── HTTP surface ────────────────────────────────────────────────────
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	handler.NewVerifyHandler(
		codes, tokens,
		verify.NewRateLimiter(), verify.NewRateLimiter(),
		sender, logger,
		cfg.VerifyCodeTTL, cfg.VerifyMaxAttempts, cfg.VerifyLockout, cfg.VerifyPerHour,
	).Register(e)

	handler.NewScanHandler(
		engine, tokens, verify.NewRateLimiter(), metrics, logger,
		cfg.ScanCooldown, cfg.DemoDepth,
	).Register(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.ListenAddr))
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}
