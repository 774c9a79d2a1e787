// Package handler exposes the HTTP surface: the verification endpoints
// and the SSE scan stream.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/scan"
)

// ScanEngine is the scan entry point the handler drives.
type ScanEngine interface {
	Run(ctx context.Context, email string, depth int) (<-chan scan.Event, error)
}

// TokenConsumer validates and consumes one-time scan tokens.
type TokenConsumer interface {
	Consume(token string) (string, error)
}

// Limiter is the sliding-window rate limit check.
type Limiter interface {
	Allow(key string, maxRequests int, window, lockout time.Duration) (bool, time.Duration)
}

// ScanHandler serves /api/scan and /api/scan/demo.
type ScanHandler struct {
	engine    ScanEngine
	tokens    TokenConsumer
	limiter   Limiter
	metrics   *Metrics
	logger    *zap.Logger
	cooldown  time.Duration
	demoDepth int
}

// NewScanHandler wires the scan endpoints.
func NewScanHandler(engine ScanEngine, tokens TokenConsumer, limiter Limiter, metrics *Metrics, logger *zap.Logger, cooldown time.Duration, demoDepth int) *ScanHandler {
	return &ScanHandler{
		engine:    engine,
		tokens:    tokens,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
		cooldown:  cooldown,
		demoDepth: demoDepth,
	}
}

// Register mounts the routes.
func (h *ScanHandler) Register(e *echo.Echo) {
	e.GET("/api/scan", h.handleScan)
	e.GET("/api/scan/demo", h.handleDemo)
}

func (h *ScanHandler) handleScan(c echo.Context) error {
	token := c.QueryParam("token")
	if len(token) < 32 || len(token) > 64 {
		return echo.NewHTTPError(http.StatusBadRequest, errBody("Malformed token", 0))
	}
	depth := 1
	if raw := c.QueryParam("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 3 {
			return echo.NewHTTPError(http.StatusBadRequest, errBody("Depth must be 1-3", 0))
		}
		depth = n
	}

	email, err := h.tokens.Consume(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, errBody("Invalid or expired token", 0))
	}

	// One scan per verified email per cooldown window.
	allowed, retryAfter := h.limiter.Allow(email, 1, h.cooldown, 0)
	if !allowed {
		return echo.NewHTTPError(http.StatusTooManyRequests,
			errBody("Rate limited. One scan per email per cooldown window.", retryAfter))
	}

	events, err := h.engine.Run(c.Request().Context(), email, depth)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errBody("Invalid scan target", 0))
	}

	h.metrics.ScanStarted(c.Request().Context(), depth)
	started := time.Now()
	h.logger.Info("scan stream opened",
		zap.String("email", model.MaskEmail(email)), zap.Int("depth", depth))

	err = h.stream(c, events)
	h.metrics.ScanFinished(c.Request().Context(), depth, time.Since(started), err == nil)
	return err
}

// handleDemo streams a fixed-depth scan of a placeholder address with no
// verification. Intended for frontend development against live framing.
func (h *ScanHandler) handleDemo(c echo.Context) error {
	events, err := h.engine.Run(c.Request().Context(), "demo@example.com", h.demoDepth)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, errBody("demo unavailable", 0))
	}
	return h.stream(c, events)
}

// stream forwards engine events as server-sent events, flushing per event
// so findings render as they arrive.
func (h *ScanHandler) stream(c echo.Context, events <-chan scan.Event) error {
	resp := c.Response()
	header := resp.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set(echo.HeaderCacheControl, "no-cache")
	header.Set(echo.HeaderConnection, "keep-alive")
	header.Set("X-Accel-Buffering", "no") // disable proxy buffering
	resp.WriteHeader(http.StatusOK)

	for ev := range events {
		payload, err := json.Marshal(ev.Body())
		if err != nil {
			h.logger.Error("event marshal failed", zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
			// Client went away; the request context cancellation stops
			// the engine, just drain the channel here.
			for range events {
			}
			return nil
		}
		resp.Flush()
	}
	return nil
}

func errBody(msg string, retryAfter time.Duration) map[string]any {
	body := map[string]any{"success": false, "error": msg}
	if retryAfter > 0 {
		body["retry_after"] = int(retryAfter.Seconds())
	}
	return body
}
