package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/handler"
	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/scan"
)

// ── mocks ───────────────────────────────────────────────────────────────

type mockEngine struct {
	run func(ctx context.Context, email string, depth int) (<-chan scan.Event, error)
}

var _ handler.ScanEngine = (*mockEngine)(nil)

func (m *mockEngine) Run(ctx context.Context, email string, depth int) (<-chan scan.Event, error) {
	return m.run(ctx, email, depth)
}

type mockTokens struct {
	consume func(token string) (string, error)
}

var _ handler.TokenConsumer = (*mockTokens)(nil)

func (m *mockTokens) Consume(token string) (string, error) { return m.consume(token) }

type mockLimiter struct {
	allow func(key string, maxRequests int, window, lockout time.Duration) (bool, time.Duration)
	reset func(key string)
}

var _ handler.Limiter = (*mockLimiter)(nil)

func (m *mockLimiter) Allow(key string, maxRequests int, window, lockout time.Duration) (bool, time.Duration) {
	if m.allow == nil {
		return true, 0
	}
	return m.allow(key, maxRequests, window, lockout)
}

func (m *mockLimiter) Reset(key string) {
	if m.reset != nil {
		m.reset(key)
	}
}

// ── helpers ─────────────────────────────────────────────────────────────

const testToken = "0123456789abcdef0123456789abcdef" // 32 chars

func eventChannel(events ...scan.Event) <-chan scan.Event {
	ch := make(chan scan.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func newScanServer(engine handler.ScanEngine, tokens handler.TokenConsumer, limiter handler.Limiter) *echo.Echo {
	e := echo.New()
	handler.NewScanHandler(engine, tokens, limiter, nil, zap.NewNop(), time.Hour, 2).Register(e)
	return e
}

// ── tests ───────────────────────────────────────────────────────────────

func TestScanHandler_MalformedToken(t *testing.T) {
	e := newScanServer(&mockEngine{}, &mockTokens{}, &mockLimiter{})

	req := httptest.NewRequest(http.MethodGet, "/api/scan?token=short", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandler_BadDepth(t *testing.T) {
	e := newScanServer(&mockEngine{}, &mockTokens{}, &mockLimiter{})

	req := httptest.NewRequest(http.MethodGet, "/api/scan?token="+testToken+"&depth=9", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandler_InvalidToken(t *testing.T) {
	tokens := &mockTokens{consume: func(string) (string, error) {
		return "", errors.New("verify: invalid token")
	}}
	e := newScanServer(&mockEngine{}, tokens, &mockLimiter{})

	req := httptest.NewRequest(http.MethodGet, "/api/scan?token="+testToken, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScanHandler_Cooldown(t *testing.T) {
	tokens := &mockTokens{consume: func(string) (string, error) { return "user@example.com", nil }}
	limiter := &mockLimiter{allow: func(key string, maxRequests int, window, lockout time.Duration) (bool, time.Duration) {
		assert.Equal(t, "user@example.com", key)
		assert.Equal(t, 1, maxRequests)
		return false, 30 * time.Minute
	}}
	e := newScanServer(&mockEngine{}, tokens, limiter)

	req := httptest.NewRequest(http.MethodGet, "/api/scan?token="+testToken, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "retry_after")
}

func TestScanHandler_StreamsEvents(t *testing.T) {
	finding := model.New(model.TypeBreach, model.SeverityHigh, "Found in 1 Data Breach(es)")
	engine := &mockEngine{run: func(ctx context.Context, email string, depth int) (<-chan scan.Event, error) {
		assert.Equal(t, "user@example.com", email)
		assert.Equal(t, 2, depth)
		return eventChannel(
			scan.Event{Type: scan.EventStart, Depth: depth},
			scan.Event{Type: scan.EventFinding, Finding: &finding},
			scan.Event{Type: scan.EventComplete, Results: &scan.Results{ScanID: "abc"}},
		), nil
	}}
	tokens := &mockTokens{consume: func(token string) (string, error) {
		assert.Equal(t, testToken, token)
		return "user@example.com", nil
	}}
	e := newScanServer(engine, tokens, &mockLimiter{})

	req := httptest.NewRequest(http.MethodGet, "/api/scan?token="+testToken+"&depth=2", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: start\n")
	assert.Contains(t, body, "event: finding\n")
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, `"scan_id":"abc"`)
	assert.Equal(t, 3, strings.Count(body, "data: "))
}

func TestScanHandler_EngineRejection(t *testing.T) {
	engine := &mockEngine{run: func(context.Context, string, int) (<-chan scan.Event, error) {
		return nil, scan.ErrInvalidSeed
	}}
	tokens := &mockTokens{consume: func(string) (string, error) { return "user@example.com", nil }}
	e := newScanServer(engine, tokens, &mockLimiter{})

	req := httptest.NewRequest(http.MethodGet, "/api/scan?token="+testToken, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandler_Demo(t *testing.T) {
	var gotEmail string
	var gotDepth int
	engine := &mockEngine{run: func(ctx context.Context, email string, depth int) (<-chan scan.Event, error) {
		gotEmail, gotDepth = email, depth
		return eventChannel(scan.Event{Type: scan.EventComplete, Results: &scan.Results{}}), nil
	}}
	e := newScanServer(engine, &mockTokens{}, &mockLimiter{})

	req := httptest.NewRequest(http.MethodGet, "/api/scan/demo", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "demo@example.com", gotEmail)
	assert.Equal(t, 2, gotDepth, "demo scans run at the configured depth")
}
