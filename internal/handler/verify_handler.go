package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/dispatcher"
	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/verify"
)

// VerifyHandler serves the email-ownership gate: request a code, confirm
// it, walk away with a one-time scan token.
type VerifyHandler struct {
	codes          *verify.CodeStore
	tokens         *verify.TokenStore
	requestLimiter Limiter
	attemptLimiter Limiter
	sender         dispatcher.Sender
	logger         *zap.Logger

	codeTTL       time.Duration
	maxAttempts   int
	lockout       time.Duration
	requestsPerHr int
}

// NewVerifyHandler wires the verification endpoints.
func NewVerifyHandler(codes *verify.CodeStore, tokens *verify.TokenStore, requestLimiter, attemptLimiter Limiter, sender dispatcher.Sender, logger *zap.Logger, codeTTL time.Duration, maxAttempts int, lockout time.Duration, requestsPerHr int) *VerifyHandler {
	return &VerifyHandler{
		codes:          codes,
		tokens:         tokens,
		requestLimiter: requestLimiter,
		attemptLimiter: attemptLimiter,
		sender:         sender,
		logger:         logger,
		codeTTL:        codeTTL,
		maxAttempts:    maxAttempts,
		lockout:        lockout,
		requestsPerHr:  requestsPerHr,
	}
}

// Register mounts the routes.
func (h *VerifyHandler) Register(e *echo.Echo) {
	e.POST("/api/verify/send", h.handleSend)
	e.POST("/api/verify/confirm", h.handleConfirm)
}

type sendRequest struct {
	Email string `json:"email"`
}

type confirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *VerifyHandler) handleSend(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil || !model.ValidEmail(req.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, errBody("Valid email required", 0))
	}

	allowed, retryAfter := h.requestLimiter.Allow(c.RealIP(), h.requestsPerHr, time.Hour, 0)
	if !allowed {
		return echo.NewHTTPError(http.StatusTooManyRequests,
			errBody("Too many requests", retryAfter))
	}

	code, err := h.codes.Create(req.Email)
	if err != nil {
		h.logger.Error("code creation failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, errBody("Failed to send", 0))
	}

	subject := "Your verification code"
	body := fmt.Sprintf(
		"<p>Your verification code is <strong>%s</strong>. It expires in %d minutes.</p>",
		code, int(h.codeTTL.Minutes()))
	if err := h.sender.Send(c.Request().Context(), req.Email, subject, body); err != nil {
		h.logger.Error("verification email failed",
			zap.String("email", model.MaskEmail(req.Email)), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, errBody("Failed to send", 0))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"masked_email": model.MaskEmail(req.Email),
		"expires_in":   int(h.codeTTL.Seconds()),
		"message":      "Code sent",
	})
}

func (h *VerifyHandler) handleConfirm(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil || !model.ValidEmail(req.Email) || req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, errBody("Email and code required", 0))
	}

	rateKey := c.RealIP() + ":" + req.Email
	allowed, retryAfter := h.attemptLimiter.Allow(rateKey, h.maxAttempts, h.codeTTL, h.lockout)
	if !allowed {
		return echo.NewHTTPError(http.StatusTooManyRequests,
			errBody("Too many attempts", retryAfter))
	}

	if err := h.codes.Verify(req.Email, req.Code); err != nil {
		msg := "Verification failed"
		switch {
		case errors.Is(err, verify.ErrNoPending):
			msg = "No verification pending"
		case errors.Is(err, verify.ErrCodeExpired):
			msg = "Code expired"
		case errors.Is(err, verify.ErrCodeUsed):
			msg = "Code already used"
		case errors.Is(err, verify.ErrTooManyTries):
			msg = "Too many attempts"
		case errors.Is(err, verify.ErrCodeMismatch):
			msg = "Invalid code"
		}
		return echo.NewHTTPError(http.StatusBadRequest, errBody(msg, 0))
	}

	token, err := h.tokens.Issue(req.Email)
	if err != nil {
		h.logger.Error("token issue failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, errBody("Verification failed", 0))
	}
	if resettable, ok := h.attemptLimiter.(interface{ Reset(string) }); ok {
		resettable.Reset(rateKey)
	}

	h.logger.Info("email verified", zap.String("email", model.MaskEmail(req.Email)))
	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"scan_token": token,
		"message":    "Verified. Token is single-use and short-lived.",
	})
}
