// Package dispatcher sends verification emails. The production
// implementation posts to the Resend API; a logging stub stands in when
// no API key is configured so local runs work end to end.
package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/client"
	"github.com/trace-osint/trace/internal/model"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// ResendSender posts through the Resend transactional API. The key comes
// from configuration; there is deliberately no default.
type ResendSender struct {
	client *client.Client
	logger *zap.Logger
	apiKey string
	from   string
}

// NewResendSender builds a sender. from is the verified sender address.
func NewResendSender(c *client.Client, logger *zap.Logger, apiKey, from string) *ResendSender {
	return &ResendSender{client: c, logger: logger, apiKey: apiKey, from: from}
}

func (s *ResendSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload := map[string]any{
		"from":    s.from,
		"to":      []string{to},
		"subject": subject,
		"html":    htmlBody,
	}
	var out struct {
		ID string `json:"id"`
	}
	outcome, err := s.client.PostJSON(ctx, "https://api.resend.com/emails", payload, &out,
		&client.Options{BearerToken: s.apiKey})
	if err != nil {
		return fmt.Errorf("dispatcher.Send: %w", err)
	}
	if !outcome.OK() {
		return fmt.Errorf("dispatcher.Send: provider returned %d", outcome.StatusCode)
	}
	s.logger.Info("verification email dispatched",
		zap.String("to", model.MaskEmail(to)),
		zap.String("message_id", out.ID),
	)
	return nil
}

// LogSender logs instead of sending. Local development only; the code
// being "sent" appears in the log.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender { return &LogSender{logger: logger} }

func (s *LogSender) Send(_ context.Context, to, subject, htmlBody string) error {
	s.logger.Info("email dispatched (stub)",
		zap.String("to", model.MaskEmail(to)),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)),
	)
	return nil
}

var (
	_ Sender = (*ResendSender)(nil)
	_ Sender = (*LogSender)(nil)
)
