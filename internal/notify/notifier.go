// Package notify delivers rendered alert messages.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradewatch/internal/config"
	"tradewatch/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Notifier delivers a message, optionally addressed to a recipient handle.
type Notifier interface {
	Send(ctx context.Context, message, recipient string) error
}

// New returns the webhook notifier, or a log-only notifier when dry run is
// enabled or no webhook is configured.
func New(cfg *config.Notifier, logger *zap.Logger) Notifier {
	if cfg.DryRun || cfg.WebhookURL == "" {
		logger.Warn("Notifier running in dry-run mode, alerts are only logged")
		return NewLogNotifier(logger)
	}
	return NewWebhook(cfg, logger)
}

// Webhook posts messages to a Discord-compatible webhook.
type Webhook struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

var _ Notifier = (*Webhook)(nil)

// NewWebhook creates a webhook notifier.
func NewWebhook(cfg *config.Notifier, logger *zap.Logger) *Webhook {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout) * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Webhook{
		client: client,
		url:    cfg.WebhookURL,
		logger: logger.Named("webhook"),
	}
}

type allowedMentions struct {
	Parse []string `json:"parse"`
	Users []string `json:"users,omitempty"`
}

type webhookPayload struct {
	Content         string          `json:"content"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// Send posts message. When recipient is set only that user may be pinged.
// Failures wrap models.ErrUpstreamDelivery.
func (w *Webhook) Send(ctx context.Context, message, recipient string) error {
	payload := webhookPayload{
		Content:         message,
		AllowedMentions: allowedMentions{Parse: []string{}},
	}
	if recipient != "" {
		payload.AllowedMentions.Users = []string{recipient}
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w: %w", models.ErrUpstreamDelivery, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %s: %s: %w", resp.Status(), strings.TrimSpace(resp.String()), models.ErrUpstreamDelivery)
	}

	w.logger.Debug("Webhook delivered", zap.Int("status", resp.StatusCode()), zap.String("recipient", recipient))
	return nil
}

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Send(_ context.Context, message, recipient string) error {
	n.logger.Info("[Dry Run] Alert notification", zap.String("message", message), zap.String("recipient", recipient))
	return nil
}
