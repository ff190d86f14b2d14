// Package notify pushes editorial and operational alerts (reports ready,
// recommendations, resolutions) to Telegram and Discord.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/config"
)

// Event names accepted in notify.events.
const (
	EventReportReady     = "report_ready"
	EventReportPublished = "report_published"
	EventRecommendation  = "attention_recommendation"
	EventMarketResolved  = "market_resolved"
	EventError           = "error"
)

// Sender delivers a single message to one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a message out to every sender when its event is enabled.
type Notifier struct {
	senders []Sender
	enabled map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list enables everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	enabled := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			enabled[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		enabled: enabled,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// FromConfig builds senders for every channel that has credentials.
func FromConfig(cfg config.NotifyConfig, logger *slog.Logger) *Notifier {
	var senders []Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return NewNotifier(senders, cfg.Events, logger)
}

// Enabled reports whether event would be delivered.
func (n *Notifier) Enabled(event string) bool {
	return len(n.enabled) == 0 || n.enabled[event]
}

// Notify delivers title and message for event. Disabled events are dropped
// silently. Every sender is attempted; failures are joined.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if n == nil || len(n.senders) == 0 {
		return nil
	}
	if !n.Enabled(event) {
		n.logger.DebugContext(ctx, "event disabled", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
