package notify

import (
	"context"
	"fmt"
	"net/http"
)

// discordColor is the embed accent (Augurion gold).
const discordColor = 0xE0A526

// DiscordSender posts embeds to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a sender for one webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: defaultHTTPClient}
}

// Send posts a single embed. Discord caps descriptions at 4096 characters.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	if r := []rune(message); len(r) > 4096 {
		message = string(r[:4093]) + "..."
	}
	err := postJSON(ctx, d.client, d.webhookURL, map[string]any{
		"embeds": []map[string]any{{
			"title":       title,
			"description": message,
			"color":       discordColor,
		}},
	})
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns "discord".
func (d *DiscordSender) Name() string { return "discord" }
