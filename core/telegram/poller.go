package telegram

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// PollerOptions selects how the bot receives updates. The webhook fields
// are ignored in longpoll mode.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int

	WebhookListen string
	WebhookPort   int
	WebhookURL    string
}

// NewPoller builds the telebot poller for the configured run mode. Any
// value other than webhook falls back to long polling.
func NewPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), RunModeWebhook) {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", opts.WebhookListen, opts.WebhookPort),
			Endpoint: &tele.WebhookEndpoint{PublicURL: opts.WebhookURL},
		}
	}

	timeout := opts.LongPollTimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	return &tele.LongPoller{Timeout: time.Duration(timeout) * time.Second}
}
