package telegram

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestNewPollerLongpollDefaultTimeout(t *testing.T) {
	p := NewPoller(PollerOptions{RunMode: RunModeLongpoll})
	lp, ok := p.(*tele.LongPoller)
	if !ok {
		t.Fatalf("poller type = %T", p)
	}
	if lp.Timeout != 60*time.Second {
		t.Fatalf("timeout = %v", lp.Timeout)
	}
}

func TestNewPollerWebhook(t *testing.T) {
	p := NewPoller(PollerOptions{
		RunMode:       "Webhook",
		WebhookListen: "0.0.0.0",
		WebhookPort:   8443,
		WebhookURL:    "https://bot.example.com/updates",
	})
	wh, ok := p.(*tele.Webhook)
	if !ok {
		t.Fatalf("poller type = %T", p)
	}
	if wh.Listen != "0.0.0.0:8443" {
		t.Fatalf("listen = %q", wh.Listen)
	}
	if wh.Endpoint.PublicURL != "https://bot.example.com/updates" {
		t.Fatalf("public url = %q", wh.Endpoint.PublicURL)
	}
}

func TestNewPollerUnknownModeFallsBackToLongpoll(t *testing.T) {
	p := NewPoller(PollerOptions{RunMode: "carrier-pigeon", LongPollTimeoutSeconds: 5})
	lp, ok := p.(*tele.LongPoller)
	if !ok {
		t.Fatalf("poller type = %T", p)
	}
	if lp.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v", lp.Timeout)
	}
}
