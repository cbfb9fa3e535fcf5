package helpers

import (
	"log/slog"
	"sync/atomic"

	"github.com/ulugbekdev/cargobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Dispatcher queues outbound messages for asynchronous delivery.
type Dispatcher interface {
	Enqueue(c tele.Context, what interface{}, opts ...interface{}) bool
}

var dispatcher atomic.Pointer[Dispatcher]

// SetDispatcher installs the outbound dispatcher used by SendText.
// Passing nil reverts to synchronous sends.
func SetDispatcher(d Dispatcher) {
	if d == nil {
		dispatcher.Store(nil)
		return
	}
	dispatcher.Store(&d)
}

func sendAsync(c tele.Context, what interface{}, opts ...interface{}) error {
	if p := dispatcher.Load(); p != nil {
		if (*p).Enqueue(c, what, opts...) {
			return nil
		}
		ctx := BuildContext(c)
		logger.Warn(ctx, "tg", "send.queue_full", slog.String("fallback", "sync"))
	}
	return c.Send(what, opts...)
}

// SendText delivers plain text through the async dispatcher when available,
// falling back to a synchronous send otherwise.
func SendText(c tele.Context, text string, opts ...interface{}) error {
	return sendAsync(c, text, opts...)
}
