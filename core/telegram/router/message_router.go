package router

import (
	"time"

	tg "github.com/ulugbekdev/cargobot/core/telegram"
	"github.com/ulugbekdev/cargobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM describes the minimal interface a conversation manager must implement
// for the router to feed it the messages no command claims.
type FSM interface {
	InProgress(userID int64) bool
	Handle(c tele.Context) error
}

// TextOptions controls dispatch and fallback behaviour for text and photo
// updates.
type TextOptions struct {
	// CancelLabel aborts an in-progress flow before the flow sees the
	// message. Empty disables the shortcut.
	CancelLabel string
	OnCancel    tele.HandlerFunc

	Admin middleware.AdminOptions

	UnknownText  tele.HandlerFunc
	UnknownPhoto tele.HandlerFunc
}

// MessageRoutes builds handlers for text and photo routing. The cancel
// label wins over everything; a registered command or menu label wins over
// an in-progress conversation, so pressing a menu button mid-flow starts
// that button's flow and the abandoned one is discarded.
func MessageRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		inFlow := fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID)

		if inFlow && opts.CancelLabel != "" && text == opts.CancelLabel {
			return handleWithSummary(c, "flow_cancel", start, "", "", func() error {
				if opts.OnCancel != nil {
					return opts.OnCancel(c)
				}
				return nil
			})
		}

		if reg != nil {
			if cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(text)
				h := middleware.WithAdminCheck(opts.Admin, cmd.AdminOnly, cmd.Handler)
				return handleWithSummary(c, name, start, "", "", func() error {
					return h(c)
				})
			}
		}

		if inFlow {
			return handleWithSummary(c, "flow", start, "", "", func() error {
				return fsmMgr.Handle(c)
			})
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	photoHandler := func(c tele.Context) error {
		start := time.Now()
		if fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "flow_photo", start, "", "", func() error {
				return fsmMgr.Handle(c)
			})
		}
		if opts.UnknownPhoto != nil {
			return handleWithSummary(c, "unexpected_photo", start, "", "", func() error {
				return opts.UnknownPhoto(c)
			})
		}
		logHandlerSummary(c, "unexpected_photo", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(photoHandler)),
		},
	}
}
