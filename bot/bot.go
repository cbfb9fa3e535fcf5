// Package bot wires menus, conversation flows and record lookups into
// telebot routes.
package bot

import (
	"context"
	"time"

	"github.com/ulugbekdev/cargobot/bot/session"
	"github.com/ulugbekdev/cargobot/cache"
	coreconfig "github.com/ulugbekdev/cargobot/core/config"
	tg "github.com/ulugbekdev/cargobot/core/telegram"
	tghelpers "github.com/ulugbekdev/cargobot/core/telegram/helpers"
	"github.com/ulugbekdev/cargobot/core/telegram/middleware"
	"github.com/ulugbekdev/cargobot/core/telegram/router"
	"github.com/ulugbekdev/cargobot/store"

	tele "gopkg.in/telebot.v4"
)

// storeTimeout bounds every store mutation issued from a handler.
const storeTimeout = 5 * time.Second

// addClientOrder is the sequence of questions the add-client flow asks.
var addClientOrder = []session.ClientField{
	session.FieldID,
	session.FieldMesta,
	session.FieldKub,
	session.FieldKg,
	session.FieldDestination,
	session.FieldDate,
	session.FieldImage,
	session.FieldParty,
}

// Bot owns the conversation engine and its dependencies.
type Bot struct {
	store    store.Store
	cache    *cache.Cache
	sessions *session.Manager
	admin    middleware.AdminOptions
}

// New assembles a bot over the given store and cache.
func New(cfg *coreconfig.Config, st store.Store, ch *cache.Cache) *Bot {
	b := &Bot{
		store:    st,
		cache:    ch,
		sessions: session.NewManager(),
	}
	b.admin = middleware.AdminOptions{
		Admins:   middleware.AdminSet(cfg.Telegram.AdminIDs),
		OnReject: b.handleAdminReject,
	}
	return b
}

// InProgress reports whether the user has an active conversation.
func (b *Bot) InProgress(userID int64) bool {
	return b.sessions.InProgress(userID)
}

// Registry builds the menu registry: /start plus every reply-button label.
// Labels are hidden from the slash-command list.
func (b *Bot) Registry() *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", tg.Command{
		Handler:     b.handleStart,
		Description: "Show the menu",
	})

	customer := map[string]tele.HandlerFunc{
		LabelPartySearch:  b.startPartyLookup,
		LabelClientSearch: b.startClientLookup,
		LabelContact:      b.handleContact,
		LabelHelp:         b.handleHelp,
	}
	for label, h := range customer {
		reg.RegisterCommand(label, tg.Command{Handler: h, Hidden: true})
	}

	admin := map[string]tele.HandlerFunc{
		LabelAddParty:     b.startAddParty,
		LabelDeleteParty:  b.startDeleteParty,
		LabelUpdateStatus: b.startUpdateStatus,
		LabelAddClient:    b.startAddClient,
		LabelDeleteClient: b.startDeleteClient,
		LabelAllParties:   b.handleListParties,
		LabelAllClients:   b.handleListClients,
	}
	for label, h := range admin {
		reg.RegisterCommand(label, tg.Command{Handler: h, AdminOnly: true, Hidden: true})
	}

	reg.RegisterCommand(LabelBack, tg.Command{Handler: b.handleBack, Hidden: true})

	return reg
}

// Routes returns text and photo routes. Menu labels dispatch even while a
// flow is collecting input, so pressing another button restarts from that
// button. Text that matches nothing and belongs to no flow is dropped.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	return router.MessageRoutes(b, reg, router.TextOptions{
		CancelLabel: LabelCancel,
		OnCancel:    b.handleCancel,
		Admin:       b.admin,
	})
}

func (b *Bot) isAdmin(c tele.Context) bool {
	sender := c.Sender()
	return sender != nil && b.admin.Allowed(sender.ID)
}

// storeCtx derives a bounded context for one store call. The cancel func
// must be deferred by the caller.
func storeCtx(c tele.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(tghelpers.BuildContext(c), storeTimeout)
}
