package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ulugbekdev/cargobot/bot/session"
	"github.com/ulugbekdev/cargobot/core/logger"
	tghelpers "github.com/ulugbekdev/cargobot/core/telegram/helpers"
	"github.com/ulugbekdev/cargobot/store"

	tele "gopkg.in/telebot.v4"
)

const (
	promptPartyCode    = "Enter the party code:"
	promptClientID     = "Enter your client ID:"
	promptNewPartyCode = "Enter the new party code:"
	promptDeleteParty  = "Enter the party code to delete:"
	promptDeleteClient = "Enter the client ID to delete:"

	msgPartyNotFound  = "No party with that code."
	msgClientNotFound = "No client with that ID."
)

var fieldPrompts = map[session.ClientField]string{
	session.FieldID:          "Enter the client ID:",
	session.FieldMesta:       "Enter mesta (number of pieces):",
	session.FieldKub:         "Enter the volume in cubic meters:",
	session.FieldKg:          "Enter the weight in kg:",
	session.FieldDestination: "Enter the destination:",
	session.FieldDate:        "Enter the date:",
	session.FieldImage:       "Send a photo, an image URL, or \"" + SkipWord + "\" to skip:",
	session.FieldParty:       "Enter the party code for this cargo:",
}

// Flow entry points. Starting a flow replaces whatever session the user
// already had.

func (b *Bot) startPartyLookup(c tele.Context) error {
	b.startFlow(c, session.StepPartyLookupCode)
	return tghelpers.SendText(c, promptPartyCode, CancelMarkup())
}

func (b *Bot) startClientLookup(c tele.Context) error {
	b.startFlow(c, session.StepClientLookupID)
	return tghelpers.SendText(c, promptClientID, CancelMarkup())
}

func (b *Bot) startAddParty(c tele.Context) error {
	b.startFlow(c, session.StepAddPartyCode)
	return tghelpers.SendText(c, promptNewPartyCode, CancelMarkup())
}

func (b *Bot) startDeleteParty(c tele.Context) error {
	b.startFlow(c, session.StepDeletePartyCode)
	return tghelpers.SendText(c, promptDeleteParty, CancelMarkup())
}

func (b *Bot) startUpdateStatus(c tele.Context) error {
	b.startFlow(c, session.StepUpdateStatusCode)
	return tghelpers.SendText(c, promptPartyCode, CancelMarkup())
}

func (b *Bot) startAddClient(c tele.Context) error {
	sess := b.startFlow(c, session.StepAddClient)
	sess.Lock()
	sess.Pending = append([]session.ClientField(nil), addClientOrder...)
	first := sess.Pending[0]
	sess.Unlock()
	return tghelpers.SendText(c, fieldPrompts[first], CancelMarkup())
}

func (b *Bot) startDeleteClient(c tele.Context) error {
	b.startFlow(c, session.StepDeleteClientID)
	return tghelpers.SendText(c, promptDeleteClient, CancelMarkup())
}

func (b *Bot) startFlow(c tele.Context, step session.Step) *session.Session {
	sess := b.sessions.Start(c.Sender().ID, step)
	logger.FLOW.Debug("flow started",
		slog.String("event", "flow.start"),
		slog.String("step", step.String()),
		slog.Int64("user_id", c.Sender().ID),
	)
	return sess
}

// Handle advances the user's active conversation by one message. The
// router calls it only when a session exists. The session lock is held
// for the whole step, so a burst of messages from one user is applied
// one at a time.
func (b *Bot) Handle(c tele.Context) error {
	sess := b.sessions.Get(c.Sender().ID)
	if sess == nil {
		return nil
	}
	sess.Lock()
	defer sess.Unlock()

	switch sess.Step {
	case session.StepPartyLookupCode:
		return b.stepPartyLookup(c)
	case session.StepClientLookupID:
		return b.stepClientLookup(c)
	case session.StepAddPartyCode:
		return b.stepAddParty(c)
	case session.StepDeletePartyCode:
		return b.stepDeleteParty(c)
	case session.StepUpdateStatusCode:
		return b.stepUpdateStatusCode(c, sess)
	case session.StepUpdateStatusValue:
		return b.stepUpdateStatusValue(c, sess)
	case session.StepAddClient:
		return b.stepAddClient(c, sess)
	case session.StepDeleteClientID:
		return b.stepDeleteClient(c)
	default:
		b.sessions.Clear(c.Sender().ID)
		return nil
	}
}

// stepPartyLookup answers a status query. A miss keeps the session alive
// so the user can correct a typo without restarting the flow.
func (b *Bot) stepPartyLookup(c tele.Context) error {
	code := strings.TrimSpace(c.Text())
	p, ok := b.cache.Party(code)
	if !ok {
		return tghelpers.SendText(c,
			fmt.Sprintf("No party with code %q. Try another code:", code), CancelMarkup())
	}
	b.sessions.Clear(c.Sender().ID)
	return tghelpers.SendText(c,
		fmt.Sprintf("Party %s: %s", p.Code, p.Status), b.menuFor(c))
}

func (b *Bot) stepClientLookup(c tele.Context) error {
	id := strings.TrimSpace(c.Text())
	b.sessions.Clear(c.Sender().ID)

	cl, ok := b.cache.Client(id)
	if !ok {
		return tghelpers.SendText(c, msgClientNotFound, b.menuFor(c))
	}

	card := clientCard(cl, b.cache.ResolveStatus(cl.Party))
	if cl.Image != "" {
		if err := b.sendClientPhoto(c, cl.Image, card); err == nil {
			return nil
		}
	}
	return tghelpers.SendText(c, card, b.menuFor(c))
}

// sendClientPhoto delivers the card as a photo caption. It sends
// synchronously so a failure can fall back to plain text in-handler.
func (b *Bot) sendClientPhoto(c tele.Context, image, caption string) error {
	photo := &tele.Photo{Caption: caption}
	if strings.HasPrefix(image, "http") {
		photo.File = tele.FromURL(image)
	} else {
		photo.File = tele.File{FileID: image}
	}
	if err := c.Send(photo, b.menuFor(c)); err != nil {
		ctx := tghelpers.BuildContext(c)
		logger.Warn(ctx, "flow", "client_photo.fail",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		return err
	}
	return nil
}

func (b *Bot) stepAddParty(c tele.Context) error {
	code := strings.TrimSpace(c.Text())
	return b.finishMutation(c, "add_party",
		func(ctx context.Context) error {
			return b.store.AppendParty(ctx, store.Party{Code: code, Status: store.StatusNew})
		},
		fmt.Sprintf("Party %s added.", code), "")
}

func (b *Bot) stepDeleteParty(c tele.Context) error {
	code := strings.TrimSpace(c.Text())
	return b.finishMutation(c, "delete_party",
		func(ctx context.Context) error { return b.store.DeleteParty(ctx, code) },
		fmt.Sprintf("Party %s deleted.", code), msgPartyNotFound)
}

func (b *Bot) stepUpdateStatusCode(c tele.Context, sess *session.Session) error {
	sess.StatusCode = strings.TrimSpace(c.Text())
	sess.Step = session.StepUpdateStatusValue
	return tghelpers.SendText(c,
		fmt.Sprintf("Enter the new status for %s:", sess.StatusCode), CancelMarkup())
}

func (b *Bot) stepUpdateStatusValue(c tele.Context, sess *session.Session) error {
	code := sess.StatusCode
	status := strings.TrimSpace(c.Text())
	return b.finishMutation(c, "update_status",
		func(ctx context.Context) error { return b.store.UpdatePartyStatus(ctx, code, status) },
		fmt.Sprintf("Party %s is now %q.", code, status), msgPartyNotFound)
}

// stepAddClient consumes one answer from the pending field queue. The
// image field additionally accepts a photo upload or the skip word.
func (b *Bot) stepAddClient(c tele.Context, sess *session.Session) error {
	if len(sess.Pending) == 0 {
		b.sessions.Clear(c.Sender().ID)
		return nil
	}

	field := sess.Pending[0]
	value := strings.TrimSpace(c.Text())

	if field == session.FieldImage {
		switch {
		case photoFileID(c) != "":
			value = photoFileID(c)
		case value == SkipWord:
			value = ""
		}
	}

	sess.Draft.Set(field, value)
	sess.Pending = sess.Pending[1:]

	if len(sess.Pending) > 0 {
		return tghelpers.SendText(c, fieldPrompts[sess.Pending[0]], CancelMarkup())
	}

	d := sess.Draft
	record := store.Client{
		ID:          d.ID,
		Party:       d.Party,
		Mesta:       d.Mesta,
		Kub:         d.Kub,
		Kg:          d.Kg,
		Destination: d.Destination,
		Date:        d.Date,
		Image:       d.Image,
	}
	return b.finishMutation(c, "add_client",
		func(ctx context.Context) error { return b.store.AppendClient(ctx, record) },
		fmt.Sprintf("Client %s added.", record.ID), "")
}

func (b *Bot) stepDeleteClient(c tele.Context) error {
	id := strings.TrimSpace(c.Text())
	return b.finishMutation(c, "delete_client",
		func(ctx context.Context) error { return b.store.DeleteClient(ctx, id) },
		fmt.Sprintf("Client %s deleted.", id), msgClientNotFound)
}

// finishMutation runs the terminal store call of a flow, refreshes the
// cache on success and always clears the session. notFound, when set,
// replaces the generic failure notice for ErrNotFound.
func (b *Bot) finishMutation(c tele.Context, flow string, op func(ctx context.Context) error, confirm, notFound string) error {
	defer b.sessions.Clear(c.Sender().ID)

	ctx, cancel := storeCtx(c)
	err := op(ctx)
	cancel()
	if err != nil {
		logger.FLOW.Error("flow store call failed",
			slog.String("event", "flow.fail"),
			slog.String("flow", flow),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		if notFound != "" && errors.Is(err, store.ErrNotFound) {
			return tghelpers.SendText(c, notFound, b.menuFor(c))
		}
		return tghelpers.SendText(c, msgStoreFailure, b.menuFor(c))
	}

	reloadCtx, cancelReload := storeCtx(c)
	if err := b.cache.Reload(reloadCtx); err != nil {
		logger.CACHE.Warn("post-write reload failed",
			slog.String("event", "reload"),
			slog.String("flow", flow),
			slog.String("err", err.Error()),
		)
	}
	cancelReload()

	logger.FLOW.Info("flow completed",
		slog.String("event", "flow.done"),
		slog.String("flow", flow),
		slog.Int64("user_id", c.Sender().ID),
	)
	return tghelpers.SendText(c, confirm, b.menuFor(c))
}

func photoFileID(c tele.Context) string {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return ""
	}
	return msg.Photo.FileID
}
