package bot

import (
	"fmt"
	"strings"

	tgformat "github.com/ulugbekdev/cargobot/core/telegram/format"
	tghelpers "github.com/ulugbekdev/cargobot/core/telegram/helpers"
	"github.com/ulugbekdev/cargobot/store"

	tele "gopkg.in/telebot.v4"
)

const (
	msgWelcome      = "Welcome! Pick an action from the menu below."
	msgHelp         = "Use \"" + LabelPartySearch + "\" to check a shipment batch by its code, or \"" + LabelClientSearch + "\" to look up your cargo by client ID."
	msgContact      = "Questions about your cargo? Message the operator: @cargo_operator"
	msgAdminsOnly   = "This action is available to administrators only."
	msgCancelled    = "Cancelled."
	msgStoreFailure = "Something went wrong, please try again later."
	msgNoPartiesYet = "No parties registered yet."
	msgNoClientsYet = "No clients registered yet."
)

func (b *Bot) handleStart(c tele.Context) error {
	b.sessions.Clear(c.Sender().ID)
	return tghelpers.SendText(c, msgWelcome, b.menuFor(c))
}

// handleBack switches to the customer view. The button only exists on the
// admin keyboard; /start brings the admin keyboard back.
func (b *Bot) handleBack(c tele.Context) error {
	b.sessions.Clear(c.Sender().ID)
	return tghelpers.SendText(c, msgWelcome, CustomerMenu())
}

func (b *Bot) handleHelp(c tele.Context) error {
	return tghelpers.SendText(c, msgHelp)
}

func (b *Bot) handleContact(c tele.Context) error {
	return tghelpers.SendText(c, msgContact)
}

func (b *Bot) handleAdminReject(c tele.Context) error {
	return tghelpers.SendText(c, msgAdminsOnly, CustomerMenu())
}

// handleCancel aborts the active flow without touching the store.
func (b *Bot) handleCancel(c tele.Context) error {
	b.sessions.Clear(c.Sender().ID)
	return tghelpers.SendText(c, msgCancelled, b.menuFor(c))
}

func (b *Bot) handleListParties(c tele.Context) error {
	parties := b.cache.Parties()
	if len(parties) == 0 {
		return tghelpers.SendText(c, msgNoPartiesYet)
	}
	lines := make([]string, 0, len(parties))
	for _, p := range parties {
		lines = append(lines, fmt.Sprintf("%s: %s", p.Code, p.Status))
	}
	return b.sendChunked(c, strings.Join(lines, "\n"))
}

func (b *Bot) handleListClients(c tele.Context) error {
	clients := b.cache.Clients()
	if len(clients) == 0 {
		return tghelpers.SendText(c, msgNoClientsYet)
	}
	lines := make([]string, 0, len(clients))
	for _, cl := range clients {
		lines = append(lines, clientLine(cl))
	}
	return b.sendChunked(c, strings.Join(lines, "\n"))
}

// sendChunked splits long listings so every outbound message stays under
// the Telegram size cap. Chunks go out in order.
func (b *Bot) sendChunked(c tele.Context, text string) error {
	for _, chunk := range tgformat.ChunkRunes(text, tgformat.DefaultChunkSize) {
		if err := tghelpers.SendText(c, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) menuFor(c tele.Context) *tele.ReplyMarkup {
	if b.isAdmin(c) {
		return AdminMenu()
	}
	return CustomerMenu()
}

func clientLine(cl store.Client) string {
	return fmt.Sprintf("%s | %s | %s | %s | %s | %s | %s",
		cl.ID, cl.Party, cl.Mesta, cl.Kub, cl.Kg, cl.Destination, cl.Date)
}

func clientCard(cl store.Client, status string) string {
	return fmt.Sprintf(
		"Client %s\nParty: %s\nStatus: %s\nMesta: %s\nKub: %s\nKg: %s\nDestination: %s\nDate: %s",
		cl.ID, cl.Party, status, cl.Mesta, cl.Kub, cl.Kg, cl.Destination, cl.Date)
}
