package bot

import (
	"github.com/ulugbekdev/cargobot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Reply-button labels. The router matches incoming text against these
// exactly, so they double as command triggers.
const (
	LabelPartySearch  = "🔍 Party status"
	LabelClientSearch = "📦 Track cargo"
	LabelContact      = "📞 Contact admin"
	LabelHelp         = "ℹ️ Help"

	LabelAddParty     = "➕ Add party"
	LabelDeleteParty  = "🗑 Delete party"
	LabelUpdateStatus = "✏️ Update status"
	LabelAddClient    = "➕ Add client"
	LabelDeleteClient = "🗑 Delete client"
	LabelAllParties   = "📋 All parties"
	LabelAllClients   = "📋 All clients"
	LabelBack         = "⬅️ Back"

	LabelCancel = "❌ Cancel"
)

// SkipWord leaves the optional image field of a new client empty.
const SkipWord = "-"

// CustomerMenu is the reply keyboard shown to regular users.
func CustomerMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{LabelPartySearch, LabelClientSearch},
		[]string{LabelContact, LabelHelp},
	)
}

// AdminMenu is the reply keyboard shown to administrators.
func AdminMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{LabelAddParty, LabelDeleteParty},
		[]string{LabelAddClient, LabelDeleteClient},
		[]string{LabelUpdateStatus},
		[]string{LabelAllParties, LabelAllClients},
		[]string{LabelBack},
	)
}

// CancelMarkup is shown while a flow is collecting input.
func CancelMarkup() *tele.ReplyMarkup {
	return keyboard.SingleButton(LabelCancel)
}
