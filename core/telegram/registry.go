package telegram

import (
	"context"
	"sort"
	"strings"

	"github.com/ulugbekdev/cargobot/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Command represents a bot entry keyed by the exact text that triggers it:
// either a slash command ("/start") or a reply-keyboard button label.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
}

// Registry holds menu entries and fallbacks for the text router.
type Registry struct {
	commands     map[string]Command
	textFallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// RegisterCommand adds a new entry under its trigger text.
func (r *Registry) RegisterCommand(trigger string, cmd Command) {
	if r == nil || strings.TrimSpace(trigger) == "" || cmd.Handler == nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("trigger", trigger),
			slog.String("reason", "invalid"),
		)
		return
	}
	if _, exists := r.commands[trigger]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.duplicate",
			slog.String("trigger", trigger),
		)
		return
	}
	r.commands[trigger] = cmd
}

// LookupCommand matches trigger text verbatim against registered entries.
func (r *Registry) LookupCommand(text string) (Command, bool) {
	cmd, ok := r.commands[text]
	return cmd, ok
}

// Commands returns all registered entries.
func (r *Registry) Commands() map[string]Command {
	return r.commands
}

// ListSlashCommands returns the slash-command subset as tele.Command values,
// optionally filtering out hidden and admin-only entries.
func (r *Registry) ListSlashCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for trigger, meta := range r.commands {
		if !strings.HasPrefix(trigger, "/") {
			continue
		}
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(trigger, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// SetTextFallback sets a global fallback handler for unknown text messages.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// InitBotCommands publishes the slash-command subset to the Telegram command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	cmds := reg.ListSlashCommands(true)
	if len(cmds) == 0 {
		return
	}
	if err := bot.SetCommands(cmds); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
