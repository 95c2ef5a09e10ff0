package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/moviebot/core/logger"
	"github.com/m3rciful/moviebot/core/telegram/commands"
)

// Registry holds bot commands in registration order, which is also the menu order.
type Registry struct {
	order        []string
	commands     map[string]commands.Command
	textFallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]commands.Command)}
}

// RegisterCommand adds a command. Names must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if r == nil || name == "" || cmd.Handler == nil || cmd.Description == "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "invalid"),
		)
		return
	}
	if name[0] != '/' {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "no_slash_prefix"),
		)
		return
	}
	if _, exists := r.commands[name]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.duplicate",
			slog.String("name", name),
		)
		return
	}
	r.order = append(r.order, name)
	r.commands[name] = cmd
}

// ListCommands returns the menu entries, optionally without hidden commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.order))
	for _, name := range r.order {
		meta := r.commands[name]
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	return list
}

// LookupCommand finds a command by name, with or without the leading slash.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// Names returns the registered command names in order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// SetTextFallback sets the handler for text that is not a registered command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// CommandSetter is the part of *tele.Bot used to publish the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// InitBotCommands publishes the visible commands as the bot's command menu.
func InitBotCommands(bot CommandSetter, reg *Registry) error {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("set commands: %w", err)
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "register.commands.set",
		slog.Int("commands", len(list)),
	)
	return nil
}
