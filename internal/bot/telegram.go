package bot

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/moviebot/core/telegram"
	"github.com/m3rciful/moviebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/moviebot/core/telegram/helpers"
	"github.com/m3rciful/moviebot/core/telegram/router"
)

// NewRegistry registers the bot commands with handlers that delegate to svc. Plain text goes
// through the same handler so that awaited input is captured. A nil svc builds a registry
// usable only for publishing the command menu.
func NewRegistry(svc *Service) *tg.Registry {
	reg := tg.NewRegistry()
	h := func(tele.Context) error { return nil }
	if svc != nil {
		h = svc.telegramHandler
		reg.SetTextFallback(h)
	}
	for _, c := range commandDescriptions {
		reg.RegisterCommand(c.Name, commands.Command{Handler: h, Description: c.Description})
	}
	return reg
}

// Routes returns the long-poll routes for reg.
func Routes(reg *tg.Registry) []tg.Route {
	return append(router.CommandRoutes(reg), router.TextRoutes(reg)...)
}

func (s *Service) telegramHandler(c tele.Context) error {
	msg := Message{Text: c.Text()}
	if chat := c.Chat(); chat != nil {
		msg.ChatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		msg.UserID = user.ID
	}
	if msg.ChatID == 0 || msg.UserID == 0 || msg.Text == "" {
		c.Set(router.ResultKey, StatusIgnored)
		return nil
	}
	res := s.HandleMessage(tghelpers.BuildContext(c), msg)
	c.Set(router.ResultKey, res.Status)
	return nil
}

// OnRateLimited answers a user who writes faster than the rate limit allows.
func OnRateLimited(c tele.Context) error {
	return c.Send(msgTooFast)
}
