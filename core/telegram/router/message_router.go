package router

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/moviebot/core/telegram"
)

// TextRoutes routes text that telebot did not match to a command endpoint. Commands
// addressed as /cmd@bot_name still reach their registered handler; everything else goes
// to the registry's text fallback.
func TextRoutes(reg *tg.Registry) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if reg == nil {
			return nil
		}
		if name, ok := commandName(c.Text()); ok {
			if key, cmd, found := reg.LookupCommand(name); found {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
		}
		if fb := reg.TextFallback(); fb != nil {
			return handleWithSummary(c, "text", start, func() error {
				return fb(c)
			})
		}
		logHandlerSummary(c, "unknown_text", start, nil)
		return nil
	}

	return []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
}

// commandName extracts "/name" from "/name@bot args".
func commandName(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		text = text[:i]
	}
	if i := strings.IndexByte(text, '@'); i >= 0 {
		text = text[:i]
	}
	return strings.ToLower(text), true
}
