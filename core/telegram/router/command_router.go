// Package router turns registry entries into telebot routes with per-handler summaries.
package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/moviebot/core/logger"
	tg "github.com/m3rciful/moviebot/core/telegram"
)

// CommandRoutes binds every registered command to its slash endpoint.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}

	names := reg.Names()
	routes := make([]tg.Route, 0, len(names))
	for _, name := range names {
		_, def, _ := reg.LookupCommand(name)
		handlerName := normalizeHandlerName(name)
		h := def.Handler
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler: func(c tele.Context) error {
				return handleWithSummary(c, handlerName, time.Now(), func() error {
					return h(c)
				})
			},
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(names)),
	)
	return routes
}
