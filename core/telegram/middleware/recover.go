package middleware

import (
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/moviebot/core/logger"
	tghelpers "github.com/m3rciful/moviebot/core/telegram/helpers"
)

// RecoverMiddleware catches panics in handlers so one bad update cannot stop the poller.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelError, "tg.panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = nil
			}
		}()
		return next(c)
	}
}
