package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/moviebot/core/config"
	"github.com/m3rciful/moviebot/core/logger"
)

// Update kinds understood by RateLimitOptions.Exclude.
const (
	KindMessage = coreconfig.UpdateMessage
	KindCommand = coreconfig.UpdateCommand
	KindOther   = "other"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// UpdateKind classifies an update for rate limiting.
func UpdateKind(upd tele.Update) string {
	if upd.Message == nil {
		return KindOther
	}
	if strings.HasPrefix(strings.TrimSpace(upd.Message.Text), "/") {
		return KindCommand
	}
	return KindMessage
}

// sweepEvery bounds how often stale users are dropped from the last-seen table.
const sweepEvery = time.Minute

// lastSeen remembers when each user was last let through. Users idle for longer than the
// interval cannot be limited any more and are dropped on the next sweep.
type lastSeen struct {
	mu        sync.Mutex
	interval  time.Duration
	seen      map[int64]time.Time
	nextSweep time.Time
}

func newLastSeen(interval time.Duration) *lastSeen {
	return &lastSeen{interval: interval, seen: make(map[int64]time.Time)}
}

// allow records ts for userID unless the previous update came less than interval ago.
func (l *lastSeen) allow(userID int64, ts time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !ts.Before(l.nextSweep) {
		for id, last := range l.seen {
			if ts.Sub(last) >= l.interval {
				delete(l.seen, id)
			}
		}
		l.nextSweep = ts.Add(max(l.interval, sweepEvery))
	}
	if last, ok := l.seen[userID]; ok && ts.Sub(last) < l.interval {
		return false
	}
	l.seen[userID] = ts
	return true
}

func (l *lastSeen) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	users := newLastSeen(opts.Interval)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}

			if !users.allow(user.ID, now()) {
				attrs := []any{
					slog.String("event", "tg.rate_limit"),
					slog.Int64("user_id", user.ID),
				}
				if chat := c.Chat(); chat != nil {
					attrs = append(attrs, slog.Int64("chat_id", chat.ID))
				}
				logger.TG.Warn("rate limit", attrs...)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
