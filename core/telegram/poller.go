package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/moviebot/core/config"
)

const defaultLongPollTimeout = 10 * time.Second

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
}

// BuildPoller returns the long poller, or nil in webhook mode where updates arrive through
// the service's own HTTP listener.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return nil
	}
	timeout := defaultLongPollTimeout
	if opts.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(opts.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}
