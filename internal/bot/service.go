// Package bot handles chat messages: it runs the conversation state machine against the
// session store and dispatches commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/moviebot/core/logger"
	"github.com/m3rciful/moviebot/core/metrics"
	"github.com/m3rciful/moviebot/internal/conversation"
	"github.com/m3rciful/moviebot/internal/quotaclient"
	"github.com/m3rciful/moviebot/internal/session"
	"github.com/m3rciful/moviebot/internal/summary"
)

// Result statuses besides the summary ones.
const (
	StatusStart                   = "start_command_handled"
	StatusAwaitingMovie           = "awaiting_movie_input"
	StatusAwaitingStyle           = "awaiting_style_input"
	StatusMovieSaved              = "movie_input_saved"
	StatusStyleSaved              = "style_input_saved"
	StatusInfoSent                = "user_info_sent"
	StatusInfoFailed              = "user_info_failed"
	StatusSubscriptionUnavailable = "subscription_unavailable"
	StatusSubscribed              = "subscribed"
	StatusSubscriptionFailed      = "subscription_failed"
	StatusUnknownCommand          = "unknown_command"
	StatusSessionUnavailable      = "session_unavailable"
	StatusIgnored                 = "ignored"
)

// Message is one incoming chat message.
type Message struct {
	ChatID int64
	UserID int64
	Text   string
}

// Result is how a message was handled.
type Result struct {
	Success bool
	Status  string
}

// QuotaAPI is the quota service as seen by the bot.
type QuotaAPI interface {
	UserInfo(ctx context.Context, telegramID int64) (quotaclient.UserInfo, error)
	Subscribe(ctx context.Context, telegramID int64) (quotaclient.Subscription, error)
}

// Summarizer runs the /generate_summary flow.
type Summarizer interface {
	Generate(ctx context.Context, req summary.Request) summary.Outcome
}

// Options configure a Service.
type Options struct {
	Sessions  session.Store
	Quota     QuotaAPI
	Summary   Summarizer
	Messenger summary.Messenger
	// SubscriptionsEnabled lets /subscribe start a subscription instead of answering that
	// the feature is unavailable.
	SubscriptionsEnabled bool
}

// Service handles messages.
type Service struct {
	sessions  session.Store
	quota     QuotaAPI
	summary   Summarizer
	messenger summary.Messenger
	subscribe bool
}

// NewService returns a Service built from opts.
func NewService(opts Options) *Service {
	return &Service{
		sessions:  opts.Sessions,
		quota:     opts.Quota,
		summary:   opts.Summary,
		messenger: opts.Messenger,
		subscribe: opts.SubscriptionsEnabled,
	}
}

// HandleMessage resolves msg against the user's session and acts on it.
func (s *Service) HandleMessage(ctx context.Context, msg Message) Result {
	start := time.Now()
	ctx = logger.WithUpdateMeta(ctx, logger.UpdateIDFrom(ctx), msg.UserID, msg.ChatID)

	res := s.handle(ctx, msg)

	metrics.BotUpdatesTotal.WithLabelValues(res.Status).Inc()
	status := "ok"
	if !res.Success {
		status = "fail"
	}
	logger.LogEvent(ctx, logger.SVCBot, slog.LevelInfo, "bot.message",
		slog.String("status", status),
		slog.String("result", res.Status),
		slog.Duration("duration", logger.Took(start)),
	)
	return res
}

func (s *Service) handle(ctx context.Context, msg Message) Result {
	sess, err := s.sessions.Get(ctx, msg.UserID)
	if err != nil {
		return s.storageFailure(ctx, msg, err)
	}

	t := conversation.Next(sess.State, msg.Text)
	switch t.Intent {
	case conversation.IntentCaptureMovie:
		if _, err := s.sessions.Merge(ctx, msg.UserID, session.Update{Movie: &t.Input, State: session.Ptr(session.StateIdle)}); err != nil {
			return s.storageFailure(ctx, msg, err)
		}
		s.send(ctx, msg.ChatID, fmt.Sprintf(msgMovieSet, t.Input))
		return Result{Success: true, Status: StatusMovieSaved}
	case conversation.IntentCaptureStyle:
		if _, err := s.sessions.Merge(ctx, msg.UserID, session.Update{Style: &t.Input, State: session.Ptr(session.StateIdle)}); err != nil {
			return s.storageFailure(ctx, msg, err)
		}
		s.send(ctx, msg.ChatID, fmt.Sprintf(msgStyleSet, t.Input))
		return Result{Success: true, Status: StatusStyleSaved}
	case conversation.IntentHelp:
		s.send(ctx, msg.ChatID, msgHelp)
		return Result{Success: true, Status: StatusUnknownCommand}
	}

	next := conversation.NextState(t)
	if next != sess.State {
		if next == session.StateIdle {
			err = s.sessions.ClearState(ctx, msg.UserID)
		} else {
			_, err = s.sessions.Merge(ctx, msg.UserID, session.Update{State: &next})
		}
		if err != nil {
			return s.storageFailure(ctx, msg, err)
		}
		sess.State = next
	}
	return s.dispatch(ctx, msg, t.Command, sess)
}

func (s *Service) dispatch(ctx context.Context, msg Message, cmd conversation.Command, sess session.Session) Result {
	switch cmd {
	case conversation.CmdStart:
		s.send(ctx, msg.ChatID, msgStart)
		return Result{Success: true, Status: StatusStart}
	case conversation.CmdSetMovie:
		s.send(ctx, msg.ChatID, msgAskMovie)
		return Result{Success: true, Status: StatusAwaitingMovie}
	case conversation.CmdSetStyle:
		s.send(ctx, msg.ChatID, msgAskStyle)
		return Result{Success: true, Status: StatusAwaitingStyle}
	case conversation.CmdInfo:
		return s.info(ctx, msg, sess)
	case conversation.CmdSubscribe:
		return s.subscribeUser(ctx, msg)
	case conversation.CmdGenerate:
		out := s.summary.Generate(ctx, summary.Request{ChatID: msg.ChatID, UserID: msg.UserID, Session: sess})
		return Result{Success: out.Success, Status: out.Status}
	default:
		s.send(ctx, msg.ChatID, msgHelp)
		return Result{Success: true, Status: StatusUnknownCommand}
	}
}

func (s *Service) info(ctx context.Context, msg Message, sess session.Session) Result {
	info, err := s.quota.UserInfo(ctx, msg.UserID)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCBot, slog.LevelWarn, "bot.user_info",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		s.send(ctx, msg.ChatID, msgInfoError)
		return Result{Status: StatusInfoFailed}
	}

	subscription := msgSubscriptionInactive
	if info.HasSubscription {
		end := info.SubscriptionEndDate
		if t, err := info.SubscriptionEnd(); err == nil {
			end = t.Format(displayDate)
		}
		subscription = fmt.Sprintf(msgSubscriptionActive, end)
	}
	movie := sess.Movie
	if movie == "" {
		movie = msgMovieUnset
	}
	s.send(ctx, msg.ChatID, fmt.Sprintf(msgInfo,
		info.TelegramID, subscription, info.MaxRequestsPerDay, info.TodaysRequestsCount,
		movie, sess.EffectiveStyle(),
	))
	return Result{Success: true, Status: StatusInfoSent}
}

func (s *Service) subscribeUser(ctx context.Context, msg Message) Result {
	if !s.subscribe {
		s.send(ctx, msg.ChatID, msgSubscribeUnavailable)
		return Result{Success: true, Status: StatusSubscriptionUnavailable}
	}
	sub, err := s.quota.Subscribe(ctx, msg.UserID)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCBot, slog.LevelWarn, "bot.subscribe",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		s.send(ctx, msg.ChatID, msgSubscribeError)
		return Result{Status: StatusSubscriptionFailed}
	}
	end := sub.SubscriptionEndDate
	if t, err := time.Parse("2006-01-02", end); err == nil {
		end = t.Format(displayDate)
	}
	s.send(ctx, msg.ChatID, fmt.Sprintf(msgSubscribed, end))
	return Result{Success: true, Status: StatusSubscribed}
}

func (s *Service) storageFailure(ctx context.Context, msg Message, err error) Result {
	logger.LogEvent(ctx, logger.SVCSession, slog.LevelError, "session.store",
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
	s.send(ctx, msg.ChatID, msgStorageError)
	return Result{Status: StatusSessionUnavailable}
}

func (s *Service) send(ctx context.Context, chatID int64, text string) {
	if err := s.messenger.Send(ctx, chatID, text); err != nil {
		logger.LogEvent(ctx, logger.SVCBot, slog.LevelWarn, "bot.send",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
