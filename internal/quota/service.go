package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/moviebot/core/logger"
	"github.com/m3rciful/moviebot/core/metrics"
)

// Options configure a Service. Zero values fall back to the defaults.
type Options struct {
	Limits   Limits
	Location *time.Location
	Now      func() time.Time
}

// Service applies the quota rules on top of a Store.
type Service struct {
	store  Store
	limits Limits
	loc    *time.Location
	now    func() time.Time
}

// NewService wraps store with the given options.
func NewService(store Store, opts Options) *Service {
	if opts.Limits.Free <= 0 || opts.Limits.Subscriber <= 0 {
		opts.Limits = DefaultLimits
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, limits: opts.Limits, loc: opts.Location, now: opts.Now}
}

// Today returns the current calendar date in the service timezone.
func (s *Service) Today() time.Time {
	return CivilDate(s.now().In(s.loc))
}

// GetOrCreate returns the stored record for id, creating it with defaults.
func (s *Service) GetOrCreate(ctx context.Context, id int64) (UserQuota, error) {
	if id <= 0 {
		return UserQuota{}, ErrInvalidID
	}
	q, err := s.store.GetOrCreate(ctx, id)
	if err != nil {
		return UserQuota{}, fmt.Errorf("get quota %d: %w", id, err)
	}
	return q, nil
}

// CheckAndConsume decides whether id may make one more request today and records the
// request when it may.
func (s *Service) CheckAndConsume(ctx context.Context, id int64) (Decision, Usage, error) {
	if id <= 0 {
		return Denied, Usage{}, ErrInvalidID
	}
	today := s.Today()
	var decision Decision
	q, err := s.store.Update(ctx, id, func(q *UserQuota) (bool, error) {
		var changed bool
		decision, changed = consume(q, today, s.limits)
		return changed, nil
	})
	if err != nil {
		return Denied, Usage{}, fmt.Errorf("check quota %d: %w", id, err)
	}

	usage := Usage{Count: q.TodaysRequestCount, Max: q.MaxRequestsPerDay(today, s.limits)}
	metrics.QuotaDecisionsTotal.WithLabelValues(decision.String()).Inc()
	status := "ok"
	if decision == Denied {
		status = "denied"
	}
	logger.LogEvent(ctx, logger.SVCQuota, slog.LevelInfo, "quota.check",
		slog.Int64("user_id", id),
		slog.String("status", status),
		slog.Int("count", usage.Count),
		slog.Int("max", usage.Max),
	)
	return decision, usage, nil
}

// Peek reports today's usage without making a decision. A stale counter is zeroed and
// persisted on the way.
func (s *Service) Peek(ctx context.Context, id int64) (Usage, error) {
	info, err := s.UserInfo(ctx, id)
	if err != nil {
		return Usage{}, err
	}
	return info.Usage, nil
}

// UserInfo returns the subscription and usage view of id, applying the daily rollover.
func (s *Service) UserInfo(ctx context.Context, id int64) (Info, error) {
	if id <= 0 {
		return Info{}, ErrInvalidID
	}
	today := s.Today()
	q, err := s.store.Update(ctx, id, func(q *UserQuota) (bool, error) {
		return rollover(q, today), nil
	})
	if err != nil {
		return Info{}, fmt.Errorf("read quota %d: %w", id, err)
	}
	return Info{
		TelegramID:          q.TelegramID,
		HasSubscription:     q.HasActiveSubscription(today),
		SubscriptionEndDate: q.SubscriptionEndDate,
		Usage:               Usage{Count: q.TodaysRequestCount, Max: q.MaxRequestsPerDay(today, s.limits)},
	}, nil
}

// Increment records one request for today regardless of the ceiling.
func (s *Service) Increment(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidID
	}
	today := s.Today()
	_, err := s.store.Update(ctx, id, func(q *UserQuota) (bool, error) {
		rollover(q, today)
		q.TodaysRequestCount++
		q.LastRequestDate = today
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("increment quota %d: %w", id, err)
	}
	logger.LogEvent(ctx, logger.SVCQuota, slog.LevelInfo, "quota.increment", slog.Int64("user_id", id))
	return nil
}

// Subscribe sets the subscription to end one month after today. Repeated calls restart
// the month rather than extending it.
func (s *Service) Subscribe(ctx context.Context, id int64) (time.Time, error) {
	if id <= 0 {
		return time.Time{}, ErrInvalidID
	}
	end := s.Today().AddDate(0, 1, 0)
	q, err := s.store.Update(ctx, id, func(q *UserQuota) (bool, error) {
		q.SubscriptionEndDate = end
		return true, nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("subscribe %d: %w", id, err)
	}
	logger.LogEvent(ctx, logger.SVCQuota, slog.LevelInfo, "quota.subscribe",
		slog.Int64("user_id", id),
		slog.String("until", q.SubscriptionEndDate.Format(DateLayout)),
	)
	return q.SubscriptionEndDate, nil
}

// ResetLimits zeroes today's counter.
func (s *Service) ResetLimits(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidID
	}
	_, err := s.store.Update(ctx, id, func(q *UserQuota) (bool, error) {
		if q.TodaysRequestCount == 0 {
			return false, nil
		}
		q.TodaysRequestCount = 0
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("reset quota %d: %w", id, err)
	}
	logger.LogEvent(ctx, logger.SVCQuota, slog.LevelInfo, "quota.reset", slog.Int64("user_id", id))
	return nil
}
