// Package quota tracks per-user daily request allowances and subscriptions.
package quota

import (
	"errors"
	"time"
)

// ErrInvalidID is returned for telegram ids that cannot identify a user.
var ErrInvalidID = errors.New("quota: invalid telegram id")

// FarPast is the default for dates that have never been set.
var FarPast = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// UserQuota is the stored allowance record of one Telegram user. Dates are calendar dates
// held as midnight UTC.
type UserQuota struct {
	TelegramID          int64     `db:"telegram_id"`
	SubscriptionEndDate time.Time `db:"subscription_end_date"`
	TodaysRequestCount  int       `db:"todays_requests_count"`
	LastRequestDate     time.Time `db:"last_request_date"`
}

// NewUserQuota returns the record a user starts with.
func NewUserQuota(id int64) UserQuota {
	return UserQuota{
		TelegramID:          id,
		SubscriptionEndDate: FarPast,
		LastRequestDate:     FarPast,
	}
}

// Limits are the daily request ceilings.
type Limits struct {
	Free       int
	Subscriber int
}

// DefaultLimits are 10 requests a day without a subscription and 50 with one.
var DefaultLimits = Limits{Free: 10, Subscriber: 50}

// HasActiveSubscription reports whether the subscription runs past today.
func (q UserQuota) HasActiveSubscription(today time.Time) bool {
	return q.SubscriptionEndDate.After(today)
}

// MaxRequestsPerDay returns the ceiling that applies to q today.
func (q UserQuota) MaxRequestsPerDay(today time.Time, limits Limits) int {
	if q.HasActiveSubscription(today) {
		return limits.Subscriber
	}
	return limits.Free
}

// Decision is the outcome of a check-and-consume.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Usage is the counter view returned to callers.
type Usage struct {
	Count int
	Max   int
}

// Info is the full per-user view served by /user-info.
type Info struct {
	TelegramID          int64
	HasSubscription     bool
	SubscriptionEndDate time.Time
	Usage
}

// CivilDate truncates t to its calendar date in t's own location and returns it as
// midnight UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
