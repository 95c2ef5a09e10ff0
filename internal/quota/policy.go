package quota

import "time"

// rollover zeroes the counter when the last request happened before today. It leaves
// LastRequestDate untouched and reports whether q changed.
func rollover(q *UserQuota, today time.Time) bool {
	if q.LastRequestDate.Before(today) && q.TodaysRequestCount != 0 {
		q.TodaysRequestCount = 0
		return true
	}
	return false
}

// consume applies the tiered daily cap and reports the decision and whether q changed.
// The first request of a day is always allowed. After that the free ceiling is checked
// before the subscriber ceiling, so a user whose subscription lapsed mid-day is denied
// once past the free ceiling. Denied never mutates q.
func consume(q *UserQuota, today time.Time, limits Limits) (Decision, bool) {
	switch {
	case q.LastRequestDate.Before(today):
		q.LastRequestDate = today
		q.TodaysRequestCount = 1
		return Allowed, true
	case q.TodaysRequestCount < limits.Free:
		q.TodaysRequestCount++
		return Allowed, true
	case q.TodaysRequestCount < limits.Subscriber && today.Before(q.SubscriptionEndDate):
		q.TodaysRequestCount++
		return Allowed, true
	default:
		return Denied, false
	}
}
