package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func newContext(t *testing.T, userID int64, text string) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(tele.Update{Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
		Text:   text,
	}})
}

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, KindOther, UpdateKind(tele.Update{}))
	assert.Equal(t, KindCommand, UpdateKind(tele.Update{Message: &tele.Message{Text: " /start"}}))
	assert.Equal(t, KindMessage, UpdateKind(tele.Update{Message: &tele.Message{Text: "Матрица"}}))
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	handled, limited := 0, 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exclude:   map[string]struct{}{KindCommand: {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return now },
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	require.NoError(t, h(newContext(t, 1, "a")))
	require.NoError(t, h(newContext(t, 1, "b")))
	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, limited)

	require.NoError(t, h(newContext(t, 1, "/info")), "commands are excluded")
	require.NoError(t, h(newContext(t, 2, "c")), "other users are independent")
	assert.Equal(t, 3, handled)

	now = now.Add(time.Second)
	require.NoError(t, h(newContext(t, 1, "d")))
	assert.Equal(t, 4, handled)
	assert.Equal(t, 1, limited)
}

func TestLastSeenDropsIdleUsers(t *testing.T) {
	start := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	users := newLastSeen(time.Second)

	for id := int64(1); id <= 100; id++ {
		require.True(t, users.allow(id, start))
	}
	assert.Equal(t, 100, users.len())
	assert.False(t, users.allow(1, start.Add(500*time.Millisecond)))

	later := start.Add(sweepEvery)
	require.True(t, users.allow(101, later))
	assert.Equal(t, 1, users.len(), "only the user seen after the sweep remains")
	assert.False(t, users.allow(101, later.Add(100*time.Millisecond)))
}
