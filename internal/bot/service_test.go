package bot

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/moviebot/internal/quotaclient"
	"github.com/m3rciful/moviebot/internal/session"
	"github.com/m3rciful/moviebot/internal/summary"
)

type fakeQuota struct {
	info    quotaclient.UserInfo
	infoErr error
	sub     quotaclient.Subscription
	subErr  error
	subs    int
}

func (f *fakeQuota) UserInfo(context.Context, int64) (quotaclient.UserInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeQuota) Subscribe(context.Context, int64) (quotaclient.Subscription, error) {
	f.subs++
	return f.sub, f.subErr
}

type fakeSummary struct {
	reqs []summary.Request
	out  summary.Outcome
}

func (f *fakeSummary) Generate(_ context.Context, req summary.Request) summary.Outcome {
	f.reqs = append(f.reqs, req)
	return f.out
}

type recordingMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingMessenger) Send(_ context.Context, _ int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *recordingMessenger) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1]
}

type fixture struct {
	svc       *Service
	sessions  session.Store
	quota     *fakeQuota
	summary   *fakeSummary
	messenger *recordingMessenger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions:  session.NewMemoryStore(time.Hour),
		quota:     &fakeQuota{},
		summary:   &fakeSummary{out: summary.Outcome{Success: true, Status: summary.StatusGenerated}},
		messenger: &recordingMessenger{},
	}
	f.svc = NewService(Options{
		Sessions:  f.sessions,
		Quota:     f.quota,
		Summary:   f.summary,
		Messenger: f.messenger,
	})
	return f
}

func (f *fixture) say(text string) Result {
	return f.svc.HandleMessage(context.Background(), Message{ChatID: 7, UserID: 42, Text: text})
}

func TestStartCommand(t *testing.T) {
	f := newFixture(t)
	res := f.say("/start")
	assert.Equal(t, Result{Success: true, Status: StatusStart}, res)
	assert.Contains(t, f.messenger.last(), "/generate_summary")
}

func TestSetMovieFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, StatusAwaitingMovie, f.say("/set_movie").Status)
	sess, err := f.sessions.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, session.StateAwaitingMovie, sess.State)

	res := f.say("Матрица")
	assert.Equal(t, Result{Success: true, Status: StatusMovieSaved}, res)
	assert.Equal(t, "✅ Фильм сохранён: Матрица", f.messenger.last())

	sess, err = f.sessions.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Матрица", sess.Movie)
	assert.Equal(t, session.StateIdle, sess.State)
}

func TestSetStyleFlow(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, StatusAwaitingStyle, f.say("/set_style").Status)
	assert.Equal(t, StatusStyleSaved, f.say("нуар").Status)

	sess, err := f.sessions.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "нуар", sess.Style)
}

func TestCommandWhileAwaitingClearsState(t *testing.T) {
	f := newFixture(t)
	f.say("/set_movie")

	assert.Equal(t, StatusStart, f.say("/start").Status)
	sess, err := f.sessions.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, sess.State)
	assert.Empty(t, sess.Movie, "the command text must not be stored as a movie")
}

func TestPlainTextWhenIdleAnswersHelp(t *testing.T) {
	f := newFixture(t)
	res := f.say("привет")
	assert.Equal(t, Result{Success: true, Status: StatusUnknownCommand}, res)
	assert.Equal(t, msgHelp, f.messenger.last())

	res = f.say("/nope")
	assert.Equal(t, StatusUnknownCommand, res.Status)
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	f.quota.info = quotaclient.UserInfo{
		TelegramID:          42,
		HasSubscription:     true,
		SubscriptionEndDate: "2025-04-14",
		TodaysRequestsCount: 3,
		MaxRequestsPerDay:   50,
	}
	_, err := f.sessions.Merge(context.Background(), 42, session.Update{Movie: session.Ptr("Алиса")})
	require.NoError(t, err)

	res := f.say("/info")
	assert.Equal(t, Result{Success: true, Status: StatusInfoSent}, res)
	text := f.messenger.last()
	assert.Contains(t, text, "telegram_id: 42")
	assert.Contains(t, text, "Активна(до 14.04.2025)")
	assert.Contains(t, text, "Лимит запросов в день: 50")
	assert.Contains(t, text, "Запросов за сегодня: 3")
	assert.Contains(t, text, "Фильм: Алиса")
	assert.Contains(t, text, "Стиль: "+session.DefaultStyle)
}

func TestInfoWithoutSubscriptionOrMovie(t *testing.T) {
	f := newFixture(t)
	f.quota.info = quotaclient.UserInfo{TelegramID: 42, SubscriptionEndDate: "2000-01-01", MaxRequestsPerDay: 10}

	f.say("/info")
	text := f.messenger.last()
	assert.Contains(t, text, msgSubscriptionInactive)
	assert.Contains(t, text, "Фильм: "+msgMovieUnset)
}

func TestInfoFailure(t *testing.T) {
	f := newFixture(t)
	f.quota.infoErr = errors.New("down")
	res := f.say("/info")
	assert.Equal(t, Result{Status: StatusInfoFailed}, res)
	assert.Equal(t, msgInfoError, f.messenger.last())
}

func TestSubscribeDisabled(t *testing.T) {
	f := newFixture(t)
	res := f.say("/subscribe")
	assert.Equal(t, Result{Success: true, Status: StatusSubscriptionUnavailable}, res)
	assert.Equal(t, msgSubscribeUnavailable, f.messenger.last())
	assert.Zero(t, f.quota.subs)
}

func TestSubscribeEnabled(t *testing.T) {
	f := newFixture(t)
	f.svc.subscribe = true
	f.quota.sub = quotaclient.Subscription{Status: "subscribed", SubscriptionEndDate: "2025-04-14"}

	res := f.say("/subscribe")
	assert.Equal(t, Result{Success: true, Status: StatusSubscribed}, res)
	assert.Equal(t, "💎 Подписка оформлена до 14.04.2025", f.messenger.last())

	f.quota.subErr = errors.New("down")
	res = f.say("/subscribe")
	assert.Equal(t, StatusSubscriptionFailed, res.Status)
	assert.False(t, res.Success)
}

func TestGenerateDelegatesWithSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sessions.Merge(ctx, 42, session.Update{Movie: session.Ptr("Чужой"), Style: session.Ptr("хоррор")})
	require.NoError(t, err)

	res := f.say("/generate_summary")
	assert.Equal(t, Result{Success: true, Status: summary.StatusGenerated}, res)
	require.Len(t, f.summary.reqs, 1)
	req := f.summary.reqs[0]
	assert.Equal(t, int64(7), req.ChatID)
	assert.Equal(t, int64(42), req.UserID)
	assert.Equal(t, "Чужой", req.Session.Movie)
	assert.Equal(t, "хоррор", req.Session.Style)
}

func TestSessionStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	f.svc.sessions = session.NewRedisStore(client, time.Hour)
	mr.SetError("READONLY")

	res := f.say("/set_movie")
	assert.Equal(t, Result{Status: StatusSessionUnavailable}, res)
	assert.Equal(t, msgStorageError, f.messenger.last())
}

func TestWebhook(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	NewWebhook(f.svc, "s3cret").Routes(r, "/webhook")

	post := func(body, secret string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set(SecretHeader, secret)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	valid := `{"update_id":1,"message":{"text":"/start","chat":{"id":7},"from":{"id":42}}}`

	rec := post(valid, "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"status":"start_command_handled"}`, rec.Body.String())

	rec = post(valid, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ignored := `{"success":false,"status":"ignored","error":"Invalid webhook payload"}`
	for _, body := range []string{
		``,
		`not json`,
		`{"update_id":2}`,
		`{"message":{"chat":{"id":7},"from":{"id":42}}}`,
		`{"message":{"text":"hi","from":{"id":42}}}`,
		`{"message":{"text":"hi","chat":{"id":7}}}`,
		`{"message":{"text":"hi","chat":{"id":"x"},"from":{"id":42}}}`,
	} {
		rec := post(body, "s3cret")
		assert.Equal(t, http.StatusOK, rec.Code, body)
		assert.JSONEq(t, ignored, rec.Body.String(), body)
	}
}

func TestRegistryListsMenu(t *testing.T) {
	reg := NewRegistry(nil)
	cmds := reg.ListCommands(true)
	require.Len(t, cmds, len(commandDescriptions))
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Text)
	}
	assert.Equal(t, "start,set_movie,set_style,info,subscribe,generate_summary", strings.Join(names, ","))
	assert.Nil(t, reg.TextFallback())

	assert.NotNil(t, NewRegistry(newFixture(t).svc).TextFallback())
}
