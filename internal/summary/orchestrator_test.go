package summary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/moviebot/internal/quotaclient"
	"github.com/m3rciful/moviebot/internal/session"
)

type fakeQuota struct {
	decision quotaclient.Decision
	err      error
	calls    int
}

func (f *fakeQuota) CheckAndConsume(context.Context, int64) (quotaclient.Decision, error) {
	f.calls++
	return f.decision, f.err
}

type fakeGenerator struct {
	text    string
	err     error
	block   bool
	calls   int
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

type recordingMessenger struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingMessenger) Send(_ context.Context, _ int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return r.err
}

func (r *recordingMessenger) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1]
}

var allowed = quotaclient.Decision{Allowed: true, TodaysRequestsCount: 3, MaxRequestsPerDay: 10}

func TestIncompleteSettingsMakesNoCalls(t *testing.T) {
	q, gen, msg := &fakeQuota{decision: allowed}, &fakeGenerator{text: "x"}, &recordingMessenger{}
	o := New(q, gen, msg, time.Second)

	out := o.Generate(context.Background(), Request{ChatID: 1, UserID: 1, Session: session.Session{Style: "пират"}})
	assert.Equal(t, Outcome{Status: StatusIncompleteSettings}, out)
	assert.Zero(t, q.calls)
	assert.Zero(t, gen.calls)
	assert.Equal(t, []string{msgNoMovie}, msg.sent)
}

func TestDeniedNeverCallsGenerator(t *testing.T) {
	q := &fakeQuota{decision: quotaclient.Decision{Allowed: false, TodaysRequestsCount: 10, MaxRequestsPerDay: 10}}
	gen, msg := &fakeGenerator{text: "x"}, &recordingMessenger{}
	o := New(q, gen, msg, time.Second)

	out := o.Generate(context.Background(), Request{ChatID: 1, UserID: 1, Session: session.Session{Movie: "Матрица"}})
	assert.Equal(t, Outcome{Status: StatusLimitExceeded}, out)
	assert.Equal(t, 1, q.calls)
	assert.Zero(t, gen.calls)
	assert.Equal(t, "🚫 Лимит запросов исчерпан: 10/10", msg.last())
}

func TestQuotaFailure(t *testing.T) {
	q := &fakeQuota{err: errors.New("connection refused")}
	gen, msg := &fakeGenerator{text: "x"}, &recordingMessenger{}
	o := New(q, gen, msg, time.Second)

	out := o.Generate(context.Background(), Request{ChatID: 1, UserID: 1, Session: session.Session{Movie: "Матрица"}})
	assert.Equal(t, Outcome{Status: StatusLimitsCheckFailed}, out)
	assert.Zero(t, gen.calls)
	assert.Equal(t, msgQuotaFailed, msg.last())
}

func TestGeneratedSummaryIsRelayed(t *testing.T) {
	q, gen, msg := &fakeQuota{decision: allowed}, &fakeGenerator{text: "Жили-были"}, &recordingMessenger{}
	o := New(q, gen, msg, time.Second)

	out := o.Generate(context.Background(), Request{ChatID: 1, UserID: 1, Session: session.Session{Movie: "Матрица"}})
	assert.Equal(t, Outcome{Success: true, Status: StatusGenerated}, out)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "русский дед")
	assert.Contains(t, gen.prompts[0], "'Матрица'")
	assert.Equal(t, []string{
		msgCheckingQuota,
		"✅ Лимиты не превышены! (3/10)",
		"🛠 Генерация пересказа...\n🎬 Фильм: Матрица\n🎭 Стиль: Бухой дед\n\nP.S. Обычно это занимает примерно 30 сек.",
		"Жили-были",
	}, msg.sent)
}

func TestGenerationFailures(t *testing.T) {
	for name, gen := range map[string]*fakeGenerator{
		"error": {err: errors.New("upstream 500")},
		"empty": {text: ""},
	} {
		t.Run(name, func(t *testing.T) {
			msg := &recordingMessenger{}
			o := New(&fakeQuota{decision: allowed}, gen, msg, time.Second)
			out := o.Generate(context.Background(), Request{ChatID: 1, UserID: 1, Session: session.Session{Movie: "Дюна"}})
			assert.Equal(t, Outcome{Status: StatusGenerationFailed}, out)
			assert.Equal(t, msgFailed, msg.last())
		})
	}
}

func TestGenerationTimeout(t *testing.T) {
	gen, msg := &fakeGenerator{block: true}, &recordingMessenger{}
	o := New(&fakeQuota{decision: allowed}, gen, msg, 20*time.Millisecond)

	out := o.Generate(context.Background(), Request{ChatID: 1, UserID: 1, Session: session.Session{Movie: "Дюна"}})
	assert.Equal(t, StatusGenerationFailed, out.Status)
}

func TestSendFailureDoesNotChangeOutcome(t *testing.T) {
	msg := &recordingMessenger{err: errors.New("telegram: bot was blocked by the user (403)")}
	o := New(&fakeQuota{decision: allowed}, &fakeGenerator{text: "ok"}, msg, time.Second)
	out := o.Generate(context.Background(), Request{ChatID: 1, UserID: 1, Session: session.Session{Movie: "Дюна"}})
	assert.Equal(t, StatusGenerated, out.Status)
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "Перескажи фильм 'Дюна' в стиле 'пират'.", BuildPrompt("Дюна", "пират"))

	persona := BuildPrompt("Дюна", session.DefaultStyle)
	assert.True(t, strings.HasPrefix(persona, "Представь, что ты русский дед"))
	assert.True(t, strings.HasSuffix(persona, "перескажи фильм 'Дюна'."))
	assert.Equal(t, persona, BuildPrompt("Дюна", ""))
}
