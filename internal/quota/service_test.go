package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testToday = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *MemoryStore, *fakeClock) {
	t.Helper()
	store := NewMemoryStore()
	clock := &fakeClock{now: testToday.Add(15 * time.Hour)}
	return NewService(store, Options{Now: clock.Now}), store, clock
}

func TestCheckAndConsumeFreeTierIncrementsByOne(t *testing.T) {
	ctx := context.Background()
	for count := 0; count <= 9; count++ {
		svc, store, _ := newTestService(t)
		store.Put(UserQuota{TelegramID: 1, SubscriptionEndDate: FarPast, TodaysRequestCount: count, LastRequestDate: testToday})

		decision, usage, err := svc.CheckAndConsume(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, Allowed, decision, "count=%d", count)
		assert.Equal(t, count+1, usage.Count)
	}
}

func TestCheckAndConsumeDeniesAtFreeCeiling(t *testing.T) {
	ctx := context.Background()
	for _, end := range []time.Time{FarPast, testToday.AddDate(0, 0, -1), testToday} {
		svc, store, _ := newTestService(t)
		before := UserQuota{TelegramID: 1, SubscriptionEndDate: end, TodaysRequestCount: 10, LastRequestDate: testToday}
		store.Put(before)

		decision, usage, err := svc.CheckAndConsume(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, Denied, decision)
		assert.Equal(t, Usage{Count: 10, Max: 10}, usage)

		after, err := store.GetOrCreate(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	}
}

func TestCheckAndConsumeSubscriberTier(t *testing.T) {
	ctx := context.Background()
	end := testToday.AddDate(0, 0, 3)
	for count := 10; count <= 49; count++ {
		svc, store, _ := newTestService(t)
		store.Put(UserQuota{TelegramID: 1, SubscriptionEndDate: end, TodaysRequestCount: count, LastRequestDate: testToday})

		decision, usage, err := svc.CheckAndConsume(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, Allowed, decision, "count=%d", count)
		assert.Equal(t, Usage{Count: count + 1, Max: 50}, usage)
	}

	svc, store, _ := newTestService(t)
	store.Put(UserQuota{TelegramID: 1, SubscriptionEndDate: end, TodaysRequestCount: 50, LastRequestDate: testToday})
	decision, _, err := svc.CheckAndConsume(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Denied, decision)
}

func TestCheckAndConsumeFirstRequestOfDayAlwaysAllowed(t *testing.T) {
	svc, store, _ := newTestService(t)
	yesterday := testToday.AddDate(0, 0, -1)
	store.Put(UserQuota{TelegramID: 1, SubscriptionEndDate: FarPast, TodaysRequestCount: 10, LastRequestDate: yesterday})

	decision, usage, err := svc.CheckAndConsume(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Allowed, decision)
	assert.Equal(t, 1, usage.Count)

	q, err := store.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, testToday, q.LastRequestDate)
}

func TestRolloverOnPeek(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	store.Put(UserQuota{TelegramID: 1, SubscriptionEndDate: FarPast, TodaysRequestCount: 7, LastRequestDate: testToday.AddDate(0, 0, -1)})

	usage, err := svc.Peek(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Usage{Count: 0, Max: 10}, usage)

	decision, usage, err := svc.CheckAndConsume(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Allowed, decision)
	assert.Equal(t, 1, usage.Count)
}

func TestDayChangeResetsCounter(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	for i := 0; i < 10; i++ {
		_, _, err := svc.CheckAndConsume(ctx, 7)
		require.NoError(t, err)
	}
	decision, _, err := svc.CheckAndConsume(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, Denied, decision)

	clock.now = clock.now.Add(24 * time.Hour)
	decision, usage, err := svc.CheckAndConsume(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, Allowed, decision)
	assert.Equal(t, 1, usage.Count)
}

func TestResetLimitsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	store.Put(UserQuota{TelegramID: 1, SubscriptionEndDate: FarPast, TodaysRequestCount: 4, LastRequestDate: testToday})

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.ResetLimits(ctx, 1))
		q, err := store.GetOrCreate(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, q.TodaysRequestCount)
	}
}

func TestIncrementIgnoresCeiling(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	store.Put(UserQuota{TelegramID: 1, SubscriptionEndDate: FarPast, TodaysRequestCount: 10, LastRequestDate: testToday})

	require.NoError(t, svc.Increment(ctx, 1))
	q, err := store.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 11, q.TodaysRequestCount)

	store.Put(UserQuota{TelegramID: 2, SubscriptionEndDate: FarPast, TodaysRequestCount: 5, LastRequestDate: testToday.AddDate(0, 0, -2)})
	require.NoError(t, svc.Increment(ctx, 2))
	q, err = store.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, q.TodaysRequestCount)
	assert.Equal(t, testToday, q.LastRequestDate)
}

func TestNewUserInfo(t *testing.T) {
	svc, _, _ := newTestService(t)
	info, err := svc.UserInfo(context.Background(), 12345)
	require.NoError(t, err)
	assert.False(t, info.HasSubscription)
	assert.Equal(t, Usage{Count: 0, Max: 10}, info.Usage)
	assert.Equal(t, FarPast, info.SubscriptionEndDate)
}

func TestSubscribeIsNotCumulative(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)

	end, err := svc.Subscribe(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.April, 14, 0, 0, 0, 0, time.UTC), end)

	info, err := svc.UserInfo(ctx, 12345)
	require.NoError(t, err)
	assert.True(t, info.HasSubscription)
	assert.Equal(t, 50, info.Max)

	clock.now = clock.now.Add(24 * time.Hour)
	end, err = svc.Subscribe(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC), end)
}

func TestSubscriptionEndingTodayIsInactive(t *testing.T) {
	q := UserQuota{SubscriptionEndDate: testToday}
	assert.False(t, q.HasActiveSubscription(testToday))
	assert.Equal(t, 10, q.MaxRequestsPerDay(testToday, DefaultLimits))
}

func TestTodayUsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2025, time.March, 14, 22, 30, 0, 0, time.UTC)
	svc := NewService(NewMemoryStore(), Options{Location: loc, Now: func() time.Time { return now }})
	assert.Equal(t, time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC), svc.Today())
}

func TestInvalidIDRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.CheckAndConsume(context.Background(), 0)
	assert.True(t, errors.Is(err, ErrInvalidID))
	_, err = svc.UserInfo(context.Background(), -5)
	assert.ErrorIs(t, err, ErrInvalidID)
}

type failingStore struct{ err error }

func (f failingStore) GetOrCreate(context.Context, int64) (UserQuota, error) {
	return UserQuota{}, f.err
}

func (f failingStore) Update(context.Context, int64, MutateFunc) (UserQuota, error) {
	return UserQuota{}, f.err
}

func TestStoreFailureSurfaces(t *testing.T) {
	boom := errors.New("connection refused")
	svc := NewService(failingStore{err: boom}, Options{})
	_, _, err := svc.CheckAndConsume(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}
