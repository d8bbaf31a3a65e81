package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSharedSource(ttl time.Duration) (*SharedSource, *fakeSource, *time.Time) {
	source := newFakeSource()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	shared := NewSharedSource(source, ttl)
	shared.now = func() time.Time { return now }
	return shared, source, &now
}

func TestSharedSource_RootVersions(t *testing.T) {
	ctx := context.Background()

	t.Run("reuses the aggregate within ttl", func(t *testing.T) {
		shared, source, now := newTestSharedSource(time.Minute)

		_, first, err := shared.RootVersions(ctx, "2024_qa_sebj")
		require.NoError(t, err)
		*now = now.Add(30 * time.Second)
		_, second, err := shared.RootVersions(ctx, "2024_qa_sebj")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, source.loadCalls)
	})

	t.Run("refetches after ttl", func(t *testing.T) {
		shared, source, now := newTestSharedSource(time.Minute)

		_, _, err := shared.RootVersions(ctx, "2024_qa_sebj")
		require.NoError(t, err)
		*now = now.Add(time.Minute)
		_, _, err = shared.RootVersions(ctx, "2024_qa_sebj")
		require.NoError(t, err)

		assert.Equal(t, 2, source.loadCalls)
	})

	t.Run("roots are cached separately", func(t *testing.T) {
		shared, source, _ := newTestSharedSource(time.Minute)

		_, _, err := shared.RootVersions(ctx, "2024_qa_sebj")
		require.NoError(t, err)
		_, _, err = shared.RootVersions(ctx, "other")
		require.NoError(t, err)

		assert.Equal(t, 2, source.loadCalls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		shared, source, _ := newTestSharedSource(time.Minute)
		source.loadErr = errors.New("boom")

		_, _, err := shared.RootVersions(ctx, "2024_qa_sebj")
		require.Error(t, err)

		source.loadErr = nil
		_, set, err := shared.RootVersions(ctx, "2024_qa_sebj")
		require.NoError(t, err)
		assert.Len(t, set.Versions, 2)
		assert.Equal(t, 2, source.loadCalls)
	})

	t.Run("zero ttl disables caching", func(t *testing.T) {
		shared, source, _ := newTestSharedSource(0)

		for range 3 {
			_, _, err := shared.RootVersions(ctx, "2024_qa_sebj")
			require.NoError(t, err)
		}
		assert.Equal(t, 3, source.loadCalls)
	})
}

func TestSharedSource_Boards(t *testing.T) {
	ctx := context.Background()

	t.Run("new boards share one upstream load", func(t *testing.T) {
		shared, source, _ := newTestSharedSource(time.Minute)

		for range 5 {
			b := NewBoard(shared, testDashboardConfig(), nil, testLogger())
			require.NoError(t, b.EnsureLoaded(ctx))
			assert.Equal(t, 2, b.Snapshot().Stats.TotalVersions)
		}
		assert.Equal(t, 1, source.loadCalls)
	})

	t.Run("reload bypasses the cache", func(t *testing.T) {
		shared, source, _ := newTestSharedSource(time.Minute)

		b := NewBoard(shared, testDashboardConfig(), nil, testLogger())
		require.NoError(t, b.EnsureLoaded(ctx))
		require.NoError(t, b.Reload(ctx))
		assert.Equal(t, 2, source.loadCalls)

		other := NewBoard(shared, testDashboardConfig(), nil, testLogger())
		require.NoError(t, other.EnsureLoaded(ctx))
		assert.Equal(t, 2, source.loadCalls, "reloaded aggregate is shared")
	})

	t.Run("issue requests pass through", func(t *testing.T) {
		shared, source, _ := newTestSharedSource(time.Minute)

		b := NewBoard(shared, testDashboardConfig(), nil, testLogger())
		require.NoError(t, b.EnsureLoaded(ctx))
		require.NoError(t, b.Toggle(ctx, 100))
		assert.Equal(t, 1, source.calls(100))
	})
}
