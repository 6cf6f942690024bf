package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clytar/clytar-backend/internal/projects/domain"
)

func TestRedisPublisher_RoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	pub := NewRedisPublisher(rdb, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := pub.Subscribe(ctx, "clytar-1")
	require.NoError(t, err)

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Publish(ctx, ProjectEvent{Kind: EventAdvanced, ProjectID: "clytar-2", At: at}))
	require.NoError(t, pub.Publish(ctx, ProjectEvent{
		Kind: EventAdvanced, ProjectID: "clytar-1", OwnerID: "u1",
		Status: domain.StatusInsightsReady, Version: 3, At: at,
	}))

	select {
	case ev := <-events:
		assert.Equal(t, "clytar-1", ev.ProjectID)
		assert.Equal(t, domain.StatusInsightsReady, ev.Status)
		assert.Equal(t, int64(3), ev.Version)
		assert.True(t, at.Equal(ev.At))
	case <-ctx.Done():
		t.Fatal("no event received")
	}

	cancel()
	for range events {
	}
}

func TestMemoryPublisher_DropsForSlowSubscribers(t *testing.T) {
	pub := NewMemoryPublisher()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := pub.Subscribe(ctx, "p")
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, pub.Publish(ctx, ProjectEvent{ProjectID: "p", Version: int64(i)}))
	}
	require.NoError(t, pub.Publish(ctx, ProjectEvent{ProjectID: "other"}))

	cancel()
	var got []ProjectEvent
	for ev := range events {
		got = append(got, ev)
	}
	assert.Len(t, got, 16)
	assert.Equal(t, int64(0), got[0].Version)

	// publishing after every subscriber left is a no-op
	require.NoError(t, pub.Publish(context.Background(), ProjectEvent{ProjectID: "p"}))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), ProjectEvent{}))
}
