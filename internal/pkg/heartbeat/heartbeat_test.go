package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestBeater_Beat(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()

	beater := NewBeater(client, "w-1", 4242, 30*time.Second)
	checker := NewChecker(client)

	alive, err := checker.Alive(ctx, "w-1")
	require.NoError(t, err)
	assert.False(t, alive)

	require.NoError(t, beater.Beat(ctx))

	alive, err = checker.Alive(ctx, "w-1")
	require.NoError(t, err)
	assert.True(t, alive)

	value, err := mr.Get(Key("w-1"))
	require.NoError(t, err)
	assert.Equal(t, "4242", value)

	// TTL 过期后视为失联
	mr.FastForward(31 * time.Second)
	alive, err = checker.Alive(ctx, "w-1")
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestBeater_Run_RemovesKeyOnStop(t *testing.T) {
	_, client := setup(t)
	checker := NewChecker(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewBeater(client, "w-2", 1, 3*time.Second).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		alive, _ := checker.Alive(context.Background(), "w-2")
		return alive
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	alive, err := checker.Alive(context.Background(), "w-2")
	require.NoError(t, err)
	assert.False(t, alive)
}
