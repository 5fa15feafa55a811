package replica

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestReplica(t *testing.T) *RedisReplica {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWithClient(client, "pos:document")
}

func TestGetAbsent(t *testing.T) {
	r := newTestReplica(t)
	snap, err := r.Get(context.Background())
	require.NoError(t, err)
	require.False(t, snap.Exists)
}

func TestSetThenGet(t *testing.T) {
	r := newTestReplica(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, []byte(`{"users":[]}`)))

	snap, err := r.Get(ctx)
	require.NoError(t, err)
	require.True(t, snap.Exists)
	require.JSONEq(t, `{"users":[]}`, string(snap.Data))
}

func TestSubscribeReceivesWrites(t *testing.T) {
	r := newTestReplica(t)
	ctx := context.Background()

	got := make(chan Snapshot, 1)
	cancel, err := r.Subscribe(ctx, func(s Snapshot) { got <- s })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, r.Set(ctx, []byte(`{"v":1}`)))

	select {
	case snap := <-got:
		require.True(t, snap.Exists)
		require.JSONEq(t, `{"v":1}`, string(snap.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification received")
	}
}

func TestSubscribeCancelIdempotent(t *testing.T) {
	r := newTestReplica(t)

	cancel, err := r.Subscribe(context.Background(), func(Snapshot) {})
	require.NoError(t, err)
	cancel()
	cancel()
}
