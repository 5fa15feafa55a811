package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReplica stores the document under one key and publishes each write
// to a channel so other nodes see changes in realtime.
type RedisReplica struct {
	client  *redis.Client
	key     string
	channel string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr, key string) (*RedisReplica, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("replica: ping: %w", err)
	}
	return NewRedisWithClient(client, key), nil
}

// NewRedisWithClient wraps an existing client; used by tests running
// against miniredis.
func NewRedisWithClient(client *redis.Client, key string) *RedisReplica {
	return &RedisReplica{client: client, key: key, channel: key + ":changes"}
}

// Get fetches the remote document.
func (r *RedisReplica) Get(ctx context.Context) (Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("replica: get: %w", err)
	}
	return Snapshot{Exists: true, Data: data}, nil
}

// Set replaces the remote document and publishes the new content.
func (r *RedisReplica) Set(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("replica: set: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("replica: publish: %w", err)
	}
	return nil
}

// Subscribe listens on the change channel and forwards full-document
// snapshots. Cancel closes the subscription and waits for the delivery
// goroutine to drain.
func (r *RedisReplica) Subscribe(ctx context.Context, onChange func(Snapshot)) (func(), error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	// Force the SUBSCRIBE handshake so failures surface here, not later.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("replica: subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			onChange(Snapshot{Exists: true, Data: []byte(msg.Payload)})
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = pubsub.Close()
			<-done
		})
	}
	return cancel, nil
}
