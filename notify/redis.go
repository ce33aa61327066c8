package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/warp/microledger/ledger"
)

// DefaultChannel is the Redis channel events are published on.
const DefaultChannel = "microledger:events"

// Redis publishes events as JSON on a Redis pub/sub channel.
// A nil client makes every call a no-op.
type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis creates a Redis publisher. An empty channel uses DefaultChannel.
func NewRedis(rdb *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{rdb: rdb, channel: channel}
}

// Channel returns the channel name.
func (r *Redis) Channel() string { return r.channel }

// Publish implements ledger.Publisher.
func (r *Redis) Publish(ctx context.Context, ev ledger.Event) error {
	if r.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

// Subscribe listens on the channel and calls onEvent for each decoded event
// until ctx is cancelled. Undecodable payloads are skipped.
func (r *Redis) Subscribe(ctx context.Context, onEvent func(ledger.Event)) error {
	if r.rdb == nil {
		return nil
	}
	sub := r.rdb.Subscribe(ctx, r.channel)
	// wait for the subscription to be confirmed so no event is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ledger.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

// Multi publishes to every publisher in order and returns the first error.
// A failing publisher does not stop the rest.
type Multi []ledger.Publisher

// Publish implements ledger.Publisher.
func (m Multi) Publish(ctx context.Context, ev ledger.Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
