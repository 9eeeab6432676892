package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kbukum/intentflow/dag"
	"github.com/kbukum/intentflow/logger"
	"github.com/kbukum/intentflow/redis"
	"github.com/kbukum/intentflow/sse"
)

// DefaultChannelPrefix prefixes Redis progress channels.
const DefaultChannelPrefix = "intentflow:progress"

// RedisPublisher publishes each event as JSON on "<prefix>:<execution id>".
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

var _ dag.Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher. An empty prefix uses
// DefaultChannelPrefix.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel carrying executionID's events.
func (p *RedisPublisher) Channel(executionID string) string {
	return p.prefix + ":" + executionID
}

// Publish implements dag.Publisher. It attempts every event and joins the
// failures.
func (p *RedisPublisher) Publish(ctx context.Context, events []dag.Event) error {
	var errs []error
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := p.client.Publish(ctx, p.Channel(ev.ExecutionID), data); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", ev.ExecutionID, err))
		}
	}
	return errors.Join(errs...)
}

// Relay copies events from every "<prefix>:*" channel into hub until ctx
// ends. ready, if not nil, is closed once the subscription is active.
func Relay(ctx context.Context, client *redis.Client, prefix string, hub sse.Broadcaster, log *logger.Logger, ready chan<- struct{}) error {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if log == nil {
		log = logger.Nop()
	}
	sub := client.PSubscribe(ctx, prefix+":*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("progress relay subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	seq := make(map[string]int)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev dag.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn("Dropping malformed progress message", logger.Fields("channel", msg.Channel, "error", err.Error()))
				continue
			}
			if ev.ExecutionID == "" {
				ev.ExecutionID = strings.TrimPrefix(msg.Channel, prefix+":")
			}
			seq[ev.ExecutionID]++
			f, err := Frame(ev, seq[ev.ExecutionID])
			if err != nil {
				continue
			}
			hub.Broadcast(Pattern(ev.ExecutionID), f)
			if f.Final {
				delete(seq, ev.ExecutionID)
			}
		}
	}
}
