package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const rosterChannel = "remindme:roster"

// RosterNotifier broadcasts roster versions over Redis pub/sub so every
// instance invalidates its running quizzes.
type RosterNotifier struct {
	client *redis.Client
}

func NewRosterNotifier(client *redis.Client) *RosterNotifier {
	return &RosterNotifier{client: client}
}

func (n *RosterNotifier) Publish(ctx context.Context, version string) error {
	if err := n.client.Publish(ctx, rosterChannel, version).Err(); err != nil {
		return fmt.Errorf("publish roster version: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed. Slow readers only
// ever see the newest version.
func (n *RosterNotifier) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	pubsub := n.client.Subscribe(ctx, rosterChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe roster channel: %w", err)
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- msg.Payload:
			default:
				select {
				case <-out:
				default:
				}
				out <- msg.Payload
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}
