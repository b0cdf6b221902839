package network

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"rostersync/protocol"
)

// RedisSource relays envelopes published on a Redis channel.
type RedisSource struct {
	Client  *redis.Client
	Channel string
	Log     logrus.FieldLogger
}

func (s *RedisSource) Run(ctx context.Context, em Emitter) error {
	log := orDiscard(s.Log).WithField("channel", s.Channel)
	pubsub := s.Client.Subscribe(ctx, s.Channel)
	defer pubsub.Close()

	// Wait for confirmation so connection errors surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.Channel, err)
	}
	log.Info("redis source subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			Deliver(em, []byte(msg.Payload), log)
		}
	}
}

// Publish encodes one event and publishes it on channel. It returns the
// number of Redis subscribers that received it.
func Publish(ctx context.Context, rdb *redis.Client, channel string, kind protocol.Kind, payload any, origin string) (int64, error) {
	b, err := protocol.Encode(kind, payload, origin)
	if err != nil {
		return 0, err
	}
	n, err := rdb.Publish(ctx, channel, b).Result()
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", channel, err)
	}
	return n, nil
}
