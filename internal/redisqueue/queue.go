// Package redisqueue is a list-based broker backend: one Redis list per tier,
// with a per-consumer processing list holding the un-acked message.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/broker"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultPollInterval = 50 * time.Millisecond

type Config struct {
	ConsumerID   string
	PollInterval time.Duration
}

// ProcessingList names the list an in-flight message waits in until acked.
func ProcessingList(queue, consumerID string) string {
	return queue + ":processing:" + consumerID
}

type Consumer struct {
	rdb    redis.Cmdable
	queues broker.Queues
	tiers  []model.Tier
	id     string
	poll   time.Duration
}

var _ broker.Consumer = (*Consumer)(nil)

func NewConsumer(rdb redis.Cmdable, queues broker.Queues, tiers []model.Tier, c Config) *Consumer {
	poll := c.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Consumer{
		rdb:    rdb,
		queues: queues,
		tiers:  queues.Ordered(tiers),
		id:     c.ConsumerID,
		poll:   poll,
	}
}

// Recover pushes messages left in this consumer's processing lists back to
// the consuming end of their queues. It returns how many were requeued.
func (c *Consumer) Recover(ctx context.Context) (int, error) {
	n := 0
	for _, t := range c.tiers {
		q := c.queues[t]
		for {
			err := c.rdb.LMove(ctx, ProcessingList(q, c.id), q, "LEFT", "RIGHT").Err()
			if errors.Is(err, redis.Nil) {
				break
			}
			if err != nil {
				return n, fmt.Errorf("recover %s: %w", q, err)
			}
			n++
		}
	}
	return n, nil
}

func (c *Consumer) Fetch(ctx context.Context) (broker.Message, error) {
	for {
		for _, t := range c.tiers {
			q := c.queues[t]
			body, err := c.rdb.LMove(ctx, q, ProcessingList(q, c.id), "RIGHT", "LEFT").Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return broker.Message{}, ctx.Err()
				}
				if errors.Is(err, redis.ErrClosed) {
					return broker.Message{}, broker.ErrClosed
				}
				return broker.Message{}, fmt.Errorf("fetch %s: %w", t, err)
			}
			return broker.Message{Tier: t, Body: []byte(body), Handle: q}, nil
		}

		select {
		case <-ctx.Done():
			return broker.Message{}, ctx.Err()
		case <-time.After(c.poll):
		}
	}
}

func (c *Consumer) Ack(ctx context.Context, m broker.Message) error {
	q, ok := m.Handle.(string)
	if !ok {
		return errors.New("redisqueue: message was not fetched by this consumer")
	}
	return c.rdb.LRem(ctx, ProcessingList(q, c.id), 1, string(m.Body)).Err()
}

// Close is a no-op: the client is owned by the dialer.
func (c *Consumer) Close() error { return nil }

type dialedConsumer struct {
	*Consumer
	client *redis.Client
}

func (d dialedConsumer) Close() error { return d.client.Close() }

// NewDialer returns a broker.Dialer that opens a fresh client per connection
// and requeues anything this consumer left unacknowledged. The consumer id must
// be unique among running workers: recovery takes over the whole processing list.
func NewDialer(opts *redis.Options, queues broker.Queues, tiers []model.Tier, c Config, log *zap.Logger) broker.Dialer {
	return func(ctx context.Context) (broker.Consumer, error) {
		if c.ConsumerID == "" {
			return nil, errors.New("redisqueue: consumer id is required")
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}

		cons := NewConsumer(client, queues, tiers, c)
		n, err := cons.Recover(ctx)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		if n > 0 {
			log.Warn("requeued unacknowledged messages", zap.Int("count", n), zap.String("consumer", c.ConsumerID))
		}
		return dialedConsumer{Consumer: cons, client: client}, nil
	}
}

// Publisher pushes tasks onto the producing end of their tier list.
type Publisher struct {
	rdb    redis.Cmdable
	queues broker.Queues
}

var _ broker.Publisher = (*Publisher)(nil)

func NewPublisher(rdb redis.Cmdable, queues broker.Queues) *Publisher {
	return &Publisher{rdb: rdb, queues: queues}
}

func (p *Publisher) Publish(ctx context.Context, tier model.Tier, _ string, body []byte) error {
	q, ok := p.queues[tier]
	if !ok {
		return fmt.Errorf("redisqueue: no list for tier %q", tier)
	}
	return p.rdb.LPush(ctx, q, body).Err()
}

// Close is a no-op: the client is shared with the caller.
func (p *Publisher) Close() error { return nil }
