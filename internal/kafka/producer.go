package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/broker"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/segmentio/kafka-go"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes tasks to the topic of their tier, keyed by task id.
type Producer struct {
	w      writer
	queues broker.Queues
}

var _ broker.Publisher = (*Producer)(nil)

func NewProducer(c Config, queues broker.Queues) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(c.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: c.AutoCreateTopics,
			BatchTimeout:           10 * time.Millisecond,
		},
		queues: queues,
	}
}

func (p *Producer) Publish(ctx context.Context, tier model.Tier, key string, body []byte) error {
	topic, ok := p.queues[tier]
	if !ok {
		return fmt.Errorf("kafka: no topic for tier %q", tier)
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: body,
	})
}

func (p *Producer) Close() error { return p.w.Close() }
