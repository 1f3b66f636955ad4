package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/broker"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers           []string
	GroupID           string
	MinBytes          int           // default 1B
	MaxBytes          int           // default 10MB
	CommitInterval    time.Duration // 0 = sync commit per message
	PollWait          time.Duration // per-tier fetch window, default 20ms
	AutoCreateTopics  bool
	Partitions        int
	ReplicationFactor int
}

// reader is the subset of *kafka.Reader the consumer needs.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type tierReader struct {
	tier model.Tier
	r    reader
}

// Consumer reads one topic per tier and always drains higher tiers first.
// Each reader buffers at most one message, so a worker holds a single un-acked task.
type Consumer struct {
	readers  []tierReader
	pollWait time.Duration

	// probe runs after idle sweeps; kafka-go readers retry dial errors internally,
	// so a failing probe is how broker loss surfaces to the caller.
	probe      func(ctx context.Context) error
	probeEvery time.Duration
	lastProbe  time.Time
}

var _ broker.Consumer = (*Consumer)(nil)

func newReader(c Config, topic string) *kafka.Reader {
	min := c.MinBytes
	if min <= 0 {
		min = 1
	}
	max := c.MaxBytes
	if max <= 0 {
		max = 10 << 20 // 10MB
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          topic,
		MinBytes:       min,
		MaxBytes:       max,
		CommitInterval: c.CommitInterval,
		MaxWait:        c.pollWait(),
		QueueCapacity:  1,
	})
}

func (c Config) pollWait() time.Duration {
	if c.PollWait <= 0 {
		return 20 * time.Millisecond
	}
	return c.PollWait
}

// NewConsumer opens a reader for every tier in order.
func NewConsumer(c Config, queues broker.Queues, tiers []model.Tier) *Consumer {
	cons := &Consumer{pollWait: c.pollWait()}
	for _, t := range queues.Ordered(tiers) {
		cons.readers = append(cons.readers, tierReader{tier: t, r: newReader(c, queues[t])})
	}
	return cons
}

func (c *Consumer) Fetch(ctx context.Context) (broker.Message, error) {
	if len(c.readers) == 0 {
		return broker.Message{}, broker.ErrClosed
	}
	for {
		if err := c.maybeProbe(ctx); err != nil {
			return broker.Message{}, err
		}
		for _, tr := range c.readers {
			m, err := c.fetchOne(ctx, tr.r)
			if err == nil {
				return broker.Message{Tier: tr.tier, Key: string(m.Key), Body: m.Value, Handle: handle{tr: tr, msg: m}}, nil
			}
			if ctx.Err() != nil {
				return broker.Message{}, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue // tier empty, fall through
			}
			if errors.Is(err, io.EOF) {
				return broker.Message{}, broker.ErrClosed
			}
			return broker.Message{}, fmt.Errorf("fetch %s: %w", tr.tier, err)
		}
	}
}

func (c *Consumer) maybeProbe(ctx context.Context) error {
	if c.probe == nil || time.Since(c.lastProbe) < c.probeEvery {
		return nil
	}
	c.lastProbe = time.Now()
	if err := c.probe(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("broker unreachable: %w", err)
	}
	return nil
}

func (c *Consumer) fetchOne(ctx context.Context, r reader) (kafka.Message, error) {
	tctx, cancel := context.WithTimeout(ctx, c.pollWait)
	defer cancel()
	return r.FetchMessage(tctx)
}

func (c *Consumer) Ack(ctx context.Context, m broker.Message) error {
	h, ok := m.Handle.(handle)
	if !ok {
		return fmt.Errorf("kafka: message %q was not fetched by this consumer", m.Key)
	}
	return h.tr.r.CommitMessages(ctx, h.msg)
}

func (c *Consumer) Close() error {
	var errs []error
	for _, tr := range c.readers {
		if err := tr.r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type handle struct {
	tr  tierReader
	msg kafka.Message
}
