package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/broker"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const defaultProbeEvery = 5 * time.Second

// Ping dials the first reachable broker.
func Ping(ctx context.Context, brokers []string) error {
	var errs []error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return conn.Close()
	}
	if len(errs) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	return errors.Join(errs...)
}

// EnsureTopics declares one topic per queue through the cluster controller.
// Existing topics are left alone.
func EnsureTopics(ctx context.Context, c Config, queues broker.Queues) error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", c.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cc.Close()

	partitions := c.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	rf := c.ReplicationFactor
	if rf <= 0 {
		rf = 1
	}

	topics := make([]kafka.TopicConfig, 0, len(queues))
	for _, t := range model.Tiers() {
		name, ok := queues[t]
		if !ok {
			continue
		}
		topics = append(topics, kafka.TopicConfig{Topic: name, NumPartitions: partitions, ReplicationFactor: rf})
	}
	err = cc.CreateTopics(topics...)
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return nil
	}
	return err
}

// NewDialer returns a broker.Dialer that checks connectivity, declares topics and opens tier readers.
func NewDialer(c Config, queues broker.Queues, tiers []model.Tier, log *zap.Logger) broker.Dialer {
	return func(ctx context.Context) (broker.Consumer, error) {
		if err := Ping(ctx, c.Brokers); err != nil {
			return nil, fmt.Errorf("kafka connect: %w", err)
		}
		if c.AutoCreateTopics {
			if err := EnsureTopics(ctx, c, queues); err != nil {
				return nil, fmt.Errorf("declare topics: %w", err)
			}
		}

		cons := NewConsumer(c, queues, tiers)
		cons.probe = func(ctx context.Context) error { return Ping(ctx, c.Brokers) }
		cons.probeEvery = defaultProbeEvery
		cons.lastProbe = time.Now()

		for _, tr := range cons.readers {
			log.Info("kafka reader ready",
				zap.String("tier", tr.tier.String()),
				zap.String("topic", queues[tr.tier]),
				zap.String("group", c.GroupID),
			)
		}
		return cons, nil
	}
}
