// Package app turns a loaded config into the stores, brokers and senders the commands run with.
package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/broker"
	"github.com/jmehdipour/mail-gateway/internal/config"
	"github.com/jmehdipour/mail-gateway/internal/db"
	"github.com/jmehdipour/mail-gateway/internal/kafka"
	"github.com/jmehdipour/mail-gateway/internal/mailer"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/jmehdipour/mail-gateway/internal/redisqueue"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func poolOpts(c config.DatabaseConfig) db.PoolOpts {
	return db.PoolOpts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	}
}

// OpenDatabase opens the queue-table database.
func OpenDatabase(cfg config.Config) (*sqlx.DB, error) {
	d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN, poolOpts(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Database.Driver, err)
	}
	return d, nil
}

// OpenClickHouse returns nil without error when the event store is disabled.
func OpenClickHouse(cfg config.Config) (*sqlx.DB, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ch, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, poolOpts(cfg.ClickHouse.DatabaseConfig))
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	return ch, nil
}

func Queues(cfg config.Config) broker.Queues {
	return broker.Queues{
		model.TierHigh:   cfg.Queues.High,
		model.TierNormal: cfg.Queues.Normal,
		model.TierLow:    cfg.Queues.Low,
	}
}

// Tiers parses tier names, keeping consumption order and dropping duplicates.
// An empty list means every tier.
func Tiers(names []string) ([]model.Tier, error) {
	if len(names) == 0 {
		return model.Tiers(), nil
	}
	want := map[model.Tier]bool{}
	for _, n := range names {
		t, ok := model.ParseTier(n)
		if !ok {
			return nil, fmt.Errorf("unknown tier %q", n)
		}
		want[t] = true
	}
	var out []model.Tier
	for _, t := range model.Tiers() {
		if want[t] {
			out = append(out, t)
		}
	}
	return out, nil
}

func KafkaConfig(cfg config.Config) kafka.Config {
	return kafka.Config{
		Brokers:           cfg.Kafka.Brokers,
		GroupID:           cfg.Kafka.GroupID,
		MinBytes:          cfg.Kafka.MinBytes,
		MaxBytes:          cfg.Kafka.MaxBytes,
		CommitInterval:    time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		PollWait:          cfg.Broker.PollWait,
		AutoCreateTopics:  cfg.Kafka.AutoCreateTopics,
		Partitions:        cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Kafka.ReplicationFactor,
	}
}

func RedisOpts(cfg config.Config) db.RedisOpts {
	return db.RedisOpts{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	}
}

// ConsumerID defaults to "<host>-<ops port>". Workers on one host must bind
// distinct ops ports, so each owns its processing lists, and a restart on the
// same port recovers what the previous run left unacked.
func ConsumerID(cfg config.Config) string {
	if cfg.Redis.ConsumerID != "" {
		return cfg.Redis.ConsumerID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "mailgw"
	}
	if port := config.OpsPort(cfg.HTTP.Addr); port != "" {
		return host + "-" + port
	}
	return host
}

// Dialer builds the reconnecting consumer factory for the configured broker.
func Dialer(cfg config.Config, tiers []model.Tier, log *zap.Logger) (broker.Dialer, error) {
	queues := Queues(cfg)
	switch cfg.Broker.Driver {
	case "kafka":
		return kafka.NewDialer(KafkaConfig(cfg), queues, tiers, log), nil
	case "redis":
		rc := redisqueue.Config{ConsumerID: ConsumerID(cfg), PollInterval: cfg.Broker.PollWait}
		return redisqueue.NewDialer(RedisOpts(cfg).Options(), queues, tiers, rc, log), nil
	}
	return nil, fmt.Errorf("unknown broker driver %q", cfg.Broker.Driver)
}

// Publisher opens the producing side of the configured broker.
func Publisher(cfg config.Config) (broker.Publisher, error) {
	queues := Queues(cfg)
	switch cfg.Broker.Driver {
	case "kafka":
		return kafka.NewProducer(KafkaConfig(cfg), queues), nil
	case "redis":
		rdb, err := db.NewRedisClient(RedisOpts(cfg))
		if err != nil {
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		return ownedPublisher{Publisher: redisqueue.NewPublisher(rdb, queues), client: rdb}, nil
	}
	return nil, fmt.Errorf("unknown broker driver %q", cfg.Broker.Driver)
}

// ownedPublisher closes the client it was opened with.
type ownedPublisher struct {
	broker.Publisher
	client io.Closer
}

func (p ownedPublisher) Close() error {
	return errors.Join(p.Publisher.Close(), p.client.Close())
}

func MailerConfig(cfg config.Config) mailer.Config {
	return mailer.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		From:        cfg.SMTP.From,
		ImplicitTLS: cfg.SMTP.ImplicitTLS,
		Timeout:     cfg.SMTP.Timeout,
	}
}
