package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log         LogConfig        `mapstructure:"log"`
	HTTP        HTTPConfig       `mapstructure:"http"`
	Broker      BrokerConfig     `mapstructure:"broker"`
	Queues      QueuesConfig     `mapstructure:"queues"`
	Kafka       KafkaConfig      `mapstructure:"kafka"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Database    DatabaseConfig   `mapstructure:"database"`
	ClickHouse  ClickHouseConfig `mapstructure:"clickhouse"`
	SMTP        SMTPConfig       `mapstructure:"smtp"`
	Templates   TemplatesConfig  `mapstructure:"templates"`
	Attachments AttachmentConfig `mapstructure:"attachments"`
	Worker      WorkerConfig     `mapstructure:"worker"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // json | console
}

type HTTPConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"` // empty leaves /v1 open
}

type BrokerConfig struct {
	Driver       string        `mapstructure:"driver"`    // kafka | redis
	PollWait     time.Duration `mapstructure:"poll_wait"` // per-tier wait before falling through to the next tier
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
}

type QueuesConfig struct {
	High   string `mapstructure:"high"`
	Normal string `mapstructure:"normal"`
	Low    string `mapstructure:"low"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	GroupID           string   `mapstructure:"group_id"`
	MinBytes          int      `mapstructure:"min_bytes"`
	MaxBytes          int      `mapstructure:"max_bytes"`
	CommitInterval    int      `mapstructure:"commit_interval_ms"`
	AutoCreateTopics  bool     `mapstructure:"auto_create_topics"`
	Partitions        int      `mapstructure:"partitions"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	ConsumerID  string        `mapstructure:"consumer_id"` // processing list suffix; hostname when empty
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql | pgx
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type ClickHouseConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	DatabaseConfig `mapstructure:",squash"`
}

type SMTPConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from"`
	ImplicitTLS bool          `mapstructure:"implicit_tls"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type TemplatesConfig struct {
	UserDir    string `mapstructure:"user_dir"`
	DefaultDir string `mapstructure:"default_dir"`
	Extension  string `mapstructure:"extension"`
}

type AttachmentConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
}

type WorkerConfig struct {
	MaxRetries        int      `mapstructure:"max_retries"`
	RetryDelaySeconds int      `mapstructure:"retry_delay_seconds"`
	Tiers             []string `mapstructure:"tiers"`
}

// RetryDelay returns the fixed pause between two delivery attempts.
func (w WorkerConfig) RetryDelay() time.Duration {
	return time.Duration(w.RetryDelaySeconds) * time.Second
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (MAILGW_*).
// A .env file in the working directory is exported into the environment first, when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil && !configMissing(err) {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// env override (MAILGW_WORKER_MAX_RETRIES -> worker.max_retries)
	v.SetEnvPrefix("MAILGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the worker cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.Worker.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("worker.max_retries must be positive, got %d", c.Worker.MaxRetries))
	}
	if c.Worker.RetryDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("worker.retry_delay_seconds must be non-negative, got %d", c.Worker.RetryDelaySeconds))
	}
	switch c.Broker.Driver {
	case "kafka", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown broker.driver %q", c.Broker.Driver))
	}
	switch c.Database.Driver {
	case "mysql", "pgx":
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.SMTP.Host) == "" {
		errs = append(errs, errors.New("smtp.host is required"))
	}
	if c.Broker.Driver == "redis" && c.Redis.ConsumerID == "" {
		if p := OpsPort(c.HTTP.Addr); p == "" || p == "0" {
			errs = append(errs, fmt.Errorf("redis.consumer_id is required when http.addr %q has no fixed port", c.HTTP.Addr))
		}
	}
	if c.Queues.High == "" || c.Queues.Normal == "" || c.Queues.Low == "" {
		errs = append(errs, errors.New("queues.high, queues.normal and queues.low are required"))
	}
	return errors.Join(errs...)
}

// OpsPort returns the port of a listen address, or "" when it has none.
func OpsPort(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return port
}

// configMissing reports whether err only means the config file is absent.
func configMissing(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}
