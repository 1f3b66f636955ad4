package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOpts struct {
	Addr        string        // "127.0.0.1:6379"
	Password    string        // optional
	DB          int           // default 0
	DialTimeout time.Duration // default 5s
}

// Options is shared by NewRedisClient and the queue dialer, which opens a client per connection.
func (o RedisOpts) Options() *redis.Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	return &redis.Options{
		Addr:        o.Addr,
		Password:    o.Password,
		DB:          o.DB,
		DialTimeout: o.DialTimeout,
	}
}

func NewRedisClient(opts RedisOpts) (*redis.Client, error) {
	o := opts.Options()
	rdb := redis.NewClient(o)
	ctx, cancel := context.WithTimeout(context.Background(), o.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
