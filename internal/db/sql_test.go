package db

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestOpenRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		dsn    string
	}{
		{name: "unknown driver", driver: "sqlite", dsn: "file::memory:"},
		{name: "empty dsn", driver: "mysql", dsn: ""},
		{name: "empty pgx dsn", driver: "pgx", dsn: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(tt.driver, tt.dsn, PoolOpts{}); err == nil {
				t.Errorf("Open(%q, %q) error = nil", tt.driver, tt.dsn)
			}
		})
	}
}

func TestRedisOptionsDefaults(t *testing.T) {
	o := RedisOpts{Addr: "127.0.0.1:6379"}.Options()
	if o.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want 5s", o.DialTimeout)
	}
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(RedisOpts{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	_ = rdb.Close()

	if _, err := NewRedisClient(RedisOpts{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Error("NewRedisClient() error = nil for unreachable server")
	}
}
