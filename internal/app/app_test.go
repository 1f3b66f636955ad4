package app

import (
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/config"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"go.uber.org/zap"
)

func TestTiers(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []model.Tier
		wantErr bool
	}{
		{name: "empty means all", in: nil, want: []model.Tier{model.TierHigh, model.TierNormal, model.TierLow}},
		{name: "reordered to priority", in: []string{"low", "high"}, want: []model.Tier{model.TierHigh, model.TierLow}},
		{name: "duplicates collapse", in: []string{"normal", "NORMAL", "2"}, want: []model.Tier{model.TierNormal}},
		{name: "unknown", in: []string{"urgent"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tiers(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Tiers() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tiers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	q := Queues(cfg)
	if q[model.TierHigh] != "email.high" || q[model.TierLow] != "email.low" {
		t.Errorf("Queues() = %v", q)
	}

	kc := KafkaConfig(cfg)
	if kc.PollWait != 20*time.Millisecond || kc.GroupID != "mailgw-sender" {
		t.Errorf("KafkaConfig() = %+v", kc)
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "mailgw"
	}
	cfg.HTTP.Addr = ":8083"
	if got := ConsumerID(cfg); got != host+"-8083" {
		t.Errorf("ConsumerID() = %q, want %q", got, host+"-8083")
	}
	cfg.HTTP.Addr = ":8084"
	if a, b := ConsumerID(cfg), host+"-8083"; a == b {
		t.Errorf("workers on different ops ports share consumer id %q", a)
	}

	cfg.Redis.ConsumerID = "worker-7"
	if got := ConsumerID(cfg); got != "worker-7" {
		t.Errorf("ConsumerID() = %q, want worker-7", got)
	}

	if ch, err := OpenClickHouse(cfg); ch != nil || err != nil {
		t.Errorf("OpenClickHouse() with clickhouse disabled = (%v, %v), want (nil, nil)", ch, err)
	}

	cfg.Broker.Driver = "nats"
	if _, err := Dialer(cfg, model.Tiers(), zap.NewNop()); err == nil {
		t.Error("Dialer() with unknown driver error = nil")
	}
	if _, err := Publisher(cfg); err == nil {
		t.Error("Publisher() with unknown driver error = nil")
	}
}
