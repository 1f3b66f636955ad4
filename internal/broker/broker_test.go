package broker

import (
	"reflect"
	"testing"

	"github.com/jmehdipour/mail-gateway/internal/model"
)

func TestQueuesOrdered(t *testing.T) {
	q := Queues{
		model.TierLow:    "email.low",
		model.TierHigh:   "email.high",
		model.TierNormal: "email.normal",
	}

	tests := []struct {
		name string
		only []model.Tier
		want []model.Tier
	}{
		{name: "all tiers in priority order", only: nil, want: []model.Tier{model.TierHigh, model.TierNormal, model.TierLow}},
		{name: "subset keeps priority order", only: []model.Tier{model.TierLow, model.TierHigh}, want: []model.Tier{model.TierHigh, model.TierLow}},
		{name: "single tier", only: []model.Tier{model.TierNormal}, want: []model.Tier{model.TierNormal}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := q.Ordered(tt.only)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Ordered() = %v, want %v", got, tt.want)
			}
		})
	}
}
