package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/broker"
	"github.com/jmehdipour/mail-gateway/internal/metrics"
	"go.uber.org/zap"
)

// Runner owns the consumption loop. Broker loss tears the consumer down and
// the loop dials again after a bounded exponential backoff.
type Runner struct {
	Dial     broker.Dialer
	Delivery *Delivery

	ReconnectMin time.Duration
	ReconnectMax time.Duration

	log  *zap.Logger
	wait func(ctx context.Context, d time.Duration) error
}

func NewRunner(dial broker.Dialer, delivery *Delivery, min, max time.Duration, log *zap.Logger) *Runner {
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = min
	}
	return &Runner{
		Dial:         dial,
		Delivery:     delivery,
		ReconnectMin: min,
		ReconnectMax: max,
		log:          log,
		wait:         sleepCtx,
	}
}

// Run blocks until ctx is cancelled. A task already fetched is processed to
// its outcome and acked even when cancellation arrives mid-task.
func (r *Runner) Run(ctx context.Context) error {
	backoff := r.ReconnectMin
	for {
		if ctx.Err() != nil {
			return nil
		}

		c, err := r.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Error("broker connect failed",
				zap.String("severity", "critical"),
				zap.Duration("retry_in", backoff),
				zap.Error(err),
			)
			if r.wait(ctx, backoff) != nil {
				return nil
			}
			backoff = r.next(backoff)
			continue
		}

		backoff = r.ReconnectMin
		r.log.Info("consuming")
		err = r.consume(ctx, c)
		_ = c.Close()

		if ctx.Err() != nil {
			r.log.Info("consumer stopped")
			return nil
		}
		metrics.BrokerReconnects.Inc()
		r.log.Error("broker connection lost, restarting consumer",
			zap.String("severity", "critical"),
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)
		if r.wait(ctx, backoff) != nil {
			return nil
		}
	}
}

func (r *Runner) consume(ctx context.Context, c broker.Consumer) error {
	for {
		m, err := c.Fetch(ctx)
		if err != nil {
			return err
		}
		r.Delivery.Handle(context.WithoutCancel(ctx), c, m)
	}
}

func (r *Runner) next(d time.Duration) time.Duration {
	d *= 2
	if d > r.ReconnectMax {
		d = r.ReconnectMax
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
