// Package broker defines the queue contract the delivery worker consumes.
// Backends live in internal/kafka and internal/redisqueue.
package broker

import (
	"context"
	"errors"

	"github.com/jmehdipour/mail-gateway/internal/model"
)

var ErrClosed = errors.New("broker: consumer closed")

// Message is one fetched, not yet acknowledged, queue entry.
type Message struct {
	Tier model.Tier
	Key  string
	Body []byte

	// Handle is backend specific and only read by the consumer that produced the message.
	Handle any
}

// Consumer yields at most one un-acked message at a time: callers Ack before the next Fetch.
type Consumer interface {
	// Fetch blocks until a message is available on any tier, polling tiers from high to low.
	Fetch(ctx context.Context) (Message, error)
	// Ack removes the message from its queue for good.
	Ack(ctx context.Context, m Message) error
	Close() error
}

// Dialer opens a consumer, declaring queues on the way. It is called again after connection loss.
type Dialer func(ctx context.Context) (Consumer, error)

type Publisher interface {
	Publish(ctx context.Context, tier model.Tier, key string, body []byte) error
	Close() error
}

// Queues maps each tier to its configured queue (topic or list) name.
type Queues map[model.Tier]string

// Ordered returns the configured tiers in strict priority order, limited to only when non-empty.
func (q Queues) Ordered(only []model.Tier) []model.Tier {
	allowed := make(map[model.Tier]bool, len(only))
	for _, t := range only {
		allowed[t] = true
	}
	out := make([]model.Tier, 0, len(q))
	for _, t := range model.Tiers() {
		if _, ok := q[t]; !ok {
			continue
		}
		if len(only) > 0 && !allowed[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}
