// Package status persists terminal delivery outcomes. Store failures are
// logged and counted, never returned: the delivery result stands either way.
package status

import (
	"context"

	"github.com/jmehdipour/mail-gateway/internal/metrics"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"go.uber.org/zap"
)

type Writer interface {
	UpdateStatus(ctx context.Context, id string, status model.DeliveryStatus) error
}

// EventSink receives one event per terminal outcome (ClickHouse when enabled).
type EventSink interface {
	Insert(ctx context.Context, e model.DeliveryEvent) error
}

type Recorder struct {
	store  Writer
	events EventSink
	log    *zap.Logger
}

// NewRecorder builds a recorder; events may be nil.
func NewRecorder(store Writer, events EventSink, log *zap.Logger) *Recorder {
	return &Recorder{store: store, events: events, log: log}
}

// Record writes status and the delivery timestamp for taskID.
func (r *Recorder) Record(ctx context.Context, status model.DeliveryStatus, taskID string) {
	if err := r.store.UpdateStatus(ctx, taskID, status); err != nil {
		metrics.StatusWriteFailures.Inc()
		r.log.Error("status write failed",
			zap.String("task_id", taskID),
			zap.Int("status", int(status)),
			zap.Error(err),
		)
	}
}

// Event appends e to the delivery log when one is configured.
func (r *Recorder) Event(ctx context.Context, e model.DeliveryEvent) {
	if r.events == nil {
		return
	}
	if err := r.events.Insert(ctx, e); err != nil {
		r.log.Warn("delivery event write failed", zap.String("task_id", e.TaskID), zap.Error(err))
	}
}
