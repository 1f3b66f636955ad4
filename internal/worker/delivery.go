package worker

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/broker"
	"github.com/jmehdipour/mail-gateway/internal/mailer"
	"github.com/jmehdipour/mail-gateway/internal/metrics"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/jmehdipour/mail-gateway/internal/templates"
	"go.uber.org/zap"
)

type AttachmentResolver interface {
	Resolve(ctx context.Context, taskID string) []string
}

type Renderer interface {
	Render(name string, data map[string]any) (string, error)
}

// Sender performs one delivery attempt; nil means accepted.
type Sender interface {
	Send(ctx context.Context, m mailer.Message) error
}

type StatusRecorder interface {
	Record(ctx context.Context, status model.DeliveryStatus, taskID string)
	Event(ctx context.Context, e model.DeliveryEvent)
}

type Outcome int

const (
	OutcomeDropped Outcome = iota // acked without a status write
	OutcomeSent
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeFailed:
		return "failed"
	default:
		return "dropped"
	}
}

type Result struct {
	Outcome  Outcome
	Attempts int
	Err      error // last attempt error, or the reason for a drop/render failure
}

// Delivery processes one task at a time: render, send with a fixed retry
// budget, record the terminal status.
type Delivery struct {
	Attachments AttachmentResolver
	Templates   Renderer
	Sender      Sender
	Status      StatusRecorder

	MaxRetries int
	RetryDelay time.Duration
	Sleep      func(time.Duration)

	log *zap.Logger
	now func() time.Time
}

func NewDelivery(
	att AttachmentResolver,
	tpl Renderer,
	sender Sender,
	status StatusRecorder,
	maxRetries int,
	retryDelay time.Duration,
	log *zap.Logger,
) *Delivery {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Delivery{
		Attachments: att,
		Templates:   tpl,
		Sender:      sender,
		Status:      status,
		MaxRetries:  maxRetries,
		RetryDelay:  retryDelay,
		Sleep:       time.Sleep,
		log:         log,
		now:         time.Now,
	}
}

// Handle processes m and acknowledges it exactly once, whatever the outcome.
func (d *Delivery) Handle(ctx context.Context, c broker.Consumer, m broker.Message) Result {
	defer func() {
		if err := c.Ack(ctx, m); err != nil {
			metrics.AckFailures.Inc()
			d.log.Error("ack failed", zap.String("tier", m.Tier.String()), zap.Error(err))
		}
	}()
	return d.Process(ctx, m)
}

// Process runs the task state machine without touching the broker.
func (d *Delivery) Process(ctx context.Context, m broker.Message) Result {
	started := d.now()

	task, err := model.ParseTask(m.Body)
	if err != nil {
		metrics.DropsTotal.WithLabelValues("malformed").Inc()
		d.log.Error("dropping malformed message", zap.String("tier", m.Tier.String()), zap.Error(err))
		return Result{Outcome: OutcomeDropped, Err: err}
	}

	log := d.log.With(
		zap.String("task_id", task.ID.String()),
		zap.String("tier", m.Tier.String()),
		zap.String("template", task.Template),
	)

	data, err := task.Payload()
	if err != nil {
		metrics.DropsTotal.WithLabelValues("payload_decode").Inc()
		log.Error("dropping task with undecodable email_data", zap.Error(err))
		return Result{Outcome: OutcomeDropped, Err: err}
	}

	paths := d.Attachments.Resolve(ctx, task.ID.String())

	msg := mailer.Message{
		Subject:     task.Subject.String(),
		To:          task.To,
		Cc:          task.Cc,
		Bcc:         task.Bcc,
		Attachments: paths,
	}

	body, err := d.Templates.Render(task.Template, data)
	if err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			log.Error("template not found, marking failed", zap.Error(err))
		} else {
			log.Error("template render failed, marking failed", zap.Error(err))
		}
		res := Result{Outcome: OutcomeFailed, Err: err}
		d.finish(ctx, task, m.Tier, msg, res, started)
		return res
	}
	msg.HTMLBody = body

	res := d.send(ctx, log, msg)
	if res.Outcome == OutcomeSent {
		log.Info("email sent", zap.Int("attempts", res.Attempts), zap.Int("attachments", len(paths)))
	} else {
		log.Error("email failed after retries", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	}
	d.finish(ctx, task, m.Tier, msg, res, started)
	return res
}

// send tries up to MaxRetries times, sleeping RetryDelay between attempts.
func (d *Delivery) send(ctx context.Context, log *zap.Logger, msg mailer.Message) Result {
	var lastErr error
	for attempt := 1; attempt <= d.MaxRetries; attempt++ {
		err := d.Sender.Send(ctx, msg)
		if err == nil {
			metrics.AttemptsTotal.WithLabelValues("ok").Inc()
			return Result{Outcome: OutcomeSent, Attempts: attempt}
		}
		metrics.AttemptsTotal.WithLabelValues("error").Inc()
		lastErr = err
		log.Warn("send attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", d.MaxRetries),
			zap.Error(err),
		)
		if attempt < d.MaxRetries {
			d.Sleep(d.RetryDelay)
		}
	}
	return Result{Outcome: OutcomeFailed, Attempts: d.MaxRetries, Err: lastErr}
}

func (d *Delivery) finish(ctx context.Context, task model.DeliveryTask, tier model.Tier, msg mailer.Message, res Result, started time.Time) {
	status := model.StatusFailed
	if res.Outcome == OutcomeSent {
		status = model.StatusSent
	}
	d.Status.Record(ctx, status, task.ID.String())

	ev := model.DeliveryEvent{
		TaskID:     task.ID.String(),
		Tier:       tier.String(),
		Template:   task.Template,
		Status:     status.String(),
		Attempts:   uint32(res.Attempts),
		Recipients: uint32(len(msg.Recipients())),
		OccurredAt: d.now().UTC(),
	}
	if res.Err != nil {
		ev.LastError = res.Err.Error()
	}
	d.Status.Event(ctx, ev)

	metrics.DeliveriesTotal.WithLabelValues(status.String(), tier.String()).Inc()
	metrics.DeliveryDuration.WithLabelValues(status.String()).Observe(d.now().Sub(started).Seconds())
}
