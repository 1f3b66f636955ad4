package repository

import (
	"context"

	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// DeliveryEventsRepository appends and lists terminal outcomes in ClickHouse.
type DeliveryEventsRepository interface {
	Insert(ctx context.Context, e model.DeliveryEvent) error
	ListByTask(ctx context.Context, taskID string, limit int) ([]model.DeliveryEvent, error)
}

type chDeliveryEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewDeliveryEventsRepository(ch *sqlx.DB) DeliveryEventsRepository {
	return &chDeliveryEventsRepository{ch: ch}
}

func (r *chDeliveryEventsRepository) Insert(ctx context.Context, e model.DeliveryEvent) error {
	const q = `
		INSERT INTO mailgw.delivery_events
		    (task_id, tier, template, status, attempts, last_error, recipients, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.ch.ExecContext(ctx, q,
		e.TaskID, e.Tier, e.Template, e.Status, e.Attempts, e.LastError, e.Recipients, e.OccurredAt,
	)
	return err
}

func (r *chDeliveryEventsRepository) ListByTask(ctx context.Context, taskID string, limit int) ([]model.DeliveryEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	const q = `
		SELECT task_id, tier, template, status, attempts, last_error, recipients, occurred_at
		FROM mailgw.delivery_events
		WHERE task_id = ?
		ORDER BY occurred_at DESC
		LIMIT ?
	`
	var rows []model.DeliveryEvent
	if err := r.ch.SelectContext(ctx, &rows, q, taskID, limit); err != nil {
		return nil, err
	}
	return rows, nil
}
