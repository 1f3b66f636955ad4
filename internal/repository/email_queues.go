package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("not found")

// EmailQueueRepository persists the email_queues table.
type EmailQueueRepository interface {
	InsertPending(ctx context.Context, tx *sqlx.Tx, e model.QueuedEmail) error
	UpdateStatus(ctx context.Context, id string, status model.DeliveryStatus) error
	GetByID(ctx context.Context, id string) (model.QueuedEmail, error)
}

type EmailQueueRepositoryImpl struct {
	db *sqlx.DB
}

func NewEmailQueueRepository(db *sqlx.DB) *EmailQueueRepositoryImpl {
	return &EmailQueueRepositoryImpl{db: db}
}

// InsertPending inserts a new row with status=pending.
func (r *EmailQueueRepositoryImpl) InsertPending(ctx context.Context, tx *sqlx.Tx, e model.QueuedEmail) error {
	q := r.db.Rebind(`
		INSERT INTO email_queues
		    (id, email_type, subject, email_template, email_data, to_address, cc_addresses, bcc_addresses, priority_level, status, created_at)
		VALUES
		    (?,  ?,          ?,       ?,              ?,          ?,          ?,            ?,             ?,              ?,      NOW())
	`)
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			e.ID, e.EmailType, e.Subject, e.Template, e.Data,
			nullJSON(e.ToAddress), nullJSON(e.CcAddresses), nullJSON(e.BccAddresses),
			e.PriorityLevel, model.StatusPending,
		)
		return err
	})
}

// UpdateStatus stamps a terminal status and sent_at. It is a single autocommit statement.
func (r *EmailQueueRepositoryImpl) UpdateStatus(ctx context.Context, id string, status model.DeliveryStatus) error {
	q := r.db.Rebind(`UPDATE email_queues SET status = ?, sent_at = NOW() WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, int(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("email_queues %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *EmailQueueRepositoryImpl) GetByID(ctx context.Context, id string) (model.QueuedEmail, error) {
	q := r.db.Rebind(`
		SELECT id, email_type, subject, email_template, email_data, to_address, cc_addresses, bcc_addresses,
		       priority_level, status, sent_at, created_at
		FROM email_queues
		WHERE id = ?
	`)
	var e model.QueuedEmail
	if err := r.db.GetContext(ctx, &e, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.QueuedEmail{}, fmt.Errorf("email_queues %s: %w", id, ErrNotFound)
		}
		return model.QueuedEmail{}, err
	}
	return e, nil
}

// nullJSON stores an absent address field as SQL NULL.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
