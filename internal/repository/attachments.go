package repository

import (
	"context"

	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type AttachmentsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, a model.AttachmentRecord) error
	ListByTask(ctx context.Context, taskID string) ([]model.AttachmentRecord, error)
}

type AttachmentsRepositoryImpl struct {
	db *sqlx.DB
}

func NewAttachmentsRepository(db *sqlx.DB) *AttachmentsRepositoryImpl {
	return &AttachmentsRepositoryImpl{db: db}
}

func (r *AttachmentsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, a model.AttachmentRecord) error {
	q := r.db.Rebind(`
		INSERT INTO email_attachments
		    (email_queue_id, file_name, file_path, mime_type, file_size, checksum_sha256, created_at)
		VALUES
		    (?,              ?,         ?,         ?,         ?,         ?,               NOW())
	`)
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, a.TaskID, a.FileName, a.FilePath, a.MimeType, a.FileSize, a.Checksum)
		return err
	})
}

// ListByTask returns the task's attachments in insertion order.
func (r *AttachmentsRepositoryImpl) ListByTask(ctx context.Context, taskID string) ([]model.AttachmentRecord, error) {
	q := r.db.Rebind(`
		SELECT id, email_queue_id, file_name, file_path, mime_type, file_size, checksum_sha256, created_at
		FROM email_attachments
		WHERE email_queue_id = ?
		ORDER BY id ASC
	`)
	var rows []model.AttachmentRecord
	if err := r.db.SelectContext(ctx, &rows, q, taskID); err != nil {
		return nil, err
	}
	return rows, nil
}
