package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// EmailTypesRepository reads default recipients per email type.
type EmailTypesRepository interface {
	Get(ctx context.Context, emailType string) (model.EmailType, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, et model.EmailType) error
}

type EmailTypesRepositoryImpl struct {
	db *sqlx.DB
}

func NewEmailTypesRepository(db *sqlx.DB) *EmailTypesRepositoryImpl {
	return &EmailTypesRepositoryImpl{db: db}
}

func (r *EmailTypesRepositoryImpl) Get(ctx context.Context, emailType string) (model.EmailType, error) {
	q := r.db.Rebind(`SELECT type, to_address, cc_addresses, bcc_addresses FROM email_types WHERE type = ?`)
	var et model.EmailType
	if err := r.db.GetContext(ctx, &et, q, emailType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.EmailType{}, fmt.Errorf("email type %q: %w", emailType, ErrNotFound)
		}
		return model.EmailType{}, err
	}
	return et, nil
}

// Upsert replaces the recipient defaults of a type, creating it when missing.
func (r *EmailTypesRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, et model.EmailType) error {
	q := `INSERT INTO email_types (type, to_address, cc_addresses, bcc_addresses) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE to_address = VALUES(to_address), cc_addresses = VALUES(cc_addresses), bcc_addresses = VALUES(bcc_addresses)`
	if r.db.DriverName() == "pgx" {
		q = `INSERT INTO email_types (type, to_address, cc_addresses, bcc_addresses) VALUES (?, ?, ?, ?)
ON CONFLICT (type) DO UPDATE SET to_address = EXCLUDED.to_address, cc_addresses = EXCLUDED.cc_addresses, bcc_addresses = EXCLUDED.bcc_addresses`
	}
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(q), et.Type, nullJSON(et.ToAddress), nullJSON(et.CcAddresses), nullJSON(et.BccAddresses))
		return err
	})
}
