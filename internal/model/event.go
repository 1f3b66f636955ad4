package model

import "time"

// DeliveryEvent is one terminal outcome appended to the ClickHouse delivery log.
type DeliveryEvent struct {
	TaskID     string    `db:"task_id" json:"task_id"`
	Tier       string    `db:"tier" json:"tier"`
	Template   string    `db:"template" json:"template"`
	Status     string    `db:"status" json:"status"` // sent | failed
	Attempts   uint32    `db:"attempts" json:"attempts"`
	LastError  string    `db:"last_error" json:"last_error,omitempty"`
	Recipients uint32    `db:"recipients" json:"recipients"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
