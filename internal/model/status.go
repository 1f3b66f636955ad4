package model

import "time"

// DeliveryStatus is persisted on the queue row. Pending is set at enqueue time;
// Sent and Failed are terminal and written once by the worker.
type DeliveryStatus int

const (
	StatusPending DeliveryStatus = 0
	StatusSent    DeliveryStatus = 1
	StatusFailed  DeliveryStatus = 2
)

func (s DeliveryStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s DeliveryStatus) Valid() bool {
	return s == StatusPending || s == StatusSent || s == StatusFailed
}

func (s DeliveryStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// QueuedEmail is the DB entity persisted in the email_queues table.
type QueuedEmail struct {
	ID            string         `db:"id"`
	EmailType     string         `db:"email_type"`
	Subject       string         `db:"subject"`
	Template      string         `db:"email_template"`
	Data          []byte         `db:"email_data"`    // JSON object
	ToAddress     []byte         `db:"to_address"`    // JSON array or null
	CcAddresses   []byte         `db:"cc_addresses"`  // JSON array or null
	BccAddresses  []byte         `db:"bcc_addresses"` // JSON array or null
	PriorityLevel int            `db:"priority_level"`
	Status        DeliveryStatus `db:"status"`
	SentAt        *time.Time     `db:"sent_at"`
	CreatedAt     time.Time      `db:"created_at"`
}

// EmailType holds the default recipients for a kind of email. Address columns are JSON.
type EmailType struct {
	Type         string `db:"type"`
	ToAddress    []byte `db:"to_address"`
	CcAddresses  []byte `db:"cc_addresses"`
	BccAddresses []byte `db:"bcc_addresses"`
}
