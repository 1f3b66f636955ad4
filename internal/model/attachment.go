package model

import "time"

// AttachmentRecord is written once per uploaded file before the task is published.
// The worker only reads it.
type AttachmentRecord struct {
	ID        int64     `db:"id"`
	TaskID    string    `db:"email_queue_id"`
	FileName  string    `db:"file_name"`
	FilePath  string    `db:"file_path"`
	MimeType  string    `db:"mime_type"`
	FileSize  int64     `db:"file_size"`
	Checksum  string    `db:"checksum_sha256"`
	CreatedAt time.Time `db:"created_at"`
}
