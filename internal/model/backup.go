package model

import "time"

// BackupStatus tracks one snapshot through pending, running and a final
// completed or failed state.
type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusRunning   BackupStatus = "running"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Backup is a database snapshot. Location is a local path or an s3:// URL.
type Backup struct {
	ID           int64        `json:"id"`
	Filename     string       `json:"filename"`
	Location     string       `json:"location"`
	Status       BackupStatus `json:"status"`
	SizeBytes    int64        `json:"size_bytes"`
	ErrorMessage string       `json:"error_message,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Restorable reports whether the snapshot finished and can be streamed back.
func (b *Backup) Restorable() bool {
	return b != nil && b.Status == BackupStatusCompleted
}
