package models

import "time"

// Digest run states.
const (
	DigestRunning = "running"
	DigestSent    = "sent"
	DigestFailed  = "failed"
	DigestExpired = "expired"
)

// DigestRun records one scheduled digest post for a project. Schedulers
// sharing a store claim a (project, slot) pair here before posting.
type DigestRun struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ProjectID   string     `gorm:"size:64;not null;index:idx_digest_run_slot" json:"projectId"`
	Slot        time.Time  `gorm:"not null;index:idx_digest_run_slot" json:"slot"`
	Status      string     `gorm:"size:16;not null;index" json:"status"`
	StartedAt   time.Time  `gorm:"not null" json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}
