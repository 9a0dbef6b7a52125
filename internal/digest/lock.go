package digest

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/planyard/internal/models"
	"gorm.io/gorm"
)

// DefaultLease is how long a claimed slot may stay running before another
// scheduler can reclaim it.
const DefaultLease = 10 * time.Minute

// ErrSlotClaimed is returned when the slot was already posted, or is being
// posted, by another run.
var ErrSlotClaimed = errors.New("digest slot already claimed")

// claimSlot records a running post of projectID's digest for slot. Running
// claims older than lease are expired first. A slot that is running or sent
// cannot be claimed again; a failed one can.
func claimSlot(db *gorm.DB, projectID string, slot, now time.Time, lease time.Duration) (*models.DigestRun, error) {
	if lease <= 0 {
		lease = DefaultLease
	}

	var run *models.DigestRun
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DigestRun{}).
			Where("project_id = ? AND slot = ? AND status = ? AND started_at < ?",
				projectID, slot, models.DigestRunning, now.Add(-lease)).
			Updates(map[string]interface{}{
				"status":       models.DigestExpired,
				"completed_at": now,
			}).Error; err != nil {
			return fmt.Errorf("expire stale runs: %w", err)
		}

		var existing models.DigestRun
		err := tx.Where("project_id = ? AND slot = ? AND status IN ?",
			projectID, slot, []string{models.DigestRunning, models.DigestSent}).First(&existing).Error
		if err == nil {
			return fmt.Errorf("%w: run %d is %s", ErrSlotClaimed, existing.ID, existing.Status)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check existing run: %w", err)
		}

		run = &models.DigestRun{
			ProjectID: projectID,
			Slot:      slot,
			Status:    models.DigestRunning,
			StartedAt: now,
		}
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("digest: claim %s at %s: %w", projectID, slot.Format(time.RFC3339), err)
	}
	return run, nil
}

// finishRun moves a running claim to status.
func finishRun(db *gorm.DB, id uint, status string, now time.Time) error {
	result := db.Model(&models.DigestRun{}).
		Where("id = ? AND status = ?", id, models.DigestRunning).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("digest: finish run %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("digest: finish run %d: not found or not running", id)
	}
	return nil
}
