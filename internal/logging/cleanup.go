package logging

import (
	"log/slog"
	"time"

	"github.com/kenha/kenhavate/internal/models"
	"gorm.io/gorm"
)

// Retention is how long system_logs rows are kept.
const Retention = 30 * 24 * time.Hour

// PruneSystemLogs deletes system_logs rows older than the retention window.
func PruneSystemLogs(db *gorm.DB, now time.Time, retention time.Duration) (int64, error) {
	result := db.Where("timestamp < ?", now.Add(-retention)).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}

// StartCleanup prunes system_logs once a day until done is closed.
func StartCleanup(db *gorm.DB, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deleted, err := PruneSystemLogs(db, time.Now(), Retention)
				if err != nil {
					slog.Error("log cleanup failed", "error", err)
				} else if deleted > 0 {
					slog.Info("log cleanup completed", "deleted", deleted)
				}
			case <-done:
				return
			}
		}
	}()
}
