package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.SystemLog{}))
	return db
}

func TestDBHandlerPersistsErrorsOnStop(t *testing.T) {
	db := openDB(t)
	h := NewDBHandler(db)
	logger := slog.New(NewFanout(h, nil)).With("request_id", "req-1")

	logger.Info("ignored")
	logger.Error("idea move failed", "user_id", "u-1", "error", "boom", "idea_id", "i-9")
	h.Stop()
	h.Stop()

	var logs []models.SystemLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "ERROR", logs[0].Level)
	assert.Equal(t, "req-1", logs[0].RequestID)
	assert.Equal(t, "boom", logs[0].Error)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, "u-1", *logs[0].UserID)
	assert.Contains(t, string(logs[0].Extra), "i-9")
}

func TestDBHandlerEnabled(t *testing.T) {
	h := &DBHandler{}
	assert.False(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestPruneSystemLogs(t *testing.T) {
	db := openDB(t)
	now := time.Now()
	require.NoError(t, db.Create(&[]models.SystemLog{
		{ID: uuid.New(), Timestamp: now.Add(-40 * 24 * time.Hour), Level: "ERROR", Message: "old"},
		{ID: uuid.New(), Timestamp: now.Add(-time.Hour), Level: "ERROR", Message: "fresh"},
	}).Error)

	deleted, err := PruneSystemLogs(db, now, Retention)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var left []models.SystemLog
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "fresh", left[0].Message)
}
