package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pixeloria/internal/models"
)

func TestPresenceTracker_SetOnlineUpsert(t *testing.T) {
	db := newTestDB(t)
	presence := NewPresenceTracker(db, nil)
	ctx := context.Background()

	record, err := presence.SetOnline(ctx, "admin1", true, "at my desk")
	assert.NoError(t, err)
	assert.True(t, record.IsOnline)
	assert.Equal(t, "at my desk", record.StatusMessage)

	// 二次更新同一管理员，不应新增记录
	_, err = presence.SetOnline(ctx, "admin1", false, "lunch")
	assert.NoError(t, err)

	var count int64
	db.Model(&models.AdminPresence{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var stored models.AdminPresence
	db.First(&stored, "admin_id = ?", "admin1")
	assert.False(t, stored.IsOnline)
	assert.Equal(t, "lunch", stored.StatusMessage)
}

func TestPresenceTracker_SetOnlineValidation(t *testing.T) {
	presence := NewPresenceTracker(newTestDB(t), nil)

	_, err := presence.SetOnline(context.Background(), "", true, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPresenceTracker_FindAvailableAdmin(t *testing.T) {
	db := newTestDB(t)
	presence := NewPresenceTracker(db, nil)
	ctx := context.Background()

	// 无人在线
	adminID, err := presence.FindAvailableAdmin(ctx)
	assert.NoError(t, err)
	assert.Empty(t, adminID)

	// 离线管理员不算可用
	presence.SetOnline(ctx, "offline-admin", false, "")
	adminID, _ = presence.FindAvailableAdmin(ctx)
	assert.Empty(t, adminID)

	// 在线但心跳过期的不算可用
	db.Create(&models.AdminPresence{
		AdminID:  "stale-admin",
		IsOnline: true,
		LastSeen: time.Now().Add(-10 * time.Minute),
	})
	adminID, _ = presence.FindAvailableAdmin(ctx)
	assert.Empty(t, adminID)

	// 在线且新鲜的可用
	presence.SetOnline(ctx, "fresh-admin", true, "")
	adminID, _ = presence.FindAvailableAdmin(ctx)
	assert.Equal(t, "fresh-admin", adminID)

	assert.True(t, presence.IsAdminAvailable(ctx))
}
