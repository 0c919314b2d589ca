package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pixeloria/internal/models"
)

// PresenceFreshness 管理员心跳的新鲜度窗口：超过即视为离线
const PresenceFreshness = 5 * time.Minute

// PresenceTracker 维护管理员的自报在线状态
type PresenceTracker struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewPresenceTracker 创建在线状态跟踪器
func NewPresenceTracker(db *gorm.DB, logger *logrus.Logger) *PresenceTracker {
	if logger == nil {
		logger = logrus.New()
	}
	return &PresenceTracker{db: db, logger: logger}
}

// SetOnline 更新某管理员的在线状态并刷新 last_seen
func (p *PresenceTracker) SetOnline(ctx context.Context, adminID string, isOnline bool, statusMessage string) (*models.AdminPresence, error) {
	if adminID == "" {
		return nil, fmt.Errorf("%w: admin_id is required", ErrValidation)
	}

	record := models.AdminPresence{
		AdminID:       adminID,
		IsOnline:      isOnline,
		LastSeen:      time.Now(),
		StatusMessage: statusMessage,
	}

	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "admin_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_online", "last_seen", "status_message", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert presence: %w", err)
	}

	p.logger.Infof("Admin %s presence updated: online=%v", adminID, isOnline)
	return &record, nil
}

// FindAvailableAdmin 返回任意一个在线且心跳新鲜的管理员；没有则返回空串。
// 不做负载均衡，首个匹配即可。
func (p *PresenceTracker) FindAvailableAdmin(ctx context.Context) (string, error) {
	var record models.AdminPresence
	err := p.db.WithContext(ctx).
		Where("is_online = ? AND last_seen > ?", true, time.Now().Add(-PresenceFreshness)).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to query presence: %w", err)
	}
	return record.AdminID, nil
}

// IsAdminAvailable 是否存在可接待的管理员
func (p *PresenceTracker) IsAdminAvailable(ctx context.Context) bool {
	adminID, err := p.FindAvailableAdmin(ctx)
	if err != nil {
		p.logger.Errorf("Failed to check admin availability: %v", err)
		return false
	}
	return adminID != ""
}
