package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pixeloria/internal/models"
	"pixeloria/pkg/utils"
)

// ChatService 拥有会话的完整生命周期：创建、消息追加、状态流转、终止。
// 消息序列只增不删，追加是单行插入，插入顺序即自增 id 顺序。
type ChatService struct {
	db       *gorm.DB
	presence *PresenceTracker
	logger   *logrus.Logger
}

// UserInfo 会话创建时的访客信息
type UserInfo struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Country string `json:"country"`
}

// SessionFilter 会话列表过滤条件
type SessionFilter struct {
	Status   string
	ChatType string
}

// NewChatService 创建会话服务
func NewChatService(db *gorm.DB, presence *PresenceTracker, logger *logrus.Logger) *ChatService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ChatService{db: db, presence: presence, logger: logger}
}

// CreateSession 创建会话。人工会话有空闲管理员则直接 active 并分配，
// 否则进入 waiting 等待接入；AI 会话始终 active。
func (s *ChatService) CreateSession(ctx context.Context, info UserInfo, chatType, selectedModel string) (*models.ChatSession, error) {
	if strings.TrimSpace(info.Name) == "" || strings.TrimSpace(info.Email) == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrValidation)
	}
	if chatType != models.ChatTypeAI && chatType != models.ChatTypeAdmin {
		return nil, fmt.Errorf("%w: chat_type must be 'ai' or 'admin'", ErrValidation)
	}

	session := &models.ChatSession{
		SessionID:    utils.GenerateSessionID(),
		UserName:     strings.TrimSpace(info.Name),
		UserEmail:    strings.TrimSpace(info.Email),
		UserCountry:  strings.TrimSpace(info.Country),
		ChatType:     chatType,
		Status:       models.StatusActive,
		LastActivity: time.Now(),
	}

	switch chatType {
	case models.ChatTypeAI:
		session.AIModel = selectedModel
	case models.ChatTypeAdmin:
		adminID, err := s.presence.FindAvailableAdmin(ctx)
		if err != nil {
			return nil, err
		}
		if adminID == "" {
			session.Status = models.StatusWaiting
		} else {
			session.AdminID = &adminID
		}
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Infof("Created %s chat session %s (status=%s)", chatType, session.SessionID, session.Status)
	return session, nil
}

// FindBySessionID 按会话 id 加载会话（不含消息）
func (s *ChatService) FindBySessionID(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

// GetHistory 返回会话与其完整消息序列，按插入顺序
func (s *ChatService) GetHistory(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	session, err := s.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&session.Messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return session, nil
}

// AppendMessage 向会话追加一条消息。终止的会话拒绝任何新消息；
// 管理员回复已关闭的会话会把它重新拉回 active（运营上的刻意行为）。
func (s *ChatService) AppendMessage(ctx context.Context, sessionID string, sender, content, aiModel string) (*models.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	switch sender {
	case models.SenderUser, models.SenderAI, models.SenderAdmin, models.SenderSystem:
	default:
		return nil, fmt.Errorf("%w: invalid sender '%s'", ErrValidation, sender)
	}

	session, err := s.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	message := &models.ChatMessage{
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		AIModel:   aiModel,
		Status:    "sent",
	}

	now := time.Now()
	updates := map[string]interface{}{"last_activity": now}
	if sender == models.SenderAdmin && session.Status == models.StatusClosed {
		updates["status"] = models.StatusActive
	}
	if sender == models.SenderAdmin && session.Status == models.StatusWaiting {
		updates["status"] = models.StatusActive
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
		// 终态判定必须和写入在同一事务里按行级条件做：
		// 零行命中说明会话已终止，整个事务连同消息一起回滚
		result := tx.Model(&models.ChatSession{}).
			Where("session_id = ? AND status <> ?", sessionID, models.StatusTerminated).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update session activity: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSessionTerminated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return message, nil
}

// SetStatus 显式状态流转。terminated 是终态，不允许再改
func (s *ChatService) SetStatus(ctx context.Context, sessionID, status string) (*models.ChatSession, error) {
	switch status {
	case models.StatusWaiting, models.StatusActive, models.StatusClosed:
	default:
		return nil, fmt.Errorf("%w: invalid status '%s'", ErrValidation, status)
	}

	session, err := s.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("session_id = ? AND status <> ?", sessionID, models.StatusTerminated).
		Updates(map[string]interface{}{"status": status, "last_activity": now})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrSessionTerminated
	}

	session.Status = status
	session.LastActivity = now
	s.logger.Infof("Session %s status changed to %s", sessionID, status)
	return session, nil
}

// AssignAdmin 管理员接入一个等待中的会话
func (s *ChatService) AssignAdmin(ctx context.Context, sessionID, adminID string) (*models.ChatSession, error) {
	session, err := s.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("session_id = ? AND status <> ?", sessionID, models.StatusTerminated).
		Updates(map[string]interface{}{
			"admin_id":      adminID,
			"status":        models.StatusActive,
			"last_activity": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to assign admin: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrSessionTerminated
	}

	session.AdminID = &adminID
	session.Status = models.StatusActive
	session.LastActivity = now
	s.logger.Infof("Session %s assigned to admin %s", sessionID, adminID)
	return session, nil
}

// Terminate 管理员强制终止会话：记录原因、操作者与时间，
// 并追加一条 system 消息留档。终态，之后拒绝一切新消息。
func (s *ChatService) Terminate(ctx context.Context, sessionID, reason, terminatedBy string) (*models.ChatSession, error) {
	session, err := s.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "No reason provided"
	}
	if terminatedBy == "" {
		terminatedBy = "admin"
	}

	now := time.Now()
	systemMessage := &models.ChatMessage{
		SessionID: sessionID,
		Sender:    models.SenderSystem,
		Content:   fmt.Sprintf("Chat terminated by admin. Reason: %s", reason),
		Status:    "sent",
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 留档消息先于状态翻转写入，终止后不再接受任何追加
		if err := tx.Create(systemMessage).Error; err != nil {
			return fmt.Errorf("failed to append system message: %w", err)
		}
		// 重复终止按行级条件拦截，避免并发下写出第二条留档消息
		result := tx.Model(&models.ChatSession{}).
			Where("session_id = ? AND status <> ?", sessionID, models.StatusTerminated).
			Updates(map[string]interface{}{
				"status":             models.StatusTerminated,
				"termination_reason": reason,
				"terminated_by":      terminatedBy,
				"terminated_at":      now,
				"last_activity":      now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to terminate session: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSessionTerminated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session.Status = models.StatusTerminated
	session.TerminationReason = reason
	session.TerminatedBy = terminatedBy
	session.TerminatedAt = &now
	session.LastActivity = now

	s.logger.Infof("Session %s terminated by %s: %s", sessionID, terminatedBy, reason)
	return session, nil
}

// List 按过滤条件分页列出会话，最近活跃的在前
func (s *ChatService) List(ctx context.Context, filter SessionFilter, page, pageSize int) ([]models.ChatSession, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.ChatSession{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ChatType != "" {
		query = query.Where("chat_type = ?", filter.ChatType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	var sessions []models.ChatSession
	err := query.Order("last_activity DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, total, nil
}
