package models

import (
	"time"
)

// 会话类型
const (
	ChatTypeAI    = "ai"
	ChatTypeAdmin = "admin"
)

// 会话状态
const (
	StatusWaiting    = "waiting"
	StatusActive     = "active"
	StatusClosed     = "closed"
	StatusTerminated = "terminated"
)

// 消息发送者
const (
	SenderUser   = "user"
	SenderAI     = "ai"
	SenderAdmin  = "admin"
	SenderSystem = "system"
)

// 聊天会话模型
type ChatSession struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	SessionID string `gorm:"uniqueIndex;not null" json:"session_id"`

	// 访客信息，创建后不可变
	UserName    string `gorm:"not null" json:"user_name"`
	UserEmail   string `gorm:"not null" json:"user_email"`
	UserCountry string `json:"user_country"`

	ChatType string  `gorm:"not null" json:"chat_type"`       // ai, admin
	Status   string  `gorm:"default:'active'" json:"status"`  // waiting, active, closed, terminated
	AdminID  *string `gorm:"index" json:"admin_id,omitempty"` // 仅人工会话分配后存在
	AIModel  string  `json:"ai_model,omitempty"`              // 仅 AI 会话存在，选定的提供商 id

	LastActivity time.Time `json:"last_activity"`

	// 终止元数据，仅 status=terminated 时存在
	TerminationReason string     `json:"termination_reason,omitempty"`
	TerminatedBy      string     `json:"terminated_by,omitempty"`
	TerminatedAt      *time.Time `json:"terminated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []ChatMessage `gorm:"foreignKey:SessionID;references:SessionID" json:"messages,omitempty"`
}

// 聊天消息模型，追加后不可修改或删除
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"index;not null" json:"session_id"`
	Sender    string    `gorm:"not null" json:"sender"` // user, ai, admin, system
	Content   string    `gorm:"type:text;not null" json:"content"`
	AIModel   string    `json:"ai_model,omitempty"`           // 仅 sender=ai 时存在
	Status    string    `gorm:"default:'sent'" json:"status"` // sent, delivered
	CreatedAt time.Time `json:"timestamp"`
}

// AI 提供商凭证，密钥加密存储
type ProviderCredential struct {
	ID          string `gorm:"primaryKey" json:"id"` // openai, groq, deepseek, gemini
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`

	// iv_hex:ciphertext_hex，永不以明文落盘或输出
	EncryptedAPIKey string `gorm:"type:text" json:"-"`

	ModelName  string     `json:"model_name,omitempty"`           // 覆盖提供商默认模型
	IsEnabled  bool       `gorm:"default:true" json:"is_enabled"`
	Status     string     `gorm:"default:'active'" json:"status"` // active, error
	LastTested *time.Time `json:"last_tested,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// 管理员在线状态
type AdminPresence struct {
	AdminID       string    `gorm:"primaryKey" json:"admin_id"`
	IsOnline      bool      `gorm:"default:false" json:"is_online"`
	LastSeen      time.Time `json:"last_seen"`
	StatusMessage string    `json:"status_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
