package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pixeloria/internal/models"
	"pixeloria/internal/providers"
	"pixeloria/internal/vault"
)

// KeyTester 校验某提供商密钥是否可用
type KeyTester interface {
	Test(ctx context.Context, provider providers.Provider, apiKey string) bool
}

// CredentialService 管理提供商凭证：保存即校验，密钥只以密文落盘。
// 一个提供商可用于对话，当且仅当 is_enabled 且 status=active 且密文可解。
type CredentialService struct {
	db       *gorm.DB
	vault    *vault.Vault
	registry *providers.Registry
	tester   KeyTester
	logger   *logrus.Logger
}

// NewCredentialService 创建凭证服务
func NewCredentialService(db *gorm.DB, v *vault.Vault, registry *providers.Registry, tester KeyTester, logger *logrus.Logger) *CredentialService {
	if logger == nil {
		logger = logrus.New()
	}
	return &CredentialService{db: db, vault: v, registry: registry, tester: tester, logger: logger}
}

// SaveCredentialRequest 保存凭证请求
type SaveCredentialRequest struct {
	ID        string `json:"id" binding:"required"`
	Name      string `json:"name"`
	APIKey    string `json:"api_key" binding:"required"`
	ModelName string `json:"model_name"`
	IsEnabled bool   `json:"is_enabled"`
}

// CredentialView 凭证的对外视图，密钥只暴露掩码
type CredentialView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Color       string     `json:"color"`
	MaskedKey   string     `json:"masked_key"`
	ModelName   string     `json:"model_name,omitempty"`
	IsEnabled   bool       `json:"is_enabled"`
	Status      string     `json:"status"`
	LastTested  *time.Time `json:"last_tested,omitempty"`
}

// UsableProvider 可用于对话的提供商及其解密后的密钥
type usableCredential struct {
	Provider providers.Provider
	APIKey   string
	Model    string
}

// Save 校验并持久化一条凭证。先测活，再加密存储；加密失败对保存是致命的，
// 测活失败不是 —— 凭证仍会保存，但 status 置为 error。
func (s *CredentialService) Save(ctx context.Context, req SaveCredentialRequest) (*CredentialView, bool, error) {
	provider, ok := s.registry.Get(req.ID)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrProviderNotFound, req.ID)
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, false, fmt.Errorf("%w: api_key is required", ErrValidation)
	}

	tested := s.tester.Test(ctx, provider, req.APIKey)

	encrypted, err := s.vault.Encrypt(req.APIKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encrypt api key: %w", err)
	}

	status := "error"
	var lastTested *time.Time
	if tested {
		status = "active"
		now := time.Now()
		lastTested = &now
	}

	name := req.Name
	if name == "" {
		name = provider.Name
	}

	record := models.ProviderCredential{
		ID:              req.ID,
		Name:            name,
		Description:     provider.Description,
		Icon:            provider.Icon,
		Color:           provider.Color,
		EncryptedAPIKey: encrypted,
		ModelName:       req.ModelName,
		IsEnabled:       req.IsEnabled,
		Status:          status,
	}
	if lastTested != nil {
		record.LastTested = lastTested
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "encrypted_api_key", "model_name", "is_enabled", "status", "last_tested", "updated_at",
		}),
	}).Create(&record).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to save credential: %w", err)
	}

	s.logger.Infof("Saved credential for provider %s (tested=%v)", req.ID, tested)
	return s.toView(&record), tested, nil
}

// Test 校验一把密钥并把结果同步到已存储的凭证状态上
func (s *CredentialService) Test(ctx context.Context, providerID, apiKey string) (bool, error) {
	provider, ok := s.registry.Get(providerID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}
	if strings.TrimSpace(apiKey) == "" {
		return false, fmt.Errorf("%w: api_key is required", ErrValidation)
	}

	valid := s.tester.Test(ctx, provider, apiKey)

	updates := map[string]interface{}{"status": "error"}
	if valid {
		updates["status"] = "active"
		updates["last_tested"] = time.Now()
	}
	result := s.db.WithContext(ctx).Model(&models.ProviderCredential{}).
		Where("id = ?", providerID).
		Updates(updates)
	if result.Error != nil {
		s.logger.Errorf("Failed to update credential status for %s: %v", providerID, result.Error)
	}

	return valid, nil
}

// Delete 删除凭证记录，硬删除
func (s *CredentialService) Delete(ctx context.Context, providerID string) error {
	result := s.db.WithContext(ctx).Delete(&models.ProviderCredential{}, "id = ?", providerID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete credential: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, providerID)
	}

	s.logger.Infof("Deleted credential for provider %s", providerID)
	return nil
}

// List 返回全部已配置凭证的掩码视图。解密失败的记录掩码为空串，
// 不能因为一条损坏的密文让整个列表读路径失败。
func (s *CredentialService) List(ctx context.Context) ([]CredentialView, error) {
	var records []models.ProviderCredential
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	views := make([]CredentialView, 0, len(records))
	for i := range records {
		views = append(views, *s.toView(&records[i]))
	}
	return views, nil
}

// UsableProviderIDs 可用于对话的提供商 id 列表（启用且验证通过且密文可解）
func (s *CredentialService) UsableProviderIDs(ctx context.Context) ([]string, error) {
	var records []models.ProviderCredential
	err := s.db.WithContext(ctx).
		Where("is_enabled = ? AND status = ?", true, "active").
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list usable credentials: %w", err)
	}

	ids := make([]string, 0, len(records))
	for i := range records {
		if s.vault.Decrypt(records[i].EncryptedAPIKey) == "" {
			continue
		}
		ids = append(ids, records[i].ID)
	}
	return ids, nil
}

// resolveUsable 解析某提供商的可用凭证：存在、启用、active 且密钥可解，
// 任一条件不满足都视为配置问题而不是临时故障
func (s *CredentialService) resolveUsable(ctx context.Context, providerID string) (*usableCredential, error) {
	provider, ok := s.registry.Get(providerID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %s", ErrModelNotConfigured, providerID)
	}

	var record models.ProviderCredential
	err := s.db.WithContext(ctx).Where("id = ?", providerID).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: no credential for %s", ErrModelNotConfigured, providerID)
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	if !record.IsEnabled {
		return nil, fmt.Errorf("%w: provider %s is disabled", ErrModelNotConfigured, providerID)
	}
	if record.Status != "active" {
		return nil, fmt.Errorf("%w: provider %s key is not active", ErrModelNotConfigured, providerID)
	}

	apiKey := s.vault.Decrypt(record.EncryptedAPIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: provider %s key cannot be decrypted", ErrModelNotConfigured, providerID)
	}

	model := record.ModelName
	if model == "" {
		model = provider.DefaultModel
	}

	return &usableCredential{Provider: provider, APIKey: apiKey, Model: model}, nil
}

func (s *CredentialService) toView(record *models.ProviderCredential) *CredentialView {
	return &CredentialView{
		ID:          record.ID,
		Name:        record.Name,
		Description: record.Description,
		Icon:        record.Icon,
		Color:       record.Color,
		MaskedKey:   vault.MaskKey(s.vault.Decrypt(record.EncryptedAPIKey)),
		ModelName:   record.ModelName,
		IsEnabled:   record.IsEnabled,
		Status:      record.Status,
		LastTested:  record.LastTested,
	}
}
