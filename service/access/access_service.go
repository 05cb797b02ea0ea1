/*
 * @module service/access
 * @description 接入凭证管理服务,提供 API Key 的签发、校验与生命周期管理
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/access_control.md
 * @stateFlow Key 签发(明文仅返回一次) -> 前缀索引+bcrypt哈希存储 -> 请求校验 -> 使用统计
 * @rules 数据库只存哈希,校验按前缀缩小范围后逐一比对,过期或停用的 Key 拒绝访问
 * @dependencies gorm.io/gorm, golang.org/x/crypto/bcrypt
 * @refs api/middleware/api_key_auth.go, service/models/api_key.go
 */

package access

import (
	"errors"
	"time"

	"warehouse-service/service/models"
	"warehouse-service/service/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 校验失败的错误类别,中间件据此区分响应
var (
	ErrApiKeyNotFound = errors.New("API Key不存在")
	ErrApiKeyInvalid  = errors.New("无效的API Key")
	ErrApiKeyExpired  = errors.New("API Key已过期")
)

// AccessService 接入凭证管理服务
type AccessService struct {
	db *gorm.DB
}

// NewAccessService 创建接入凭证管理服务实例
func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// CreateApiKey 创建一个新的API Key,完整Key值仅在返回时出现一次,数据库存储其哈希
func (s *AccessService) CreateApiKey(name, description string, expiresAt *time.Time) (*models.ApiKey, string, error) {
	if name == "" {
		return nil, "", errors.New("Key名称不能为空")
	}

	// 生成32字节随机值,转为64字符的hex
	fullKey, err := utils.GenerateRandomHex(64)
	if err != nil {
		return nil, "", err
	}

	// 前缀取前8个字符,用于校验时缩小查询范围
	keyPrefix := fullKey[:8]

	hashedKey, err := bcrypt.GenerateFromPassword([]byte(fullKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	apiKey := &models.ApiKey{
		Name:         name,
		KeyPrefix:    keyPrefix,
		KeyValueHash: string(hashedKey),
		Description:  description,
		Status:       models.ApiKeyStatusActive,
		ExpiresAt:    expiresAt,
	}

	if err := s.db.Create(apiKey).Error; err != nil {
		return nil, "", err
	}

	return apiKey, fullKey, nil
}

// VerifyApiKey 验证API Key,成功时更新使用统计
func (s *AccessService) VerifyApiKey(keyValue string) (*models.ApiKey, error) {
	if len(keyValue) < 8 {
		return nil, ErrApiKeyInvalid
	}

	keyPrefix := keyValue[:8]

	var keys []models.ApiKey
	if err := s.db.Where("key_prefix = ? AND status = ?", keyPrefix, models.ApiKeyStatusActive).Find(&keys).Error; err != nil {
		return nil, err
	}

	// 遍历所有匹配前缀的Key,逐一比对完整Key
	for _, key := range keys {
		if err := bcrypt.CompareHashAndPassword([]byte(key.KeyValueHash), []byte(keyValue)); err == nil {
			if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
				return nil, ErrApiKeyExpired
			}

			s.db.Model(&key).Updates(map[string]interface{}{
				"last_used_at": time.Now(),
				"usage_count":  key.UsageCount + 1,
			})

			return &key, nil
		}
	}

	return nil, ErrApiKeyInvalid
}

// ListApiKeys 获取所有API Key信息(不包含Key本身)
func (s *AccessService) ListApiKeys() ([]models.ApiKey, error) {
	var keys []models.ApiKey
	err := s.db.Order("created_at DESC").Find(&keys).Error
	return keys, err
}

// GetApiKey 根据ID获取API Key
func (s *AccessService) GetApiKey(keyID string) (*models.ApiKey, error) {
	var key models.ApiKey
	if err := s.db.First(&key, "id = ?", keyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApiKeyNotFound
		}
		return nil, err
	}
	return &key, nil
}

// UpdateApiKey 更新API Key信息,仅允许修改名称、描述、状态与过期时间
func (s *AccessService) UpdateApiKey(keyID string, updates map[string]interface{}) error {
	allowed := map[string]bool{
		"name":        true,
		"description": true,
		"status":      true,
		"expires_at":  true,
	}
	filtered := make(map[string]interface{})
	for k, v := range updates {
		if allowed[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return errors.New("没有可更新的字段")
	}

	result := s.db.Model(&models.ApiKey{}).Where("id = ?", keyID).Updates(filtered)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrApiKeyNotFound
	}
	return nil
}

// DisableApiKey 停用API Key
func (s *AccessService) DisableApiKey(keyID string) error {
	return s.UpdateApiKey(keyID, map[string]interface{}{"status": models.ApiKeyStatusDisabled})
}

// DeleteApiKey 删除API Key
func (s *AccessService) DeleteApiKey(keyID string) error {
	result := s.db.Delete(&models.ApiKey{}, "id = ?", keyID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrApiKeyNotFound
	}
	return nil
}
