/*
 * @module service/models/api_key
 * @description API Key 模型,扫描设备与外部集成调用接口的凭证
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/access_design.md
 * @stateFlow 创建时返回一次明文 -> 此后仅存储哈希 -> 请求按前缀匹配后哈希比对
 * @rules 明文 Key 只在创建响应中出现一次;库内只存 bcrypt 哈希
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/access, api/middleware/api_key_auth.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// API Key 状态常量
const (
	ApiKeyStatusActive   = "active"
	ApiKeyStatusDisabled = "disabled"
)

// ApiKey API访问凭证
type ApiKey struct {
	ID           string     `gorm:"type:uuid;primary_key" json:"id"`
	Name         string     `gorm:"type:varchar(100);not null" json:"name"`
	KeyPrefix    string     `gorm:"type:varchar(8);not null;index" json:"key_prefix"`
	KeyValueHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Description  string     `gorm:"type:text" json:"description"`
	Status       string     `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	ExpiresAt    *time.Time `json:"expires_at"`
	LastUsedAt   *time.Time `json:"last_used_at"`
	UsageCount   int64      `gorm:"not null;default:0" json:"usage_count"`
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (ApiKey) TableName() string {
	return "api_keys"
}

// BeforeCreate 创建前钩子
func (k *ApiKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.Status == "" {
		k.Status = ApiKeyStatusActive
	}
	return nil
}
