/*
 * @module service/config/config_manager
 * @description 配置管理器,按键读取配置,解析顺序为 环境变量 -> 数据库 -> 内置默认值,带缓存
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 读取请求 -> 环境变量覆盖检查 -> 缓存检查 -> 数据库加载 -> 缓存写入
 * @rules 环境变量始终优先;数据库写入后使对应缓存条目失效
 * @dependencies warehouse-service/service/models, gorm.io/gorm
 * @refs service/config/config_service.go
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"warehouse-service/service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrConfigNotFound 配置键不存在
var ErrConfigNotFound = errors.New("配置不存在")

// envPrefix 环境变量覆盖前缀,如 reconcile.stale_hours -> WAREHOUSE_RECONCILE_STALE_HOURS
const envPrefix = "WAREHOUSE_"

type cacheEntry struct {
	value    string
	loadedAt time.Time
}

// ConfigManager 配置管理器
type ConfigManager struct {
	db *gorm.DB

	cacheLock sync.RWMutex
	cache     map[string]cacheEntry
	cacheTTL  time.Duration
}

// NewConfigManager 创建配置管理器实例
func NewConfigManager(db *gorm.DB) *ConfigManager {
	return &ConfigManager{
		db:       db,
		cache:    make(map[string]cacheEntry),
		cacheTTL: 30 * time.Second,
	}
}

// GetConfig 获取配置值,环境变量优先于数据库
func (c *ConfigManager) GetConfig(key string) (string, error) {
	if v, ok := os.LookupEnv(envKeyFor(key)); ok {
		return v, nil
	}

	c.cacheLock.RLock()
	entry, ok := c.cache[key]
	c.cacheLock.RUnlock()
	if ok && time.Since(entry.loadedAt) < c.cacheTTL {
		return entry.value, nil
	}

	var cfg models.SystemConfig
	err := c.db.Where("key = ?", key).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, key)
		}
		return "", fmt.Errorf("查询配置失败: %w", err)
	}

	c.cacheLock.Lock()
	c.cache[key] = cacheEntry{value: cfg.Value, loadedAt: time.Now()}
	c.cacheLock.Unlock()

	return cfg.Value, nil
}

// SetConfig 写入配置值,已存在则更新,并使缓存条目失效
func (c *ConfigManager) SetConfig(key, value, category, description, updatedBy string) error {
	if key == "" {
		return errors.New("配置键不能为空")
	}
	if updatedBy == "" {
		updatedBy = "system"
	}

	err := c.db.Transaction(func(tx *gorm.DB) error {
		var existing models.SystemConfig
		err := tx.Where("key = ?", key).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cfg := models.SystemConfig{
				ID:          uuid.New().String(),
				Key:         key,
				Value:       value,
				Category:    category,
				Description: description,
				UpdatedBy:   updatedBy,
			}
			if cfg.Category == "" {
				cfg.Category = categoryOf(key)
			}
			return tx.Create(&cfg).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"value":      value,
			"updated_by": updatedBy,
		}
		if description != "" {
			updates["description"] = description
		}
		return tx.Model(&existing).Updates(updates).Error
	})
	if err != nil {
		return fmt.Errorf("写入配置失败: %w", err)
	}

	c.cacheLock.Lock()
	delete(c.cache, key)
	c.cacheLock.Unlock()

	return nil
}

// ClearCache 清除全部配置缓存
func (c *ConfigManager) ClearCache() {
	c.cacheLock.Lock()
	c.cache = make(map[string]cacheEntry)
	c.cacheLock.Unlock()
}

// envKeyFor 配置键到环境变量名的映射
func envKeyFor(key string) string {
	name := strings.NewReplacer(".", "_", "-", "_").Replace(key)
	return envPrefix + strings.ToUpper(name)
}

// categoryOf 从键前缀推断配置分类
func categoryOf(key string) string {
	if idx := strings.Index(key, "."); idx > 0 {
		return key[:idx]
	}
	return "general"
}
