/*
 * @module service/config/config_service
 * @description 配置服务,提供业务层配置读写与对账运行配置解析
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 服务调用 -> 配置管理器 -> 环境变量/数据库/默认值
 * @rules 解析失败一律回退默认值并告警,不让坏配置阻断对账运行
 * @dependencies warehouse-service/service/models, github.com/spf13/cast, gorm.io/gorm
 * @refs service/config/config_manager.go
 */

package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"warehouse-service/service/models"

	"github.com/spf13/cast"
	"gorm.io/gorm"
)

// 内置默认值,数据库与环境变量都未提供时生效
const (
	DefaultStagingBins        = "S-01,S-02,S-03,S-04"
	DefaultStaleHours         = 12.0
	DefaultConfidenceFloor    = 0.5
	DefaultGraceDays          = 0
	DefaultRunTimeoutSeconds  = 60
	DefaultBurstWindowSeconds = 120
	DefaultScheduleCron       = "0 0 2 * * *"
	DefaultRunRetentionDays   = 90
	DefaultStorageBackend     = "local"
	DefaultStorageLocalDir    = "./storage"
)

// ConfigService 配置服务
type ConfigService struct {
	db      *gorm.DB
	manager *ConfigManager
}

// NewConfigService 创建配置服务实例
func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{
		db:      db,
		manager: NewConfigManager(db),
	}
}

// GetSystemConfig 获取系统配置
func (s *ConfigService) GetSystemConfig(key string) (string, error) {
	return s.manager.GetConfig(key)
}

// SetSystemConfig 设置系统配置
func (s *ConfigService) SetSystemConfig(key, value, description, updatedBy string) error {
	return s.manager.SetConfig(key, value, "", description, updatedBy)
}

// GetAllSystemConfigs 获取所有系统配置,数据库配置与内置默认值合并
func (s *ConfigService) GetAllSystemConfigs() ([]models.SystemConfigItem, error) {
	var configs []models.SystemConfig
	err := s.db.Order("key ASC").Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("查询配置失败: %w", err)
	}

	items := make([]models.SystemConfigItem, 0, len(configs))
	existingKeys := make(map[string]bool)
	for _, config := range configs {
		items = append(items, models.SystemConfigItem{
			Key:         config.Key,
			Value:       config.Value,
			Category:    config.Category,
			Description: config.Description,
			ValueType:   valueTypeOf(config.Key),
		})
		existingKeys[config.Key] = true
	}

	for _, def := range defaultConfigItems() {
		if !existingKeys[def.Key] {
			def.IsDefault = true
			items = append(items, def)
		}
	}

	return items, nil
}

// ResolveReconcileConfig 解析一次对账运行的完整配置快照
// 任一配置项解析失败都回退默认值,保证运行总能拿到合法配置
func (s *ConfigService) ResolveReconcileConfig() models.ReconcileConfig {
	cfg := models.ReconcileConfig{
		StagingBins:        parseStagingBins(s.getString(models.ConfigKeyStagingBins, DefaultStagingBins)),
		StaleHours:         s.getFloat(models.ConfigKeyStaleHours, DefaultStaleHours),
		BinStaleHours:      parseBinStaleHours(s.getString(models.ConfigKeyBinStaleHours, "")),
		ConfidenceFloor:    s.getFloat(models.ConfigKeyConfidenceFloor, DefaultConfidenceFloor),
		GraceDays:          s.getInt(models.ConfigKeyGraceDays, DefaultGraceDays),
		RunTimeoutSeconds:  s.getInt(models.ConfigKeyRunTimeoutSeconds, DefaultRunTimeoutSeconds),
		BurstWindowSeconds: s.getInt(models.ConfigKeyBurstWindowSeconds, DefaultBurstWindowSeconds),
	}

	if cfg.ConfidenceFloor < 0 || cfg.ConfidenceFloor > 1 {
		slog.Warn("置信度下限超出 [0,1],回退默认值", "value", cfg.ConfidenceFloor)
		cfg.ConfidenceFloor = DefaultConfidenceFloor
	}
	if cfg.StaleHours <= 0 {
		slog.Warn("滞留阈值非正数,回退默认值", "value", cfg.StaleHours)
		cfg.StaleHours = DefaultStaleHours
	}
	if cfg.GraceDays < 0 {
		cfg.GraceDays = DefaultGraceDays
	}
	if cfg.RunTimeoutSeconds <= 0 {
		cfg.RunTimeoutSeconds = DefaultRunTimeoutSeconds
	}
	if cfg.BurstWindowSeconds < 0 {
		cfg.BurstWindowSeconds = DefaultBurstWindowSeconds
	}

	return cfg
}

// GetScheduleCron 获取每日定时对账的 cron 表达式
func (s *ConfigService) GetScheduleCron() string {
	return s.getString(models.ConfigKeyScheduleCron, DefaultScheduleCron)
}

// GetRunRetentionDays 获取运行记录保留天数
func (s *ConfigService) GetRunRetentionDays() int {
	days := s.getInt(models.ConfigKeyRunRetentionDays, DefaultRunRetentionDays)
	if days <= 0 {
		return DefaultRunRetentionDays
	}
	return days
}

// GetStorageBackend 获取报表存储后端,local 或 s3
func (s *ConfigService) GetStorageBackend() string {
	backend := s.getString(models.ConfigKeyStorageBackend, DefaultStorageBackend)
	if backend != "local" && backend != "s3" {
		slog.Warn("未知存储后端,回退 local", "backend", backend)
		return DefaultStorageBackend
	}
	return backend
}

// GetStorageLocalDir 获取本地存储目录
func (s *ConfigService) GetStorageLocalDir() string {
	return s.getString(models.ConfigKeyStorageLocalDir, DefaultStorageLocalDir)
}

// GetS3Endpoint 获取 S3 端点,空值表示使用 SDK 默认端点
func (s *ConfigService) GetS3Endpoint() string {
	return s.getString(models.ConfigKeyS3Endpoint, "")
}

// GetS3Bucket 获取 S3 桶名
func (s *ConfigService) GetS3Bucket() string {
	return s.getString(models.ConfigKeyS3Bucket, "")
}

// ClearCache 清除配置缓存
func (s *ConfigService) ClearCache() {
	s.manager.ClearCache()
}

func (s *ConfigService) getString(key, defaultValue string) string {
	value, err := s.manager.GetConfig(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *ConfigService) getFloat(key string, defaultValue float64) float64 {
	value, err := s.manager.GetConfig(key)
	if err != nil {
		return defaultValue
	}
	parsed, err := cast.ToFloat64E(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("配置值无法解析为浮点数,回退默认值", "key", key, "value", value)
		return defaultValue
	}
	return parsed
}

func (s *ConfigService) getInt(key string, defaultValue int) int {
	value, err := s.manager.GetConfig(key)
	if err != nil {
		return defaultValue
	}
	parsed, err := cast.ToIntE(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("配置值无法解析为整数,回退默认值", "key", key, "value", value)
		return defaultValue
	}
	return parsed
}

// parseStagingBins 解析逗号分隔的暂存库位列表
func parseStagingBins(raw string) []string {
	parts := strings.Split(raw, ",")
	bins := make([]string, 0, len(parts))
	seen := make(map[string]bool)
	for _, p := range parts {
		bin := strings.TrimSpace(p)
		if bin == "" || seen[bin] {
			continue
		}
		seen[bin] = true
		bins = append(bins, bin)
	}
	return bins
}

// parseBinStaleHours 解析按库位覆盖的滞留阈值,格式 S-01=24,S-02=6
func parseBinStaleHours(raw string) map[string]float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	overrides := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			slog.Warn("库位滞留阈值格式非法,已忽略", "pair", pair)
			continue
		}
		bin := strings.TrimSpace(kv[0])
		hours, err := cast.ToFloat64E(strings.TrimSpace(kv[1]))
		if err != nil || bin == "" || hours <= 0 {
			slog.Warn("库位滞留阈值格式非法,已忽略", "pair", pair)
			continue
		}
		overrides[bin] = hours
	}
	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

// valueTypeOf 配置键对应的值类型,用于前端渲染
func valueTypeOf(key string) string {
	switch key {
	case models.ConfigKeyStaleHours, models.ConfigKeyConfidenceFloor:
		return "float"
	case models.ConfigKeyGraceDays, models.ConfigKeyRunTimeoutSeconds,
		models.ConfigKeyBurstWindowSeconds, models.ConfigKeyRunRetentionDays:
		return "int"
	default:
		return "string"
	}
}

// defaultConfigItems 内置默认配置项清单
func defaultConfigItems() []models.SystemConfigItem {
	return []models.SystemConfigItem{
		{Key: models.ConfigKeyStagingBins, Value: DefaultStagingBins, Category: "reconcile", Description: "暂存库位集合,逗号分隔", ValueType: "string"},
		{Key: models.ConfigKeyStaleHours, Value: strconv.FormatFloat(DefaultStaleHours, 'f', -1, 64), Category: "reconcile", Description: "暂存滞留全局阈值(小时)", ValueType: "float"},
		{Key: models.ConfigKeyBinStaleHours, Value: "", Category: "reconcile", Description: "按库位覆盖的滞留阈值,如 S-01=24,S-02=6", ValueType: "string"},
		{Key: models.ConfigKeyConfidenceFloor, Value: strconv.FormatFloat(DefaultConfidenceFloor, 'f', -1, 64), Category: "reconcile", Description: "识别置信度下限", ValueType: "float"},
		{Key: models.ConfigKeyGraceDays, Value: strconv.Itoa(DefaultGraceDays), Category: "reconcile", Description: "missing 规则回看宽限天数,0 表示仅当日", ValueType: "int"},
		{Key: models.ConfigKeyRunTimeoutSeconds, Value: strconv.Itoa(DefaultRunTimeoutSeconds), Category: "reconcile", Description: "单次对账运行超时(秒)", ValueType: "int"},
		{Key: models.ConfigKeyBurstWindowSeconds, Value: strconv.Itoa(DefaultBurstWindowSeconds), Category: "reconcile", Description: "同库位快照突发合并窗口(秒)", ValueType: "int"},
		{Key: models.ConfigKeyScheduleCron, Value: DefaultScheduleCron, Category: "reconcile", Description: "每日定时对账 cron 表达式(含秒)", ValueType: "string"},
		{Key: models.ConfigKeyRunRetentionDays, Value: strconv.Itoa(DefaultRunRetentionDays), Category: "reconcile", Description: "运行记录保留天数", ValueType: "int"},
		{Key: models.ConfigKeyStorageBackend, Value: DefaultStorageBackend, Category: "storage", Description: "报表存储后端 local/s3", ValueType: "string"},
		{Key: models.ConfigKeyStorageLocalDir, Value: DefaultStorageLocalDir, Category: "storage", Description: "本地存储目录", ValueType: "string"},
		{Key: models.ConfigKeyS3Endpoint, Value: "", Category: "storage", Description: "S3 端点,兼容 MinIO", ValueType: "string"},
		{Key: models.ConfigKeyS3Bucket, Value: "", Category: "storage", Description: "S3 桶名", ValueType: "string"},
	}
}
