/*
 * @module service/models/system_config
 * @description 系统配置模型,存储对账参数、存储后端与扫描接入的可调配置
 * @architecture 数据模型层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 配置存储 -> 配置读取 -> 对账运行时解析为 ReconcileConfig
 * @rules 配置键唯一;环境变量优先于数据库配置
 * @dependencies gorm.io/gorm
 * @refs service/config
 */

package models

import (
	"time"
)

// 配置键常量,分类前缀 reconcile/storage/scanner
const (
	ConfigKeyStagingBins        = "reconcile.staging_bins"
	ConfigKeyStaleHours         = "reconcile.stale_hours"
	ConfigKeyBinStaleHours      = "reconcile.bin_stale_hours"
	ConfigKeyConfidenceFloor    = "reconcile.confidence_floor"
	ConfigKeyGraceDays          = "reconcile.grace_days"
	ConfigKeyRunTimeoutSeconds  = "reconcile.run_timeout_seconds"
	ConfigKeyBurstWindowSeconds = "reconcile.burst_window_seconds"
	ConfigKeyScheduleCron       = "reconcile.schedule_cron"
	ConfigKeyRunRetentionDays   = "reconcile.run_retention_days"
	ConfigKeyStorageBackend     = "storage.backend"
	ConfigKeyStorageLocalDir    = "storage.local_dir"
	ConfigKeyS3Endpoint         = "storage.s3_endpoint"
	ConfigKeyS3Bucket           = "storage.s3_bucket"
)

// SystemConfig 系统配置模型
type SystemConfig struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Key         string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"value"`
	Category    string    `gorm:"type:varchar(20);not null;default:'general'" json:"category"` // reconcile/storage/scanner/general
	Description string    `gorm:"type:text" json:"description"`
	UpdatedBy   string    `gorm:"type:varchar(100);not null;default:'system'" json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (SystemConfig) TableName() string {
	return "system_configs"
}

// SystemConfigItem 配置项视图,数据库配置与内置默认值合并后的展示结构
type SystemConfigItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ValueType   string `json:"value_type"` // string/int/float/bool
	IsDefault   bool   `json:"is_default"` // true 表示数据库中不存在,取的内置默认值
}
