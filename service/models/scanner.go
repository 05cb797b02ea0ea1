/*
 * @module service/models/scanner
 * @description 扫描接入配置模型,描述一路 MQTT 扫描上报通道及其厂商报文转换脚本
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/scanner_feed_design.md
 * @stateFlow 配置创建 -> 通道订阅 -> 报文转换 -> 快照落库
 * @rules 主题唯一;脚本禁用时按默认 JSON 字段映射解析
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/scanner
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScannerFeed 扫描上报通道配置
// 每个通道对应一个 MQTT 主题,不同厂商设备可配置各自的报文转换脚本
type ScannerFeed struct {
	ID            string    `gorm:"type:uuid;primary_key" json:"id"`
	Name          string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Topic         string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"topic"`
	Vendor        string    `gorm:"type:varchar(50)" json:"vendor"`
	Script        string    `gorm:"type:text" json:"script"` // 报文转换脚本,返回快照字段映射
	ScriptEnabled bool      `gorm:"not null;default:false" json:"script_enabled"`
	IsEnabled     bool      `gorm:"not null;default:true" json:"is_enabled"`
	Description   string    `gorm:"type:text" json:"description"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (ScannerFeed) TableName() string {
	return "scanner_feeds"
}

// BeforeCreate 创建前钩子
func (f *ScannerFeed) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
