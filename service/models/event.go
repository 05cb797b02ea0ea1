/*
 * @module service/models/event
 * @description 事件推送相关模型定义,包括 SSE 推送事件与数据库变更监听配置
 * @architecture 事件驱动架构 - 数据模型层
 * @documentReference ai_docs/event_push.md
 * @stateFlow 数据库变更 -> NOTIFY -> 事件分发 -> SSE 推送
 * @rules 推送按频道广播,频道对应业务域(runs/anomalies/snapshots)
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/event
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SSE 推送频道常量
const (
	EventChannelRuns      = "runs"
	EventChannelAnomalies = "anomalies"
	EventChannelSnapshots = "snapshots"
)

// SSEEvent SSE 推送事件存档,断线客户端可据此补齐
type SSEEvent struct {
	ID        string     `gorm:"type:uuid;primary_key" json:"id"`
	Channel   string     `gorm:"type:varchar(30);not null;index" json:"channel"` // runs/anomalies/snapshots
	EventType string     `gorm:"type:varchar(50);not null" json:"event_type"`
	Data      JSONB      `gorm:"type:jsonb" json:"data"`
	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	Sent      bool       `gorm:"not null;default:false" json:"sent"`
	SentAt    *time.Time `json:"sent_at"`
}

// BeforeCreate 创建前钩子
func (s *SSEEvent) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// DBEventListener 数据库事件监听配置模型
// 描述对哪些表的哪些变更通过 LISTEN/NOTIFY 转发到哪个推送频道
type DBEventListener struct {
	ID         string           `gorm:"type:uuid;primary_key" json:"id"`
	Name       string           `gorm:"type:varchar(100);not null;unique" json:"name"`
	TableName  string           `gorm:"type:varchar(100);not null" json:"table_name"`
	EventTypes JSONBStringArray `gorm:"type:jsonb;not null" json:"event_types"` // INSERT, UPDATE, DELETE
	Channel    string           `gorm:"type:varchar(30);not null" json:"channel"`
	IsEnabled  bool             `gorm:"not null;default:true" json:"is_enabled"`
	CreatedAt  time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (DBEventListener) TableName() string {
	return "db_event_listeners"
}

// BeforeCreate 创建前钩子
func (d *DBEventListener) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}
