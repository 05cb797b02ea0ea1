/*
 * @module service/models/snapshot
 * @description 扫描快照与移库记录模型定义,快照为只追加数据,是对账观测侧的唯一来源
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/warehouse_model.md
 * @stateFlow 扫描上报 -> 快照落库 -> 移库推导 -> 对账观测
 * @rules 快照创建后不可修改;移库记录由快照位置变化推导生成
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs ai_docs/requirements.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 快照来源常量
const (
	SnapshotSourceManual  = "manual"
	SnapshotSourceScanner = "scanner"
	SnapshotSourceImport  = "import"
)

// Snapshot 扫描快照模型
// bin_id 可为空(仅识别到物品码而无库位上下文时)
type Snapshot struct {
	ID        string           `gorm:"type:uuid;primary_key" json:"id"`
	Ts        time.Time        `gorm:"not null;index;default:CURRENT_TIMESTAMP" json:"ts"`
	BinID     string           `gorm:"type:varchar(50);index" json:"bin_id"`
	ItemIDs   JSONBStringArray `gorm:"type:jsonb" json:"item_ids"`
	Conf      float64          `gorm:"not null;default:1" json:"conf"` // 识别置信度 [0,1]
	PhotoRef  string           `gorm:"type:varchar(255)" json:"photo_ref"`
	OcrText   string           `gorm:"type:text" json:"ocr_text"`
	Source    string           `gorm:"type:varchar(20);not null;default:'manual'" json:"source"` // manual/scanner/import
	Notes     string           `gorm:"type:text" json:"notes"`
	CreatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (Snapshot) TableName() string {
	return "snapshots"
}

// BeforeCreate 创建前钩子
func (s *Snapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Ts.IsZero() {
		s.Ts = time.Now()
	}
	if s.Conf == 0 {
		s.Conf = 1
	}
	return nil
}

// Movement 移库审计记录
// 当快照观测到物品出现在与上次位置不同的库位时生成
type Movement struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	Ts        time.Time `gorm:"not null;index;default:CURRENT_TIMESTAMP" json:"ts"`
	ItemID    string    `gorm:"type:varchar(100);not null;index" json:"item_id"`
	FromBin   string    `gorm:"type:varchar(50)" json:"from_bin"`
	ToBin     string    `gorm:"type:varchar(50)" json:"to_bin"`
	OpID      string    `gorm:"type:varchar(100)" json:"op_id"` // 操作来源,如快照 ID
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (Movement) TableName() string {
	return "movements"
}

// BeforeCreate 创建前钩子
func (m *Movement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Ts.IsZero() {
		m.Ts = time.Now()
	}
	return nil
}
