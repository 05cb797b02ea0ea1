/*
 * @module service/models/anomaly
 * @description 对账异常与对账运行记录模型定义,异常字段名为对外稳定契约,报表与查询层直接依赖
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 对账运行 -> 异常生成 -> 原子替换当日异常集 -> 人工处理标记
 * @rules 异常 ID 由聚合器按排序后的确定性序号生成;同一日期的异常集只能被新一次运行整体替换,不做增量修改
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs ai_docs/requirements.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 异常类型常量
const (
	AnomalyTypeMissing        = "missing"
	AnomalyTypeMisplaced      = "misplaced"
	AnomalyTypeOrphan         = "orphan"
	AnomalyTypeStaleStaging   = "stale_staging"
	AnomalyTypeUnshippedOrder = "unshipped_order"
)

// 异常严重级别常量
const (
	SeverityHigh = "high"
	SeverityMed  = "med"
	SeverityLow  = "low"
)

// 对账运行状态常量
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusDone      = "done"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Anomaly 对账异常模型
// 字段名 id/date/type/severity/subject/expected/actual/detected_at/explanation/resolved
// 为对外稳定契约,外部报表依赖这些名称,不可变更
type Anomaly struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"` // 形如 2025-03-01-0007,按(type,subject)排序后编号
	Date        string    `gorm:"type:varchar(10);not null;index" json:"date"`
	Type        string    `gorm:"type:varchar(20);not null;index" json:"type"` // missing/misplaced/orphan/stale_staging/unshipped_order
	Severity    string    `gorm:"type:varchar(10);not null;index" json:"severity"`
	Subject     string    `gorm:"type:varchar(100);not null;index" json:"subject"` // 物品/SKU/订单编号,随类型而定
	Expected    *string   `gorm:"type:varchar(50)" json:"expected"`
	Actual      *string   `gorm:"type:varchar(50)" json:"actual"`
	DetectedAt  time.Time `gorm:"not null" json:"detected_at"`
	Explanation string    `gorm:"type:text" json:"explanation"`
	Resolved    bool      `gorm:"not null;default:false" json:"resolved"`
	RunID       string    `gorm:"type:uuid;index" json:"run_id"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (Anomaly) TableName() string {
	return "anomalies"
}

// ReconcileRun 对账运行记录模型,主键即任务 ID
type ReconcileRun struct {
	ID             string     `gorm:"type:uuid;primary_key" json:"id"`
	Date           string     `gorm:"type:varchar(10);not null;index" json:"date"`
	Status         string     `gorm:"type:varchar(20);not null;default:'queued'" json:"status"` // queued/running/done/failed/cancelled
	Summary        JSONB      `gorm:"type:jsonb" json:"summary"`
	SkippedRecords int        `gorm:"not null;default:0" json:"skipped_records"` // 因数据不一致被跳过的记录数
	ErrorMessage   string     `gorm:"type:text" json:"error_message"`
	TriggeredBy    string     `gorm:"type:varchar(20);not null;default:'manual'" json:"triggered_by"` // manual/scheduled
	StartedAt      *time.Time `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	DurationMs     int64      `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (ReconcileRun) TableName() string {
	return "reconcile_runs"
}

// BeforeCreate 创建前钩子
func (r *ReconcileRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = RunStatusQueued
	}
	if r.TriggeredBy == "" {
		r.TriggeredBy = "manual"
	}
	return nil
}
