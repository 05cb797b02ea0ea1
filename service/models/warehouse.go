/*
 * @module service/models/warehouse
 * @description 仓库主数据模型定义，包括库位、物品、分配关系和出库订单
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/warehouse_model.md
 * @stateFlow 数据导入 -> 对账读取 -> 异常生成
 * @rules 每个物品同一时刻最多存在一条有效分配记录
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs ai_docs/requirements.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 库位角色常量
const (
	BinRoleStorage      = "storage"
	BinRoleStaging      = "staging"
	BinRoleReceiving    = "receiving"
	BinRoleQualityCheck = "quality_check"
	BinRoleOutbound     = "outbound"
)

// 分配状态常量
const (
	AllocationStatusAllocated    = "allocated"
	AllocationStatusStaged       = "staged"
	AllocationStatusReceived     = "received"
	AllocationStatusQualityCheck = "quality_check"
)

// 订单状态常量
const (
	OrderStatusPending = "pending"
	OrderStatusShipped = "shipped"
)

// Bin 库位模型，主键为业务库位编号
type Bin struct {
	BinID     string    `gorm:"type:varchar(50);primaryKey" json:"bin_id"`
	Zone      string    `gorm:"type:varchar(50);index" json:"zone"`
	Role      string    `gorm:"type:varchar(20);not null;default:'storage'" json:"role"` // storage/staging/receiving/quality_check/outbound
	Coords    string    `gorm:"type:varchar(100)" json:"coords"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (Bin) TableName() string {
	return "bins"
}

// Item 物品模型，主键为业务物品编号
type Item struct {
	ItemID     string    `gorm:"type:varchar(100);primaryKey" json:"item_id"`
	SKU        string    `gorm:"type:varchar(100);index" json:"sku"`
	Lot        string    `gorm:"type:varchar(100)" json:"lot"`
	CustomerID string    `gorm:"type:varchar(100);index" json:"customer_id"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (Item) TableName() string {
	return "items"
}

// Allocation 物品分配模型，描述物品的期望库位
// item_id 上的唯一索引保证每个物品同一时刻只有一条有效分配
type Allocation struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	ItemID    string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"item_id"`
	SKU       string    `gorm:"type:varchar(100);index" json:"sku"`
	BinID     string    `gorm:"type:varchar(50);not null;index" json:"bin_id"`
	Status    string    `gorm:"type:varchar(20);not null;default:'allocated'" json:"status"` // allocated/staged/received/quality_check
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (Allocation) TableName() string {
	return "allocations"
}

// BeforeCreate 创建前钩子
func (a *Allocation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = AllocationStatusAllocated
	}
	return nil
}

// Order 出库订单行模型
// 同一订单的多个 SKU 行共享 order_id,状态按行维护
type Order struct {
	ID        string           `gorm:"type:uuid;primary_key" json:"id"`
	OrderID   string           `gorm:"type:varchar(100);not null;index" json:"order_id"`
	ShipDate  time.Time        `gorm:"type:date;not null;index" json:"ship_date"`
	SKU       string           `gorm:"type:varchar(100)" json:"sku"`
	Qty       int              `gorm:"not null;default:0" json:"qty"`
	ItemIDs   JSONBStringArray `gorm:"type:jsonb" json:"item_ids"`
	Status    string           `gorm:"type:varchar(20);not null;default:'pending'" json:"status"` // pending/shipped
	CreatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate 创建前钩子
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	return nil
}
