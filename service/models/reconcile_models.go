/*
 * @module service/models/reconcile_models
 * @description 对账引擎相关模型定义,包括运行配置、期望状态、观测状态和规则产出
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 期望构建/观测采集 -> 规则评估 -> 异常聚合
 * @rules 期望与观测一经构建即为不可变快照;规则只读快照,互不依赖
 * @dependencies 无外部依赖,纯值类型
 * @refs service/reconcile
 */

package models

import (
	"time"
)

// ReconcileConfig 对账运行配置
// 每次运行都以显式配置值传入,而非读取全局可变状态,保证运行可复现
type ReconcileConfig struct {
	StagingBins        []string           `json:"staging_bins"`         // 暂存库位集合
	StaleHours         float64            `json:"stale_hours"`          // 全局暂存滞留阈值(小时)
	BinStaleHours      map[string]float64 `json:"bin_stale_hours"`      // 按库位覆盖的滞留阈值
	ConfidenceFloor    float64            `json:"confidence_floor"`     // 置信度下限
	GraceDays          int                `json:"grace_days"`           // missing 规则回看宽限天数,0 表示仅当日
	RunTimeoutSeconds  int                `json:"run_timeout_seconds"`  // 单次运行超时
	BurstWindowSeconds int                `json:"burst_window_seconds"` // 同库位快照突发合并窗口(秒)
}

// IsStagingBin 判断库位是否属于配置的暂存库位集合
func (c ReconcileConfig) IsStagingBin(binID string) bool {
	for _, b := range c.StagingBins {
		if b == binID {
			return true
		}
	}
	return false
}

// StaleThresholdFor 返回库位的滞留阈值,优先使用按库位覆盖值
func (c ReconcileConfig) StaleThresholdFor(binID string) float64 {
	if c.BinStaleHours != nil {
		if h, ok := c.BinStaleHours[binID]; ok {
			return h
		}
	}
	return c.StaleHours
}

// ExpectedItem 期望状态中的单个物品
type ExpectedItem struct {
	ItemID string `json:"item_id"`
	SKU    string `json:"sku"`
	BinID  string `json:"bin_id"` // 分配的期望库位
	Status string `json:"status"` // allocated/staged/received/quality_check
}

// ShippedOrder 截至目标日期已发货的订单(按 order_id 归并发货行)
type ShippedOrder struct {
	OrderID  string    `json:"order_id"`
	ShipDate time.Time `json:"ship_date"`
	ItemIDs  []string  `json:"item_ids"` // 发货行覆盖的物品,缺省时按 SKU 推导
}

// Expectation 期望状态快照,由分配与订单读取集构建,构建后只读
type Expectation struct {
	Date          string                  `json:"date"`
	Items         map[string]ExpectedItem `json:"items"`          // 有效分配(剔除已发货订单覆盖的物品)
	AllocatedIDs  map[string]bool         `json:"allocated_ids"`  // 存在任意分配记录的物品全集,orphan 判定用
	ShippedOrders []ShippedOrder          `json:"shipped_orders"` // unshipped_order 规则输入
	BinRoles      map[string]string       `json:"bin_roles"`      // 库位 -> 角色
	Skipped       int                     `json:"skipped"`        // 数据不一致被跳过的记录数
}

// Sighting 一次物品目击(来自快照)
type Sighting struct {
	ItemID string    `json:"item_id"`
	BinID  string    `json:"bin_id"`
	Ts     time.Time `json:"ts"`
	Conf   float64   `json:"conf"`
}

// Supersedes 目击裁决比较器:时间新者胜,时间相同则置信度高者胜
// 多处目击冲突时由该比较器唯一决定"最后所在库位",不依赖遍历顺序
func (s Sighting) Supersedes(o Sighting) bool {
	if !s.Ts.Equal(o.Ts) {
		return s.Ts.After(o.Ts)
	}
	return s.Conf > o.Conf
}

// BinObservation 单个库位的最新观测(同库位突发窗口内的快照已合并)
type BinObservation struct {
	BinID       string             `json:"bin_id"`
	Ts          time.Time          `json:"ts"`           // 合并后最新快照时间
	ItemIDs     []string           `json:"item_ids"`     // 合并后的物品码集合
	Conf        map[string]float64 `json:"conf"`         // 物品码 -> 窗口内最高置信度
	SnapshotIDs []string           `json:"snapshot_ids"` // 参与合并的快照
}

// Observation 观测状态快照,由快照读取集构建,构建后只读
type Observation struct {
	Date       string                          `json:"date"`
	Bins       map[string]BinObservation       `json:"bins"`        // 每库位最新观测(不限当日,截至日终)
	LastSeen   map[string]Sighting             `json:"last_seen"`   // 物品 -> 当日最后一次目击
	LastKnown  map[string]Sighting             `json:"last_known"`  // 物品 -> 最后已知位置(来自每库位最新观测)
	RecentConf map[string]float64              `json:"recent_conf"` // 物品 -> 宽限窗口内最高置信度
	FirstSeen  map[string]map[string]time.Time `json:"first_seen"`  // 暂存库位 -> 物品 -> 最早目击时间
	Snapshots  int                             `json:"snapshots"`   // 参与评估的快照数
	Skipped    int                             `json:"skipped"`
}

// RuleFinding 单条规则产出的异常草稿,由聚合器补齐 ID、日期与运行信息
type RuleFinding struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Subject     string  `json:"subject"`
	Expected    *string `json:"expected"`
	Actual      *string `json:"actual"`
	Explanation string  `json:"explanation"`
}

// RunSummary 对账运行汇总
type RunSummary struct {
	Date               string         `json:"date"`
	TotalAnomalies     int            `json:"total_anomalies"`
	ByType             map[string]int `json:"by_type"`
	BySeverity         map[string]int `json:"by_severity"`
	OrdersChecked      int            `json:"orders_checked"`
	SnapshotsProcessed int            `json:"snapshots_processed"`
	BinsScanned        int            `json:"bins_scanned"`
	Skipped            int            `json:"skipped"`
}

// ReconcileRequest 对账运行请求
type ReconcileRequest struct {
	Date        string              `json:"date"`
	TriggeredBy string              `json:"triggered_by"` // manual/scheduled
	Callback    func(*ReconcileRun) `json:"-"`
}

// RunEvent 对账运行事件,用于 SSE 推送与消息发布
type RunEvent struct {
	RunID     string                 `json:"run_id"`
	Date      string                 `json:"date"`
	EventType string                 `json:"event_type"` // start, phase, complete, error
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
