/*
 * @module service/reconcile/expectation
 * @description 期望状态构建器,从分配与订单读取集推导目标日期下每个物品应处的库位
 * @architecture 分层架构 - 核心服务层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 读取库位/订单/分配 -> 解析已发货订单覆盖物品 -> 构建期望快照
 * @rules 纯读取,不修改任何数据;存储错误向上传播;单条脏记录跳过并计数,不中断构建
 * @dependencies warehouse-service/service/models, gorm.io/gorm
 * @refs service/reconcile/engine.go
 */

package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"time"
	"warehouse-service/service/models"

	"gorm.io/gorm"
)

// BuildExpectation 构建目标日期的期望状态快照
// 返回物品到期望库位的映射(剔除已发货订单覆盖的物品)以及截至该日期的已发货订单集合
func BuildExpectation(ctx context.Context, db *gorm.DB, date string, cfg models.ReconcileConfig) (*models.Expectation, error) {
	dayStart, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return nil, ErrInvalidDate
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	exp := &models.Expectation{
		Date:         date,
		Items:        make(map[string]models.ExpectedItem),
		AllocatedIDs: make(map[string]bool),
		BinRoles:     make(map[string]string),
	}

	// 库位主数据,角色信息供 unshipped_order 规则与分配一致性检查使用
	var bins []models.Bin
	if err := db.WithContext(ctx).Find(&bins).Error; err != nil {
		return nil, storeErr("读取库位", err)
	}
	for _, b := range bins {
		exp.BinRoles[b.BinID] = b.Role
	}

	// 截至目标日期已发货的订单行
	var shippedLines []models.Order
	if err := db.WithContext(ctx).
		Where("status = ? AND ship_date < ?", models.OrderStatusShipped, dayEnd).
		Find(&shippedLines).Error; err != nil {
		return nil, storeErr("读取订单", err)
	}

	// 按 order_id 归并发货行,解析每行覆盖的物品
	type orderAcc struct {
		shipDate time.Time
		items    map[string]bool
	}
	orderIndex := make(map[string]*orderAcc)
	shippedItems := make(map[string]bool)

	for _, line := range shippedLines {
		if line.OrderID == "" {
			exp.Skipped++
			slog.Warn("对账期望构建: 订单行缺少订单号,已跳过", "row_id", line.ID)
			continue
		}

		itemIDs := []string(line.ItemIDs)
		if len(itemIDs) == 0 {
			// 行未显式列出物品时按 SKU 推导,数量封顶
			itemIDs, err = resolveItemsBySKU(ctx, db, line.SKU, line.Qty)
			if err != nil {
				return nil, storeErr("按SKU解析物品", err)
			}
		}

		acc, ok := orderIndex[line.OrderID]
		if !ok {
			acc = &orderAcc{shipDate: line.ShipDate, items: make(map[string]bool)}
			orderIndex[line.OrderID] = acc
		}
		if line.ShipDate.Before(acc.shipDate) {
			acc.shipDate = line.ShipDate
		}
		for _, id := range itemIDs {
			acc.items[id] = true
			shippedItems[id] = true
		}
	}

	orderIDs := make([]string, 0, len(orderIndex))
	for id := range orderIndex {
		orderIDs = append(orderIDs, id)
	}
	sort.Strings(orderIDs)
	for _, id := range orderIDs {
		acc := orderIndex[id]
		items := make([]string, 0, len(acc.items))
		for item := range acc.items {
			items = append(items, item)
		}
		sort.Strings(items)
		exp.ShippedOrders = append(exp.ShippedOrders, models.ShippedOrder{
			OrderID:  id,
			ShipDate: acc.shipDate,
			ItemIDs:  items,
		})
	}

	// 全部分配记录,item_id 唯一索引保证每物品至多一条
	var allocations []models.Allocation
	if err := db.WithContext(ctx).Find(&allocations).Error; err != nil {
		return nil, storeErr("读取分配", err)
	}

	for _, alloc := range allocations {
		if alloc.ItemID == "" {
			exp.Skipped++
			slog.Warn("对账期望构建: 分配记录缺少物品编号,已跳过", "allocation_id", alloc.ID)
			continue
		}

		// 无论是否纳入期望集,分配存在即代表物品为系统已知,orphan 规则不再标记
		exp.AllocatedIDs[alloc.ItemID] = true

		if alloc.BinID == "" {
			exp.Skipped++
			slog.Warn("对账期望构建: 分配记录缺少库位,已跳过", "item_id", alloc.ItemID)
			continue
		}
		if _, ok := exp.BinRoles[alloc.BinID]; !ok {
			exp.Skipped++
			slog.Warn("对账期望构建: 分配引用了不存在的库位,已跳过",
				"item_id", alloc.ItemID, "bin_id", alloc.BinID)
			continue
		}
		// 已发货订单覆盖的物品不再属于期望在库集合
		if shippedItems[alloc.ItemID] {
			continue
		}

		exp.Items[alloc.ItemID] = models.ExpectedItem{
			ItemID: alloc.ItemID,
			SKU:    alloc.SKU,
			BinID:  alloc.BinID,
			Status: alloc.Status,
		}
	}

	return exp, nil
}

// resolveItemsBySKU 订单行未显式列出物品时,按 SKU 取物品编号,数量受行数量限制
// 按 item_id 排序保证推导结果可复现
func resolveItemsBySKU(ctx context.Context, db *gorm.DB, sku string, qty int) ([]string, error) {
	if sku == "" || qty <= 0 {
		return nil, nil
	}

	var ids []string
	if err := db.WithContext(ctx).Model(&models.Item{}).
		Where("sku = ?", sku).
		Order("item_id ASC").
		Limit(qty).
		Pluck("item_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
