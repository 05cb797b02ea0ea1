/*
 * @module service/ingest/ingest_service
 * @description CSV 数据导入服务,支持库位、订单、分配与快照四类数据的批量导入
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/warehouse_model.md
 * @stateFlow 文件上传 -> 编码归一化 -> 按行解析 -> 逐行校验与落库 -> 汇总结果
 * @rules 单行失败不中断整体导入,错误逐行记录;同一文件在一个事务内提交
 * @dependencies warehouse-service/service/models, warehouse-service/service/utils, github.com/spf13/cast, gorm.io/gorm
 * @refs api/controllers/ingest_controller.go
 */

package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"warehouse-service/service/models"
	"warehouse-service/service/monitoring"
	"warehouse-service/service/utils"

	"github.com/spf13/cast"
	"gorm.io/gorm"
)

// ErrEmptyFile 文件为空或只有表头
var ErrEmptyFile = errors.New("文件为空")

// ImportResult 单个文件的导入结果
type ImportResult struct {
	Imported  int      `json:"imported"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	TotalRows int      `json:"total_rows"`
	Errors    []string `json:"errors"`
}

// ImportSummary 当前库内数据总量
type ImportSummary struct {
	TotalBins        int64 `json:"total_bins"`
	TotalItems       int64 `json:"total_items"`
	TotalAllocations int64 `json:"total_allocations"`
	TotalOrders      int64 `json:"total_orders"`
	TotalSnapshots   int64 `json:"total_snapshots"`
}

// IngestService 数据导入服务
type IngestService struct {
	db *gorm.DB
}

// NewIngestService 创建数据导入服务实例
func NewIngestService(db *gorm.DB) *IngestService {
	return &IngestService{db: db}
}

// ImportBins 导入库位数据
// 列格式: bin_id, zone, role, coords;coords 允许包含逗号,第四列起合并
func (s *IngestService) ImportBins(ctx context.Context, data []byte) (*ImportResult, error) {
	records, err := readRecords(data)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrEmptyFile
	}

	header := headerIndex(records[0])
	if _, ok := header["bin_id"]; !ok {
		return nil, fmt.Errorf("缺少必需列: bin_id")
	}
	coordsCol, hasCoords := header["coords"]

	result := &ImportResult{TotalRows: len(records) - 1, Errors: []string{}}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, record := range records[1:] {
			binID := fieldAt(record, header, "bin_id")
			if binID == "" {
				result.Skipped++
				continue
			}

			coords := ""
			if hasCoords && len(record) > coordsCol {
				// 旧系统导出的坐标含逗号且不加引号,尾部各列合并还原
				parts := make([]string, 0, len(record)-coordsCol)
				for _, c := range record[coordsCol:] {
					parts = append(parts, strings.TrimSpace(c))
				}
				coords = strings.TrimSpace(strings.Join(parts, ","))
			}

			bin := models.Bin{
				BinID:  binID,
				Zone:   fieldAt(record, header, "zone"),
				Role:   fieldAt(record, header, "role"),
				Coords: coords,
			}
			if bin.Role == "" {
				bin.Role = models.BinRoleStorage
			}

			var existing models.Bin
			findErr := tx.Where("bin_id = ?", binID).First(&existing).Error
			switch {
			case findErr == nil:
				updates := map[string]interface{}{"zone": bin.Zone, "role": bin.Role, "coords": bin.Coords}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					result.Errors = append(result.Errors, rowError(i, binID, err))
					continue
				}
				result.Updated++
			case errors.Is(findErr, gorm.ErrRecordNotFound):
				if err := tx.Create(&bin).Error; err != nil {
					result.Errors = append(result.Errors, rowError(i, binID, err))
					continue
				}
				result.Imported++
			default:
				return findErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("库位导入失败: %w", err)
	}

	s.recordMetrics("bins", result)
	slog.Info("库位导入完成", "imported", result.Imported, "updated", result.Updated, "errors", len(result.Errors))
	return result, nil
}

// ImportOrders 导入订单数据
// 列格式: order_id, ship_date, sku, qty, item_ids, status
// item_ids 支持 JSON 数组或分号分隔两种写法;订单行按 (order_id, sku) 去重更新
func (s *IngestService) ImportOrders(ctx context.Context, data []byte) (*ImportResult, error) {
	records, err := readRecords(data)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrEmptyFile
	}

	header := headerIndex(records[0])
	for _, col := range []string{"order_id", "sku"} {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("缺少必需列: %s", col)
		}
	}

	result := &ImportResult{TotalRows: len(records) - 1, Errors: []string{}}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, record := range records[1:] {
			orderID := fieldAt(record, header, "order_id")
			sku := fieldAt(record, header, "sku")
			if orderID == "" || sku == "" {
				result.Skipped++
				continue
			}

			shipDate, err := parseDateField(fieldAt(record, header, "ship_date"))
			if err != nil {
				result.Errors = append(result.Errors, rowError(i, orderID, err))
				continue
			}

			qty, err := cast.ToIntE(fieldAt(record, header, "qty"))
			if err != nil {
				result.Errors = append(result.Errors, rowError(i, orderID, fmt.Errorf("qty 非法: %v", err)))
				continue
			}

			itemIDs := parseItemIDsField(fieldAt(record, header, "item_ids"))
			status := fieldAt(record, header, "status")
			if status == "" {
				status = models.OrderStatusPending
			}

			var existing models.Order
			findErr := tx.Where("order_id = ? AND sku = ?", orderID, sku).First(&existing).Error
			switch {
			case findErr == nil:
				updates := map[string]interface{}{
					"ship_date": shipDate,
					"qty":       qty,
					"item_ids":  models.JSONBStringArray(itemIDs),
					"status":    status,
				}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					result.Errors = append(result.Errors, rowError(i, orderID, err))
					continue
				}
				result.Updated++
			case errors.Is(findErr, gorm.ErrRecordNotFound):
				order := models.Order{
					OrderID:  orderID,
					ShipDate: shipDate,
					SKU:      sku,
					Qty:      qty,
					ItemIDs:  models.JSONBStringArray(itemIDs),
					Status:   status,
				}
				if err := tx.Create(&order).Error; err != nil {
					result.Errors = append(result.Errors, rowError(i, orderID, err))
					continue
				}
				result.Imported++
			default:
				return findErr
			}

			// 显式物品清单随订单补建物品档案
			for _, itemID := range itemIDs {
				if err := s.ensureItem(tx, itemID, sku); err != nil {
					result.Errors = append(result.Errors, rowError(i, itemID, err))
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("订单导入失败: %w", err)
	}

	s.recordMetrics("orders", result)
	slog.Info("订单导入完成", "imported", result.Imported, "updated", result.Updated, "errors", len(result.Errors))
	return result, nil
}

// ImportAllocations 导入分配数据
// 列格式: item_id, bin_id, status, sku(可选);按 item_id 去重更新
// 物品与库位档案缺失时自动补建占位记录,保证分配始终可引用
func (s *IngestService) ImportAllocations(ctx context.Context, data []byte) (*ImportResult, error) {
	records, err := readRecords(data)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrEmptyFile
	}

	header := headerIndex(records[0])
	for _, col := range []string{"item_id", "bin_id"} {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("缺少必需列: %s", col)
		}
	}

	result := &ImportResult{TotalRows: len(records) - 1, Errors: []string{}}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, record := range records[1:] {
			itemID := fieldAt(record, header, "item_id")
			binID := fieldAt(record, header, "bin_id")
			if itemID == "" || binID == "" {
				result.Skipped++
				continue
			}

			status := fieldAt(record, header, "status")
			if status == "" {
				status = models.AllocationStatusAllocated
			}
			sku := fieldAt(record, header, "sku")

			if err := s.ensureItem(tx, itemID, sku); err != nil {
				result.Errors = append(result.Errors, rowError(i, itemID, err))
				continue
			}
			if sku == "" {
				var item models.Item
				if err := tx.Where("item_id = ?", itemID).First(&item).Error; err == nil {
					sku = item.SKU
				}
			}
			if err := s.ensureBin(tx, binID); err != nil {
				result.Errors = append(result.Errors, rowError(i, binID, err))
				continue
			}

			var existing models.Allocation
			findErr := tx.Where("item_id = ?", itemID).First(&existing).Error
			switch {
			case findErr == nil:
				updates := map[string]interface{}{"bin_id": binID, "status": status, "sku": sku}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					result.Errors = append(result.Errors, rowError(i, itemID, err))
					continue
				}
				result.Updated++
			case errors.Is(findErr, gorm.ErrRecordNotFound):
				alloc := models.Allocation{ItemID: itemID, SKU: sku, BinID: binID, Status: status}
				if err := tx.Create(&alloc).Error; err != nil {
					result.Errors = append(result.Errors, rowError(i, itemID, err))
					continue
				}
				result.Imported++
			default:
				return findErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("分配导入失败: %w", err)
	}

	s.recordMetrics("allocations", result)
	slog.Info("分配导入完成", "imported", result.Imported, "updated", result.Updated, "errors", len(result.Errors))
	return result, nil
}

// ImportSnapshots 批量导入历史快照,用于初始化或补录
// 列格式: ts, bin_id, item_ids, conf, photo_ref, notes;快照只追加,不做更新
func (s *IngestService) ImportSnapshots(ctx context.Context, data []byte) (*ImportResult, error) {
	records, err := readRecords(data)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrEmptyFile
	}

	header := headerIndex(records[0])
	if _, ok := header["ts"]; !ok {
		return nil, fmt.Errorf("缺少必需列: ts")
	}

	result := &ImportResult{TotalRows: len(records) - 1, Errors: []string{}}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, record := range records[1:] {
			tsRaw := fieldAt(record, header, "ts")
			ts, err := parseTimestampField(tsRaw)
			if err != nil {
				result.Errors = append(result.Errors, rowError(i, tsRaw, err))
				continue
			}

			conf := 1.0
			if confRaw := fieldAt(record, header, "conf"); confRaw != "" {
				conf, err = cast.ToFloat64E(confRaw)
				if err != nil {
					result.Errors = append(result.Errors, rowError(i, tsRaw, fmt.Errorf("conf 非法: %v", err)))
					continue
				}
			}
			if conf < 0 || conf > 1 {
				result.Errors = append(result.Errors, rowError(i, tsRaw, fmt.Errorf("conf 超出 [0,1]: %v", conf)))
				continue
			}

			snapshot := models.Snapshot{
				Ts:       ts,
				BinID:    fieldAt(record, header, "bin_id"),
				ItemIDs:  models.JSONBStringArray(parseItemIDsField(fieldAt(record, header, "item_ids"))),
				Conf:     conf,
				PhotoRef: fieldAt(record, header, "photo_ref"),
				Notes:    fieldAt(record, header, "notes"),
				Source:   models.SnapshotSourceImport,
			}
			if err := tx.Create(&snapshot).Error; err != nil {
				result.Errors = append(result.Errors, rowError(i, tsRaw, err))
				continue
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("快照导入失败: %w", err)
	}

	s.recordMetrics("snapshots", result)
	monitoring.RecordSnapshotIngested(models.SnapshotSourceImport)
	slog.Info("快照导入完成", "imported", result.Imported, "errors", len(result.Errors))
	return result, nil
}

// GetImportSummary 统计库内各类数据总量
func (s *IngestService) GetImportSummary(ctx context.Context) (*ImportSummary, error) {
	summary := &ImportSummary{}
	db := s.db.WithContext(ctx)

	counts := []struct {
		model interface{}
		dst   *int64
	}{
		{&models.Bin{}, &summary.TotalBins},
		{&models.Item{}, &summary.TotalItems},
		{&models.Allocation{}, &summary.TotalAllocations},
		{&models.Order{}, &summary.TotalOrders},
		{&models.Snapshot{}, &summary.TotalSnapshots},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("统计数据量失败: %w", err)
		}
	}
	return summary, nil
}

// ensureItem 物品档案缺失时补建占位记录
func (s *IngestService) ensureItem(tx *gorm.DB, itemID, sku string) error {
	var count int64
	if err := tx.Model(&models.Item{}).Where("item_id = ?", itemID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if sku == "" {
		sku = "UNKNOWN"
	}
	return tx.Create(&models.Item{ItemID: itemID, SKU: sku, CustomerID: "default"}).Error
}

// ensureBin 库位档案缺失时补建占位记录
func (s *IngestService) ensureBin(tx *gorm.DB, binID string) error {
	var count int64
	if err := tx.Model(&models.Bin{}).Where("bin_id = ?", binID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&models.Bin{BinID: binID, Role: models.BinRoleStorage}).Error
}

func (s *IngestService) recordMetrics(kind string, result *ImportResult) {
	monitoring.RecordImportRows(kind, "imported", result.Imported)
	monitoring.RecordImportRows(kind, "updated", result.Updated)
	monitoring.RecordImportRows(kind, "skipped", result.Skipped)
	monitoring.RecordImportRows(kind, "error", len(result.Errors))
}

// readRecords 读取 CSV 内容,先做编码归一化,允许各行列数不一致
func readRecords(data []byte) ([][]string, error) {
	normalized, err := utils.EnsureUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("编码识别失败: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(normalized))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV 解析失败: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// headerIndex 表头列名到序号的映射,列名统一小写
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return index
}

func fieldAt(record []string, header map[string]int, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseItemIDsField 解析物品清单,优先 JSON 数组,退化为分号分隔
func parseItemIDsField(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err == nil {
			return cleanIDs(ids)
		}
	}
	return cleanIDs(strings.Split(raw, ";"))
}

func cleanIDs(raw []string) []string {
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// parseDateField 解析日期列,格式 YYYY-MM-DD
func parseDateField(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("ship_date 不能为空")
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("ship_date 格式非法: %s", raw)
	}
	return t, nil
}

// parseTimestampField 解析时间戳列,兼容 RFC3339 与常用导出格式
func parseTimestampField(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("ts 不能为空")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("ts 格式非法: %s", raw)
}

func rowError(rowIdx int, key string, err error) string {
	return fmt.Sprintf("行 %d (%s): %v", rowIdx+2, key, err)
}
