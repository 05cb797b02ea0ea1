/*
 * @module service/snapshot/snapshot_service
 * @description 快照服务,处理扫描快照落库、移库记录推导、库存现状与快照查询
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/warehouse_model.md
 * @stateFlow 快照上报 -> 校验 -> 落库 -> 移库推导 -> 事件通知
 * @rules 快照只追加不修改;移库记录由相邻位置变化推导,同事务写入
 * @dependencies warehouse-service/service/models, warehouse-service/service/monitoring, gorm.io/gorm
 * @refs api/controllers/snapshot_controller.go, service/scanner
 */

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"warehouse-service/service/models"
	"warehouse-service/service/monitoring"

	"gorm.io/gorm"
)

// movementLookback 移库推导回看的快照条数上限
const movementLookback = 200

// ErrSnapshotNotFound 快照不存在
var ErrSnapshotNotFound = errors.New("快照不存在")

// CreateSnapshotRequest 快照创建请求
type CreateSnapshotRequest struct {
	BinID    string     `json:"bin_id"`
	ItemIDs  []string   `json:"item_ids"`
	Conf     *float64   `json:"conf"`
	Ts       *time.Time `json:"ts"`
	PhotoRef string     `json:"photo_ref"`
	OcrText  string     `json:"ocr_text"`
	Notes    string     `json:"notes"`
	Source   string     `json:"source"`
}

// SnapshotFilter 快照查询条件
type SnapshotFilter struct {
	BinID  string
	Date   string
	Source string
	Limit  int
	Offset int
}

// BinInventory 单个库位的最新观测状态
type BinInventory struct {
	BinID     string    `json:"bin_id"`
	ItemIDs   []string  `json:"item_ids"`
	ItemCount int       `json:"item_count"`
	LastSeen  time.Time `json:"last_seen"`
	Conf      float64   `json:"conf"`
	PhotoRef  string    `json:"photo_ref,omitempty"`
}

// OpsStatus 当日运营概况
type OpsStatus struct {
	SnapshotsToday   int64      `json:"snapshots_today"`
	BinsScannedToday int64      `json:"bins_scanned_today"`
	MovementsToday   int64      `json:"movements_today"`
	LastSnapshotAt   *time.Time `json:"last_snapshot_at,omitempty"`
}

// SnapshotService 快照服务
type SnapshotService struct {
	db       *gorm.DB
	notifier func(channel, eventType string, payload interface{})
}

// NewSnapshotService 创建快照服务实例
func NewSnapshotService(db *gorm.DB) *SnapshotService {
	return &SnapshotService{db: db}
}

// SetEventNotifier 设置事件通知器,快照创建后异步推送
func (s *SnapshotService) SetEventNotifier(notifier func(channel, eventType string, payload interface{})) {
	s.notifier = notifier
}

// CreateSnapshot 创建快照并推导移库记录
func (s *SnapshotService) CreateSnapshot(ctx context.Context, req *CreateSnapshotRequest) (*models.Snapshot, error) {
	if req.BinID == "" && len(req.ItemIDs) == 0 {
		return nil, errors.New("快照至少包含库位号或物品清单之一")
	}

	conf := 1.0
	if req.Conf != nil {
		conf = *req.Conf
	}
	if conf < 0 || conf > 1 {
		return nil, fmt.Errorf("置信度超出 [0,1]: %v", conf)
	}

	source := req.Source
	if source == "" {
		source = models.SnapshotSourceManual
	}

	snapshot := &models.Snapshot{
		BinID:    req.BinID,
		ItemIDs:  models.JSONBStringArray(req.ItemIDs),
		Conf:     conf,
		PhotoRef: req.PhotoRef,
		OcrText:  req.OcrText,
		Notes:    req.Notes,
		Source:   source,
	}
	if req.Ts != nil {
		snapshot.Ts = *req.Ts
	}

	var movements []models.Movement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(snapshot).Error; err != nil {
			return err
		}

		var err error
		movements, err = s.deriveMovements(tx, snapshot)
		if err != nil {
			return err
		}
		for i := range movements {
			if err := tx.Create(&movements[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("快照创建失败: %w", err)
	}

	monitoring.RecordSnapshotIngested(source)
	if len(movements) > 0 {
		slog.Info("快照推导出移库记录", "snapshot_id", snapshot.ID, "movements", len(movements))
	}

	if s.notifier != nil {
		go s.notifier(models.EventChannelSnapshots, "created", snapshot)
	}

	return snapshot, nil
}

// deriveMovements 依据物品上一次出现的库位推导移库
// 仅当本次快照带库位且该物品此前在别的库位被看见时生成
func (s *SnapshotService) deriveMovements(tx *gorm.DB, snapshot *models.Snapshot) ([]models.Movement, error) {
	if snapshot.BinID == "" || len(snapshot.ItemIDs) == 0 {
		return nil, nil
	}

	var recent []models.Snapshot
	err := tx.Where("bin_id <> '' AND ts < ? AND id <> ?", snapshot.Ts, snapshot.ID).
		Order("ts DESC").
		Limit(movementLookback).
		Find(&recent).Error
	if err != nil {
		return nil, err
	}

	// 从最新往回找每个物品最后一次出现的库位
	lastBin := make(map[string]string)
	for _, prev := range recent {
		for _, itemID := range prev.ItemIDs {
			if _, seen := lastBin[itemID]; !seen {
				lastBin[itemID] = prev.BinID
			}
		}
	}

	var movements []models.Movement
	for _, itemID := range snapshot.ItemIDs {
		prevBin, ok := lastBin[itemID]
		if !ok || prevBin == snapshot.BinID {
			continue
		}
		movements = append(movements, models.Movement{
			Ts:      snapshot.Ts,
			ItemID:  itemID,
			FromBin: prevBin,
			ToBin:   snapshot.BinID,
			OpID:    snapshot.ID,
		})
	}
	return movements, nil
}

// ListSnapshots 按条件分页查询快照
func (s *SnapshotService) ListSnapshots(ctx context.Context, filter *SnapshotFilter) ([]models.Snapshot, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Snapshot{})

	if filter.BinID != "" {
		query = query.Where("bin_id = ?", filter.BinID)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Date != "" {
		dayStart, err := time.Parse("2006-01-02", filter.Date)
		if err != nil {
			return nil, 0, fmt.Errorf("日期格式非法: %s", filter.Date)
		}
		query = query.Where("ts >= ? AND ts < ?", dayStart, dayStart.AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("快照统计失败: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var snapshots []models.Snapshot
	err := query.Order("ts DESC").Offset(filter.Offset).Limit(limit).Find(&snapshots).Error
	if err != nil {
		return nil, 0, fmt.Errorf("快照查询失败: %w", err)
	}
	return snapshots, total, nil
}

// GetSnapshot 获取单条快照
func (s *SnapshotService) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("快照查询失败: %w", err)
	}
	return &snapshot, nil
}

// DeleteSnapshot 删除快照及其推导的移库记录
func (s *SnapshotService) DeleteSnapshot(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&models.Snapshot{})
		if result.Error != nil {
			return fmt.Errorf("快照删除失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSnapshotNotFound
		}
		return tx.Where("op_id = ?", id).Delete(&models.Movement{}).Error
	})
}

// GetCurrentInventory 获取每个库位最新一次快照构成的库存现状
func (s *SnapshotService) GetCurrentInventory(ctx context.Context) ([]BinInventory, error) {
	db := s.db.WithContext(ctx)

	var binIDs []string
	err := db.Model(&models.Snapshot{}).
		Where("bin_id <> ''").
		Distinct("bin_id").
		Order("bin_id ASC").
		Pluck("bin_id", &binIDs).Error
	if err != nil {
		return nil, fmt.Errorf("库位列表查询失败: %w", err)
	}

	inventory := make([]BinInventory, 0, len(binIDs))
	for _, binID := range binIDs {
		var latest models.Snapshot
		err := db.Where("bin_id = ?", binID).Order("ts DESC").First(&latest).Error
		if err != nil {
			return nil, fmt.Errorf("库位 %s 最新快照查询失败: %w", binID, err)
		}
		inventory = append(inventory, BinInventory{
			BinID:     binID,
			ItemIDs:   latest.ItemIDs,
			ItemCount: len(latest.ItemIDs),
			LastSeen:  latest.Ts,
			Conf:      latest.Conf,
			PhotoRef:  latest.PhotoRef,
		})
	}
	return inventory, nil
}

// ListMovements 按条件分页查询移库记录
func (s *SnapshotService) ListMovements(ctx context.Context, itemID, date string, offset, limit int) ([]models.Movement, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Movement{})

	if itemID != "" {
		query = query.Where("item_id = ?", itemID)
	}
	if date != "" {
		dayStart, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, 0, fmt.Errorf("日期格式非法: %s", date)
		}
		query = query.Where("ts >= ? AND ts < ?", dayStart, dayStart.AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("移库统计失败: %w", err)
	}

	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var movements []models.Movement
	err := query.Order("ts DESC").Offset(offset).Limit(limit).Find(&movements).Error
	if err != nil {
		return nil, 0, fmt.Errorf("移库查询失败: %w", err)
	}
	return movements, total, nil
}

// GetOpsStatus 当日运营概况统计
func (s *SnapshotService) GetOpsStatus(ctx context.Context) (*OpsStatus, error) {
	db := s.db.WithContext(ctx)
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	status := &OpsStatus{}

	err := db.Model(&models.Snapshot{}).Where("ts >= ?", dayStart).Count(&status.SnapshotsToday).Error
	if err != nil {
		return nil, fmt.Errorf("运营概况统计失败: %w", err)
	}

	err = db.Model(&models.Snapshot{}).
		Where("ts >= ? AND bin_id <> ''", dayStart).
		Distinct("bin_id").
		Count(&status.BinsScannedToday).Error
	if err != nil {
		return nil, fmt.Errorf("运营概况统计失败: %w", err)
	}

	err = db.Model(&models.Movement{}).Where("ts >= ?", dayStart).Count(&status.MovementsToday).Error
	if err != nil {
		return nil, fmt.Errorf("运营概况统计失败: %w", err)
	}

	var latest models.Snapshot
	err = db.Order("ts DESC").First(&latest).Error
	if err == nil {
		status.LastSnapshotAt = &latest.Ts
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("运营概况统计失败: %w", err)
	}

	return status, nil
}
