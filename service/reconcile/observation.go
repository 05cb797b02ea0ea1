/*
 * @module service/reconcile/observation
 * @description 观测状态采集器,从快照读取集推导目标日期的实际观测事实
 * @architecture 分层架构 - 核心服务层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 读取快照 -> 突发窗口合并 -> 构建目击索引与暂存最早目击
 * @rules 同库位突发窗口内的快照合并为一次逻辑观测;置信度逐码保留,由规则层裁决
 * @dependencies warehouse-service/service/models, gorm.io/gorm
 * @refs service/reconcile/engine.go
 */

package reconcile

import (
	"context"
	"log/slog"
	"time"
	"warehouse-service/service/models"

	"gorm.io/gorm"
)

// CollectObservation 采集目标日期的观测状态快照
// 产出四类索引:当日目击、宽限窗口置信度、每库位最新观测(突发合并)与暂存库位最早目击
func CollectObservation(ctx context.Context, db *gorm.DB, date string, cfg models.ReconcileConfig) (*models.Observation, error) {
	dayStart, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return nil, ErrInvalidDate
	}
	dayEnd := dayStart.AddDate(0, 0, 1)
	graceStart := dayStart.AddDate(0, 0, -cfg.GraceDays)

	obs := &models.Observation{
		Date:       date,
		Bins:       make(map[string]models.BinObservation),
		LastSeen:   make(map[string]models.Sighting),
		LastKnown:  make(map[string]models.Sighting),
		RecentConf: make(map[string]float64),
		FirstSeen:  make(map[string]map[string]time.Time),
	}

	// 宽限窗口内的全部快照,当日子集构建 LastSeen,全窗口构建 RecentConf
	var windowSnaps []models.Snapshot
	if err := db.WithContext(ctx).
		Where("ts >= ? AND ts < ?", graceStart, dayEnd).
		Order("ts ASC").
		Find(&windowSnaps).Error; err != nil {
		return nil, storeErr("读取快照", err)
	}

	for _, snap := range windowSnaps {
		if snap.Conf < 0 || snap.Conf > 1 {
			obs.Skipped++
			slog.Warn("对账观测采集: 快照置信度越界,已跳过", "snapshot_id", snap.ID, "conf", snap.Conf)
			continue
		}
		inDay := !snap.Ts.Before(dayStart)
		if inDay {
			obs.Snapshots++
		}

		for _, code := range snap.ItemIDs {
			if code == "" {
				continue
			}
			if snap.Conf > obs.RecentConf[code] {
				obs.RecentConf[code] = snap.Conf
			}
			if inDay {
				candidate := models.Sighting{ItemID: code, BinID: snap.BinID, Ts: snap.Ts, Conf: snap.Conf}
				if prev, ok := obs.LastSeen[code]; !ok || candidate.Supersedes(prev) {
					obs.LastSeen[code] = candidate
				}
			}
		}
	}

	// 每库位最新观测:取日终前最后一次快照,并把突发窗口内的相邻快照合并为一次逻辑观测
	var binIDs []string
	if err := db.WithContext(ctx).Model(&models.Snapshot{}).
		Where("bin_id <> ? AND ts < ?", "", dayEnd).
		Distinct("bin_id").
		Order("bin_id ASC").
		Pluck("bin_id", &binIDs).Error; err != nil {
		return nil, storeErr("读取快照库位", err)
	}

	burst := time.Duration(cfg.BurstWindowSeconds) * time.Second
	for _, binID := range binIDs {
		var latest models.Snapshot
		if err := db.WithContext(ctx).
			Where("bin_id = ? AND ts < ?", binID, dayEnd).
			Order("ts DESC").
			First(&latest).Error; err != nil {
			return nil, storeErr("读取库位最新快照", err)
		}

		// 窗口下界取闭区间,突发窗口为零时退化为仅最新一次快照
		var burstSnaps []models.Snapshot
		if err := db.WithContext(ctx).
			Where("bin_id = ? AND ts <= ? AND ts >= ?", binID, latest.Ts, latest.Ts.Add(-burst)).
			Order("ts ASC").
			Find(&burstSnaps).Error; err != nil {
			return nil, storeErr("读取突发窗口快照", err)
		}

		binObs := models.BinObservation{
			BinID: binID,
			Ts:    latest.Ts,
			Conf:  make(map[string]float64),
		}
		for _, snap := range burstSnaps {
			if snap.Conf < 0 || snap.Conf > 1 {
				continue
			}
			binObs.SnapshotIDs = append(binObs.SnapshotIDs, snap.ID)
			for _, code := range snap.ItemIDs {
				if code == "" {
					continue
				}
				if _, ok := binObs.Conf[code]; !ok {
					binObs.ItemIDs = append(binObs.ItemIDs, code)
				}
				if snap.Conf > binObs.Conf[code] {
					binObs.Conf[code] = snap.Conf
				}
			}
		}
		obs.Bins[binID] = binObs

		// 最后已知位置由每库位最新观测归并,比较器裁决冲突目击
		for _, code := range binObs.ItemIDs {
			candidate := models.Sighting{ItemID: code, BinID: binID, Ts: binObs.Ts, Conf: binObs.Conf[code]}
			if prev, ok := obs.LastKnown[code]; !ok || candidate.Supersedes(prev) {
				obs.LastKnown[code] = candidate
			}
		}
	}

	// 暂存库位最早目击时间,滞留时长以首次可信目击为起点
	for _, stagingBin := range cfg.StagingBins {
		var stagingSnaps []models.Snapshot
		if err := db.WithContext(ctx).
			Where("bin_id = ? AND ts < ?", stagingBin, dayEnd).
			Order("ts ASC").
			Find(&stagingSnaps).Error; err != nil {
			return nil, storeErr("读取暂存库位快照", err)
		}
		if len(stagingSnaps) == 0 {
			continue
		}

		firstSeen := make(map[string]time.Time)
		for _, snap := range stagingSnaps {
			if snap.Conf < cfg.ConfidenceFloor {
				continue
			}
			for _, code := range snap.ItemIDs {
				if code == "" {
					continue
				}
				if _, ok := firstSeen[code]; !ok {
					firstSeen[code] = snap.Ts
				}
			}
		}
		if len(firstSeen) > 0 {
			obs.FirstSeen[stagingBin] = firstSeen
		}
	}

	return obs, nil
}
