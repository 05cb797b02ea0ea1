/*
 * @module service/database/migrate
 * @description 数据库迁移模块,负责创建和更新仓库业务表结构并灌入默认配置
 * @architecture 数据访问层 - 迁移管理
 * @documentReference ai_docs/warehouse_model.md
 * @stateFlow 应用启动时执行数据库迁移 -> 灌入默认配置与事件监听
 * @rules 确保数据库结构与模型定义保持一致;默认配置只在缺失时写入
 * @dependencies warehouse-service/service/models, gorm.io/gorm
 * @refs ai_docs/reconcile_design.md
 */

package database

import (
	"log"
	"warehouse-service/service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 仓库主数据相关表
	err := db.AutoMigrate(
		&models.Bin{},
		&models.Item{},
		&models.Allocation{},
		&models.Order{},
	)
	if err != nil {
		return err
	}

	// 观测与审计相关表
	err = db.AutoMigrate(
		&models.Snapshot{},
		&models.Movement{},
	)
	if err != nil {
		return err
	}

	// 对账结果相关表
	err = db.AutoMigrate(
		&models.Anomaly{},
		&models.ReconcileRun{},
	)
	if err != nil {
		return err
	}

	// 配置与事件相关表
	err = db.AutoMigrate(
		&models.SystemConfig{},
		&models.SSEEvent{},
		&models.DBEventListener{},
	)
	if err != nil {
		return err
	}

	// 接入相关表
	err = db.AutoMigrate(
		&models.ScannerFeed{},
		&models.ApiKey{},
	)
	if err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// InitializeData 初始化基础数据
func InitializeData(db *gorm.DB) error {
	log.Println("开始初始化基础数据...")

	if err := initDefaultConfigs(db); err != nil {
		log.Printf("初始化默认配置失败: %v", err)
		return err
	}

	if err := initDefaultEventListeners(db); err != nil {
		log.Printf("初始化事件监听配置失败: %v", err)
		return err
	}

	log.Println("基础数据初始化完成")
	return nil
}

// initDefaultConfigs 写入缺失的默认配置项,已存在的键不覆盖
func initDefaultConfigs(db *gorm.DB) error {
	defaults := []models.SystemConfig{
		{Key: models.ConfigKeyStagingBins, Value: "S-01,S-02,S-03,S-04", Category: "reconcile", Description: "暂存库位集合,逗号分隔"},
		{Key: models.ConfigKeyStaleHours, Value: "12", Category: "reconcile", Description: "暂存滞留全局阈值(小时)"},
		{Key: models.ConfigKeyBinStaleHours, Value: "", Category: "reconcile", Description: "按库位覆盖的滞留阈值,如 S-01=24,S-02=6"},
		{Key: models.ConfigKeyConfidenceFloor, Value: "0.5", Category: "reconcile", Description: "识别置信度下限"},
		{Key: models.ConfigKeyGraceDays, Value: "0", Category: "reconcile", Description: "missing 规则回看宽限天数,0 表示仅当日"},
		{Key: models.ConfigKeyRunTimeoutSeconds, Value: "60", Category: "reconcile", Description: "单次对账运行超时(秒)"},
		{Key: models.ConfigKeyBurstWindowSeconds, Value: "120", Category: "reconcile", Description: "同库位快照突发合并窗口(秒)"},
		{Key: models.ConfigKeyScheduleCron, Value: "0 0 2 * * *", Category: "reconcile", Description: "每日定时对账 cron 表达式(含秒)"},
		{Key: models.ConfigKeyRunRetentionDays, Value: "90", Category: "reconcile", Description: "运行记录保留天数"},
		{Key: models.ConfigKeyStorageBackend, Value: "local", Category: "storage", Description: "报表存储后端 local/s3"},
		{Key: models.ConfigKeyStorageLocalDir, Value: "./storage", Category: "storage", Description: "本地存储目录"},
	}

	for _, cfg := range defaults {
		var count int64
		if err := db.Model(&models.SystemConfig{}).Where("key = ?", cfg.Key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		cfg.ID = uuid.New().String()
		if err := db.Create(&cfg).Error; err != nil {
			return err
		}
	}
	return nil
}

// initDefaultEventListeners 写入缺失的数据库事件监听配置
func initDefaultEventListeners(db *gorm.DB) error {
	listeners := []models.DBEventListener{
		{
			Name:       "anomaly_changes",
			TableName:  "anomalies",
			EventTypes: models.JSONBStringArray{"INSERT", "UPDATE"},
			Channel:    models.EventChannelAnomalies,
			IsEnabled:  true,
		},
		{
			Name:       "run_changes",
			TableName:  "reconcile_runs",
			EventTypes: models.JSONBStringArray{"INSERT", "UPDATE"},
			Channel:    models.EventChannelRuns,
			IsEnabled:  true,
		},
		{
			Name:       "snapshot_created",
			TableName:  "snapshots",
			EventTypes: models.JSONBStringArray{"INSERT"},
			Channel:    models.EventChannelSnapshots,
			IsEnabled:  true,
		},
	}

	for _, l := range listeners {
		var count int64
		if err := db.Model(&models.DBEventListener{}).Where("name = ?", l.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&l).Error; err != nil {
			return err
		}
	}
	return nil
}
