/*
 * @module service/init
 * @description 服务初始化模块,负责数据库连接、配置加载与各业务服务装配
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 应用启动时执行初始化流程:数据库 -> 迁移 -> 服务装配 -> 后台任务
 * @rules 确保所有依赖服务正常启动后才提供API服务,Redis等可选依赖缺失时降级运行
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs api/routes.go, main.go
 */

package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"warehouse-service/service/access"
	"warehouse-service/service/config"
	"warehouse-service/service/database"
	"warehouse-service/service/distributed_lock"
	"warehouse-service/service/event"
	"warehouse-service/service/ingest"
	"warehouse-service/service/models"
	"warehouse-service/service/notify"
	"warehouse-service/service/rate_limiter"
	"warehouse-service/service/reconcile"
	"warehouse-service/service/report"
	"warehouse-service/service/scanner"
	"warehouse-service/service/scheduler"
	"warehouse-service/service/snapshot"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB                    *gorm.DB
	GlobalConfigService   *config.ConfigService
	GlobalEventService    *event.EventService
	GlobalKafkaNotifier   *notify.KafkaNotifier
	GlobalReconcileEngine *reconcile.ReconcileEngine
	GlobalAnomalyService  *reconcile.AnomalyService
	GlobalSnapshotService *snapshot.SnapshotService
	GlobalIngestService   *ingest.IngestService
	GlobalReportService   *report.ReportService
	GlobalScannerService  *scanner.ScannerService
	GlobalAccessService   *access.AccessService
	GlobalRateLimiter     *rate_limiter.RedisRateLimiter
	GlobalScheduler       *scheduler.ReconcileScheduler
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "warehouse2025")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")

	if err := database.InitializeData(DB); err != nil {
		log.Fatalf("基础数据初始化失败: %v", err)
	}
	log.Println("基础数据初始化完成")

	log.Println("所有数据库迁移任务完成")
}

// initServices 初始化服务
func initServices() {
	GlobalConfigService = config.NewConfigService(DB)
	GlobalEventService = event.NewEventService(DB)
	GlobalKafkaNotifier = notify.NewKafkaNotifier()

	// 对账引擎:配置从系统配置表实时解析
	maxConcurrent := 2
	if v, err := strconv.Atoi(getEnvWithDefault("MAX_CONCURRENT_RUNS", "2")); err == nil && v > 0 {
		maxConcurrent = v
	}
	GlobalReconcileEngine = reconcile.NewReconcileEngine(DB, GlobalConfigService.ResolveReconcileConfig, maxConcurrent)

	// 分布式锁:Redis不可用时退化为进程内锁
	var lock distributed_lock.DistributedLock
	if redisLock, err := distributed_lock.NewRedisLock(); err != nil {
		log.Printf("Redis分布式锁不可用,退化为进程内锁: %v", err)
		lock = distributed_lock.NewLocalLock()
	} else {
		lock = redisLock
	}
	GlobalReconcileEngine.SetDistributedLock(lock)

	// 运行事件同时推送SSE与Kafka
	GlobalReconcileEngine.SetEventNotifier(func(e *models.RunEvent) {
		GlobalEventService.NotifyRunEvent(e)
		GlobalKafkaNotifier.PublishRunEvent(e)
	})

	GlobalAnomalyService = reconcile.NewAnomalyService(DB)

	GlobalSnapshotService = snapshot.NewSnapshotService(DB)
	GlobalSnapshotService.SetEventNotifier(func(channel, eventType string, payload interface{}) {
		if err := GlobalEventService.PublishEvent(channel, eventType, payload); err != nil {
			log.Printf("快照事件推送失败: %v", err)
		}
	})

	GlobalIngestService = ingest.NewIngestService(DB)
	GlobalReportService = report.NewReportService(DB, initReportStore(), GlobalSnapshotService)

	GlobalScannerService = scanner.NewScannerService(DB, GlobalSnapshotService)
	if err := GlobalScannerService.Start(context.Background()); err != nil {
		log.Printf("扫码接入服务启动失败: %v", err)
	}

	GlobalAccessService = access.NewAccessService(DB)

	// 限流器为可选依赖,Redis不可用时不启用限流
	if limiter, err := rate_limiter.NewRedisRateLimiter(); err != nil {
		log.Printf("Redis限流器不可用,限流未启用: %v", err)
	} else {
		GlobalRateLimiter = limiter
	}

	GlobalScheduler = scheduler.NewReconcileScheduler(DB, GlobalConfigService, GlobalReconcileEngine,
		distributed_lock.NewLockExecutor(lock))
	if err := GlobalScheduler.Start(); err != nil {
		log.Printf("启动对账调度器失败: %v", err)
	}

	log.Println("服务初始化完成")
}

// initReportStore 按配置的存储后端创建报表存储,S3初始化失败时回退本地目录
func initReportStore() report.Store {
	backend := GlobalConfigService.GetStorageBackend()

	if backend == "s3" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := report.NewS3Store(ctx, report.S3StoreConfig{
			Bucket:   GlobalConfigService.GetS3Bucket(),
			Endpoint: GlobalConfigService.GetS3Endpoint(),
			Region:   os.Getenv("AWS_REGION"),
		})
		if err == nil {
			log.Println("报表存储使用S3后端")
			return store
		}
		log.Printf("S3存储初始化失败,回退本地目录: %v", err)
	}

	dir := GlobalConfigService.GetStorageLocalDir()
	store, err := report.NewLocalStore(dir)
	if err != nil {
		log.Fatalf("本地存储目录初始化失败: %v", err)
	}
	log.Printf("报表存储使用本地目录: %s", dir)
	return store
}
