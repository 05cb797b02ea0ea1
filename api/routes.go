/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs ai_docs/warehouse_model.md
 */

package api

import (
	"os"
	"strings"

	"warehouse-service/api/controllers"
	apimiddleware "warehouse-service/api/middleware"
	"warehouse-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API Key鉴权(默认关闭,便于本地开发)
	if strings.EqualFold(os.Getenv("API_AUTH_ENABLED"), "true") && service.GlobalAccessService != nil {
		authMiddleware := apimiddleware.NewApiKeyAuthMiddleware(service.GlobalAccessService)
		r.Use(authMiddleware.Middleware)
	}

	// 限流(Redis不可用时GlobalRateLimiter为nil,中间件直接放行)
	rateLimitMiddleware := apimiddleware.NewRateLimitMiddleware(service.GlobalRateLimiter)
	r.Use(rateLimitMiddleware.Middleware)

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// SSE事件订阅
	eventController := controllers.NewEventController()
	r.Get("/sse", eventController.HandleSSE)

	// 事件管理
	r.Route("/events", func(r chi.Router) {
		r.Get("/history", eventController.GetEventHistory)
		r.Post("/publish", eventController.PublishEvent)
		r.Get("/connections", eventController.GetConnectionStats)
	})

	// 对账任务管理
	r.Route("/reconcile", func(r chi.Router) {
		reconcileController := controllers.NewReconcileController()

		// 提交对账任务
		r.Post("/run", reconcileController.SubmitRun)

		// 任务查询与控制
		r.Get("/runs", reconcileController.ListRuns)
		r.Get("/runs/{id}", reconcileController.GetRun)
		r.Post("/runs/{id}/cancel", reconcileController.CancelRun)

		// 当日运营状态
		r.Get("/status", reconcileController.GetOpsStatus)
	})

	// 异常管理
	r.Route("/anomalies", func(r chi.Router) {
		anomalyController := controllers.NewAnomalyController()

		r.Get("/", anomalyController.ListAnomalies)
		r.Get("/summary", anomalyController.GetAnomalySummary)
		r.Put("/{id}/resolve", anomalyController.ResolveAnomaly)
	})

	// 基础数据导入
	r.Route("/import", func(r chi.Router) {
		ingestController := controllers.NewIngestController()

		r.Post("/bins", ingestController.ImportBins)
		r.Post("/orders", ingestController.ImportOrders)
		r.Post("/allocations", ingestController.ImportAllocations)
		r.Post("/snapshots", ingestController.ImportSnapshots)
		r.Get("/summary", ingestController.GetImportSummary)
	})

	// 库位快照管理
	snapshotController := controllers.NewSnapshotController()
	r.Route("/snapshots", func(r chi.Router) {
		r.Post("/", snapshotController.CreateSnapshot)
		r.Get("/", snapshotController.ListSnapshots)
		r.Get("/{id}", snapshotController.GetSnapshot)
		r.Delete("/{id}", snapshotController.DeleteSnapshot)
	})

	// 当前库存视图与移位记录
	r.Get("/inventory/current", snapshotController.GetCurrentInventory)
	r.Get("/movements", snapshotController.ListMovements)

	// 报表生成与下载
	r.Route("/reports", func(r chi.Router) {
		reportController := controllers.NewReportController()

		r.Post("/anomalies", reportController.GenerateAnomalyReport)
		r.Post("/inventory", reportController.GenerateInventoryReport)
		r.Get("/download", reportController.DownloadReport)
	})

	// 系统配置管理
	r.Route("/config", func(r chi.Router) {
		configController := controllers.NewConfigController()

		r.Get("/", configController.GetAllConfigs)
		r.Put("/batch", configController.BatchUpdateConfigs)
		r.Get("/reconcile/effective", configController.GetReconcileConfig)
		r.Post("/cache/clear", configController.ClearConfigCache)
		r.Get("/{key}", configController.GetConfig)
		r.Put("/{key}", configController.UpdateConfig)
	})

	// 扫描接入管理
	r.Route("/scanner", func(r chi.Router) {
		scannerController := controllers.NewScannerController()

		r.Get("/status", scannerController.GetStatus)
		r.Post("/reload", scannerController.ReloadFeeds)

		r.Route("/feeds", func(r chi.Router) {
			r.Get("/", scannerController.ListFeeds)
			r.Post("/", scannerController.CreateFeed)
			r.Get("/{id}", scannerController.GetFeed)
			r.Put("/{id}", scannerController.UpdateFeed)
			r.Delete("/{id}", scannerController.DeleteFeed)
		})
	})

	// 接入凭证管理
	r.Route("/access", func(r chi.Router) {
		accessController := controllers.NewAccessController()

		r.Route("/keys", func(r chi.Router) {
			r.Post("/", accessController.CreateApiKey)
			r.Get("/", accessController.ListApiKeys)
			r.Put("/{id}", accessController.UpdateApiKey)
			r.Post("/{id}/disable", accessController.DisableApiKey)
			r.Delete("/{id}", accessController.DeleteApiKey)
		})
	})
}
