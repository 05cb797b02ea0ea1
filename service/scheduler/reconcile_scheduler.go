/*
 * @module service/scheduler
 * @description 对账调度服务,负责每日定时对账触发与历史运行记录的保留清理
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/reconcile_engine.md
 * @stateFlow 定时触发 -> 分布式锁去重 -> 提交对账运行 -> 保留期清理
 * @rules 多副本部署时用分布式锁保证同一天只提交一次,清理只删除已结束的运行
 * @dependencies github.com/robfig/cron/v3, gorm.io/gorm
 * @refs service/reconcile, service/config, service/distributed_lock
 */

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"warehouse-service/service/config"
	"warehouse-service/service/distributed_lock"
	"warehouse-service/service/models"
	"warehouse-service/service/reconcile"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// 保留期清理的固定执行时间,每天凌晨3点半,错开对账高峰
const retentionCleanupCron = "0 30 3 * * *"

// ReconcileScheduler 对账调度服务
type ReconcileScheduler struct {
	db            *gorm.DB
	configService *config.ConfigService
	engine        *reconcile.ReconcileEngine
	lockExecutor  *distributed_lock.LockExecutor
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
	scheduleExpr  string
}

// NewReconcileScheduler 创建对账调度服务实例
func NewReconcileScheduler(db *gorm.DB, configService *config.ConfigService, engine *reconcile.ReconcileEngine, lockExecutor *distributed_lock.LockExecutor) *ReconcileScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &ReconcileScheduler{
		db:            db,
		configService: configService,
		engine:        engine,
		lockExecutor:  lockExecutor,
		cron:          cron.New(cron.WithSeconds()),
		ctx:           ctx,
		cancel:        cancel,
		started:       false,
	}
}

// Start 启动调度器,注册每日对账与保留期清理两个任务
func (s *ReconcileScheduler) Start() error {
	if s.started {
		return fmt.Errorf("对账调度器已经启动")
	}

	scheduleExpr := s.configService.GetScheduleCron()

	// Cron表达式:秒 分 时 日 月 周
	_, err := s.cron.AddFunc(scheduleExpr, func() {
		s.runScheduledReconcile()
	})
	if err != nil {
		return fmt.Errorf("注册定时对账任务失败: %w", err)
	}

	_, err = s.cron.AddFunc(retentionCleanupCron, func() {
		if err := s.CleanupExpiredRuns(s.ctx); err != nil {
			slog.Error("定时保留期清理失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("注册保留期清理任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true
	s.scheduleExpr = scheduleExpr

	slog.Info("对账调度器启动成功", "schedule", scheduleExpr)
	return nil
}

// Stop 停止调度器
func (s *ReconcileScheduler) Stop() {
	if !s.started {
		return
	}

	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.started = false

	slog.Info("对账调度器已停止")
}

// Status 调度器状态信息
func (s *ReconcileScheduler) Status() map[string]interface{} {
	return map[string]interface{}{
		"started":  s.started,
		"schedule": s.scheduleExpr,
	}
}

// runScheduledReconcile 执行定时对账,目标日期为昨天(已完整落账的业务日)
func (s *ReconcileScheduler) runScheduledReconcile() {
	date := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	slog.Info("开始执行定时对账任务", "date", date)

	// 多副本同时触发时只有持锁方提交,未持锁的实例静默跳过
	lockKey := fmt.Sprintf("scheduled-run:%s", date)
	err := s.lockExecutor.ExecuteWithLock(s.ctx, lockKey, 30*time.Second, func() error {
		run, err := s.engine.SubmitRun(&models.ReconcileRequest{
			Date:        date,
			TriggeredBy: "scheduled",
		})
		if err != nil {
			var inFlight *reconcile.InFlightError
			if errors.As(err, &inFlight) {
				slog.Info("定时对账跳过,该日期已有运行在执行", "date", date, "run_id", inFlight.RunID)
				return nil
			}
			return err
		}

		slog.Info("定时对账已提交", "date", date, "run_id", run.ID)
		return nil
	})

	if err != nil {
		slog.Error("定时对账任务失败", "date", date, "error", err)
	}
}

// CleanupExpiredRuns 清理超过保留期的运行记录与事件存档
func (s *ReconcileScheduler) CleanupExpiredRuns(ctx context.Context) error {
	retentionDays := s.configService.GetRunRetentionDays()
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)
	startTime := time.Now()

	slog.Info("开始清理过期运行记录", "cutoff_date", cutoffDate.Format("2006-01-02 15:04:05"), "retention_days", retentionDays)

	runsDeleted, err := s.cleanupRuns(cutoffDate)
	if err != nil {
		slog.Error("清理运行记录失败", "error", err)
	}

	eventsDeleted, err := s.cleanupEvents(cutoffDate)
	if err != nil {
		slog.Error("清理事件存档失败", "error", err)
	}

	slog.Info("保留期清理完成",
		"runs_deleted", runsDeleted,
		"events_deleted", eventsDeleted,
		"duration_ms", time.Since(startTime).Milliseconds())

	return nil
}

// cleanupRuns 删除保留期外且已结束的运行记录
func (s *ReconcileScheduler) cleanupRuns(cutoffDate time.Time) (int64, error) {
	result := s.db.Where("created_at < ? AND status IN ?", cutoffDate,
		[]string{models.RunStatusDone, models.RunStatusFailed, models.RunStatusCancelled}).
		Delete(&models.ReconcileRun{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除运行记录失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// cleanupEvents 删除保留期外的 SSE 事件存档
func (s *ReconcileScheduler) cleanupEvents(cutoffDate time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoffDate).Delete(&models.SSEEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除事件存档失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
