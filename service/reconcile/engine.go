/*
 * @module service/reconcile/engine
 * @description 对账运行引擎,提供运行提交、排队、并发调度、同日期互斥、超时与取消
 * @architecture 分层架构 - 核心服务层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 运行提交 -> 排队 -> 期望/观测并行构建 -> 规则并行评估 -> 原子聚合 -> 状态更新与事件通知
 * @rules 同一日期同一时刻至多一个在途运行,重复请求被拒绝并返回在途任务 ID;
 *        不同日期的运行可并发;聚合阶段开始后不可取消,只能完成或整体回滚
 * @dependencies warehouse-service/service/models, warehouse-service/service/distributed_lock, gorm.io/gorm
 * @refs api/controllers/reconcile_controller.go, service/scheduler
 */

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
	"warehouse-service/service/distributed_lock"
	"warehouse-service/service/models"
	"warehouse-service/service/monitoring"

	"gorm.io/gorm"
)

// RunContext 在途运行上下文
type RunContext struct {
	Run       *models.ReconcileRun
	Context   context.Context
	Cancel    context.CancelFunc
	StartTime time.Time
	Phase     string // build/evaluate/aggregate
}

// ReconcileEngine 对账运行引擎
type ReconcileEngine struct {
	db                *gorm.DB
	lock              distributed_lock.DistributedLock
	configResolver    func() models.ReconcileConfig
	runningRuns       map[string]*RunContext
	dateIndex         map[string]string // 日期 -> 在途运行 ID,同日期互斥的判定依据
	runMutex          sync.RWMutex
	ctx               context.Context
	cancel            context.CancelFunc
	eventNotifier     func(event *models.RunEvent)
	maxConcurrentRuns int
	runQueue          chan *queuedRun
	workerPool        chan struct{}
	nowFn             func() time.Time
}

type queuedRun struct {
	runID   string
	request *models.ReconcileRequest
}

// NewReconcileEngine 创建对账引擎实例
// configResolver 在每次运行开始时解析一份显式配置,保证运行可复现
func NewReconcileEngine(db *gorm.DB, configResolver func() models.ReconcileConfig, maxConcurrentRuns int) *ReconcileEngine {
	ctx, cancel := context.WithCancel(context.Background())

	engine := &ReconcileEngine{
		db:                db,
		configResolver:    configResolver,
		runningRuns:       make(map[string]*RunContext),
		dateIndex:         make(map[string]string),
		ctx:               ctx,
		cancel:            cancel,
		maxConcurrentRuns: maxConcurrentRuns,
		runQueue:          make(chan *queuedRun, 100),
		workerPool:        make(chan struct{}, maxConcurrentRuns),
		nowFn:             time.Now,
	}

	go engine.processRunQueue()

	return engine
}

// SetDistributedLock 设置分布式锁,多实例部署时防止同日期跨实例并发
func (e *ReconcileEngine) SetDistributedLock(lock distributed_lock.DistributedLock) {
	e.lock = lock
}

// SetEventNotifier 设置事件通知器
func (e *ReconcileEngine) SetEventNotifier(notifier func(event *models.RunEvent)) {
	e.eventNotifier = notifier
}

// SubmitRun 提交对账运行
// 同一日期已有在途运行时拒绝并返回在途运行记录与 InFlightError
func (e *ReconcileEngine) SubmitRun(request *models.ReconcileRequest) (*models.ReconcileRun, error) {
	if err := e.validateDate(request.Date); err != nil {
		return nil, err
	}

	e.runMutex.Lock()
	if inFlightID, exists := e.dateIndex[request.Date]; exists {
		e.runMutex.Unlock()
		var inFlight models.ReconcileRun
		if err := e.db.First(&inFlight, "id = ?", inFlightID).Error; err != nil {
			return nil, &InFlightError{Date: request.Date, RunID: inFlightID}
		}
		return &inFlight, &InFlightError{Date: request.Date, RunID: inFlightID}
	}

	run := &models.ReconcileRun{
		Date:        request.Date,
		Status:      models.RunStatusQueued,
		TriggeredBy: request.TriggeredBy,
	}
	if err := e.db.Create(run).Error; err != nil {
		e.runMutex.Unlock()
		return nil, storeErr("创建运行记录", err)
	}
	e.dateIndex[request.Date] = run.ID
	e.runMutex.Unlock()

	select {
	case e.runQueue <- &queuedRun{runID: run.ID, request: request}:
		return run, nil
	default:
		e.updateRunStatus(run.ID, models.RunStatusFailed, ErrQueueFull.Error())
		e.runMutex.Lock()
		delete(e.dateIndex, request.Date)
		e.runMutex.Unlock()
		return nil, ErrQueueFull
	}
}

// processRunQueue 处理运行队列
func (e *ReconcileEngine) processRunQueue() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case queued := <-e.runQueue:
			e.workerPool <- struct{}{}

			go func(q *queuedRun) {
				defer func() { <-e.workerPool }()
				e.executeRun(q)
			}(queued)
		}
	}
}

// executeRun 执行一次对账运行
func (e *ReconcileEngine) executeRun(q *queuedRun) {
	var run models.ReconcileRun
	if err := e.db.First(&run, "id = ?", q.runID).Error; err != nil {
		slog.Error("对账引擎: 运行记录读取失败", "run_id", q.runID, "error", err)
		e.runMutex.Lock()
		delete(e.dateIndex, q.request.Date)
		e.runMutex.Unlock()
		return
	}

	cfg := e.configResolver()
	timeout := time.Duration(cfg.RunTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	runCtx, cancelRun := context.WithTimeout(e.ctx, timeout)
	defer cancelRun()

	runContext := &RunContext{
		Run:       &run,
		Context:   runCtx,
		Cancel:    cancelRun,
		StartTime: e.nowFn(),
		Phase:     "build",
	}

	e.runMutex.Lock()
	e.runningRuns[run.ID] = runContext
	e.runMutex.Unlock()

	defer func() {
		e.runMutex.Lock()
		delete(e.runningRuns, run.ID)
		delete(e.dateIndex, run.Date)
		e.runMutex.Unlock()
	}()

	// 排队期间被取消的运行直接收尾
	if run.Status == models.RunStatusCancelled {
		return
	}

	// 多实例部署时通过分布式锁保证同日期跨实例互斥
	if e.lock != nil {
		lockKey := fmt.Sprintf("date:%s", run.Date)
		lockTTL := timeout * 2
		acquired, err := e.lock.TryLock(runCtx, lockKey, lockTTL)
		if err != nil {
			slog.Warn("对账引擎: 分布式锁不可用,退化为单实例互斥", "date", run.Date, "error", err)
		} else if !acquired {
			e.finishRunFailure(&run, fmt.Errorf("%w: 其他实例正在对账该日期", ErrRunInFlight))
			return
		} else {
			refreshCtx, stopRefresh := context.WithCancel(runCtx)
			defer stopRefresh()
			go e.refreshLock(refreshCtx, lockKey, lockTTL)
			defer func() {
				if unlockErr := e.lock.Unlock(context.Background(), lockKey); unlockErr != nil {
					slog.Error("对账引擎: 释放日期锁失败", "date", run.Date, "error", unlockErr)
				}
			}()
		}
	}

	e.doRun(runContext, cfg)

	if q.request.Callback != nil {
		var finished models.ReconcileRun
		if err := e.db.First(&finished, "id = ?", run.ID).Error; err == nil {
			q.request.Callback(&finished)
		}
	}
}

// doRun 运行主流程:并行构建 -> 并行评估 -> 原子聚合
func (e *ReconcileEngine) doRun(rc *RunContext, cfg models.ReconcileConfig) {
	run := rc.Run
	startedAt := e.nowFn()
	monitoring.RecordRunStarted(run.TriggeredBy)

	e.db.Model(&models.ReconcileRun{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
		"status":     models.RunStatusRunning,
		"started_at": startedAt,
		"updated_at": startedAt,
	})
	e.notifyEvent(&models.RunEvent{
		RunID:     run.ID,
		Date:      run.Date,
		EventType: "start",
		Timestamp: startedAt,
		Data:      map[string]interface{}{"triggered_by": run.TriggeredBy},
	})

	// 阶段一:期望与观测各自独立只读构建,可并行
	var (
		exp    *models.Expectation
		obs    *models.Observation
		expErr error
		obsErr error
		wg     sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		exp, expErr = BuildExpectation(rc.Context, e.db, run.Date, cfg)
	}()
	go func() {
		defer wg.Done()
		obs, obsErr = CollectObservation(rc.Context, e.db, run.Date, cfg)
	}()
	wg.Wait()

	if expErr != nil {
		e.finishRunFailure(run, expErr)
		return
	}
	if obsErr != nil {
		e.finishRunFailure(run, obsErr)
		return
	}
	if err := e.checkpoint(rc, "evaluate"); err != nil {
		e.finishRunFailure(run, err)
		return
	}

	// 阶段二:五条规则只读两个不可变快照,彼此无共享可变状态,可并行
	refTime := e.referenceTime(run.Date)
	ruleFuncs := Rules()
	ruleNames := make([]string, 0, len(ruleFuncs))
	for name := range ruleFuncs {
		ruleNames = append(ruleNames, name)
	}
	sort.Strings(ruleNames)

	results := make([][]models.RuleFinding, len(ruleNames))
	var ruleWg sync.WaitGroup
	for i, name := range ruleNames {
		ruleWg.Add(1)
		go func(idx int, fn RuleFunc) {
			defer ruleWg.Done()
			results[idx] = fn(exp, obs, cfg, refTime)
		}(i, ruleFuncs[name])
	}
	ruleWg.Wait()

	var findings []models.RuleFinding
	for _, rs := range results {
		findings = append(findings, rs...)
	}

	if err := e.checkpoint(rc, "aggregate"); err != nil {
		e.finishRunFailure(run, err)
		return
	}

	// 阶段三:原子替换当日异常集,此后不再响应取消
	anomalies := BuildAnomalies(run.Date, run.ID, refTime, findings)
	if err := ReplaceAnomalies(e.db, run.Date, anomalies); err != nil {
		e.finishRunFailure(run, err)
		return
	}

	summary := Summarize(run.Date, anomalies, exp, obs)
	finishedAt := e.nowFn()
	durationMs := finishedAt.Sub(startedAt).Milliseconds()

	e.db.Model(&models.ReconcileRun{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
		"status":          models.RunStatusDone,
		"summary":         summaryToJSONB(summary),
		"skipped_records": summary.Skipped,
		"finished_at":     finishedAt,
		"duration_ms":     durationMs,
		"updated_at":      finishedAt,
	})

	monitoring.RecordRunFinished(models.RunStatusDone, finishedAt.Sub(startedAt).Seconds())
	for typ, count := range summary.ByType {
		monitoring.RecordAnomalies(typ, count)
	}

	e.notifyEvent(&models.RunEvent{
		RunID:     run.ID,
		Date:      run.Date,
		EventType: "complete",
		Timestamp: finishedAt,
		Data: map[string]interface{}{
			"total_anomalies": summary.TotalAnomalies,
			"by_type":         summary.ByType,
			"duration_ms":     durationMs,
		},
	})

	slog.Info("对账运行完成",
		"run_id", run.ID,
		"date", run.Date,
		"anomalies", summary.TotalAnomalies,
		"skipped", summary.Skipped,
		"duration_ms", durationMs)
}

// checkpoint 阶段间检查点,响应取消与超时并推进阶段标记
func (e *ReconcileEngine) checkpoint(rc *RunContext, nextPhase string) error {
	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	default:
	}

	e.runMutex.Lock()
	rc.Phase = nextPhase
	e.runMutex.Unlock()
	return nil
}

// referenceTime 评估参照时刻:目标日期为当天取当前时间,历史日期取该日日终
// 历史回填运行因此可复现
func (e *ReconcileEngine) referenceTime(date string) time.Time {
	now := e.nowFn()
	dayStart, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return now
	}
	if now.Format("2006-01-02") == date {
		return now
	}
	return dayStart.AddDate(0, 0, 1)
}

// validateDate 校验运行日期:格式合法且不晚于当天
func (e *ReconcileEngine) validateDate(date string) error {
	parsed, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, date)
	}
	now := e.nowFn()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if parsed.After(today) {
		return fmt.Errorf("%w: %s 晚于当前日期", ErrInvalidDate, date)
	}
	return nil
}

// GetRunStatus 查询运行状态,数据库记录为准,在途运行补充当前阶段
func (e *ReconcileEngine) GetRunStatus(runID string) (*models.ReconcileRun, string, error) {
	var run models.ReconcileRun
	if err := e.db.First(&run, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrRunNotFound
		}
		return nil, "", storeErr("读取运行记录", err)
	}

	e.runMutex.RLock()
	phase := ""
	if rc, exists := e.runningRuns[runID]; exists {
		phase = rc.Phase
	}
	e.runMutex.RUnlock()

	return &run, phase, nil
}

// CancelRun 取消运行
// 在途运行在下一个阶段检查点生效;排队中的运行直接标记取消;聚合阶段开始后不再可取消
func (e *ReconcileEngine) CancelRun(runID string) error {
	e.runMutex.Lock()
	if rc, exists := e.runningRuns[runID]; exists {
		rc.Cancel()
		e.runMutex.Unlock()
		return nil
	}
	e.runMutex.Unlock()

	var run models.ReconcileRun
	if err := e.db.First(&run, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRunNotFound
		}
		return storeErr("读取运行记录", err)
	}
	if run.Status != models.RunStatusQueued {
		return fmt.Errorf("运行状态为 %s,不可取消", run.Status)
	}

	e.updateRunStatus(runID, models.RunStatusCancelled, "排队期间被取消")
	return nil
}

// ListRuns 按日期查询运行记录,date 为空时返回全部
func (e *ReconcileEngine) ListRuns(date string, page, size int) ([]models.ReconcileRun, int64, error) {
	query := e.db.Model(&models.ReconcileRun{})
	if date != "" {
		query = query.Where("date = ?", date)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeErr("统计运行记录", err)
	}

	var runs []models.ReconcileRun
	if err := query.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&runs).Error; err != nil {
		return nil, 0, storeErr("读取运行记录", err)
	}
	return runs, total, nil
}

// GetStatistics 获取引擎统计信息
func (e *ReconcileEngine) GetStatistics() map[string]interface{} {
	e.runMutex.RLock()
	runningCount := len(e.runningRuns)
	e.runMutex.RUnlock()

	var stats struct {
		TotalRuns  int64
		DoneRuns   int64
		FailedRuns int64
	}
	e.db.Model(&models.ReconcileRun{}).Count(&stats.TotalRuns)
	e.db.Model(&models.ReconcileRun{}).Where("status = ?", models.RunStatusDone).Count(&stats.DoneRuns)
	e.db.Model(&models.ReconcileRun{}).Where("status = ?", models.RunStatusFailed).Count(&stats.FailedRuns)

	return map[string]interface{}{
		"running_runs":   runningCount,
		"total_runs":     stats.TotalRuns,
		"done_runs":      stats.DoneRuns,
		"failed_runs":    stats.FailedRuns,
		"queue_length":   len(e.runQueue),
		"max_concurrent": e.maxConcurrentRuns,
	}
}

// Stop 停止引擎,等待在途运行收尾
func (e *ReconcileEngine) Stop() {
	e.cancel()

	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		e.runMutex.RLock()
		count := len(e.runningRuns)
		e.runMutex.RUnlock()

		if count == 0 {
			return
		}

		select {
		case <-timeout:
			e.runMutex.Lock()
			for _, rc := range e.runningRuns {
				rc.Cancel()
			}
			e.runMutex.Unlock()
			return
		case <-ticker.C:
		}
	}
}

// refreshLock 运行期间周期性续期日期锁
func (e *ReconcileEngine) refreshLock(ctx context.Context, key string, ttl time.Duration) {
	interval := ttl / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.lock.Refresh(ctx, key, ttl); err != nil {
				slog.Error("对账引擎: 日期锁续期失败", "key", key, "error", err)
			}
		}
	}
}

// finishRunFailure 统一收尾失败/取消/超时的运行
func (e *ReconcileEngine) finishRunFailure(run *models.ReconcileRun, err error) {
	status := models.RunStatusFailed
	message := err.Error()

	switch {
	case errors.Is(err, context.Canceled):
		status = models.RunStatusCancelled
		message = "运行被取消"
	case errors.Is(err, context.DeadlineExceeded):
		message = ErrRunTimeout.Error()
	}

	e.updateRunStatus(run.ID, status, message)
	monitoring.RecordRunFinished(status, time.Since(run.CreatedAt).Seconds())

	e.notifyEvent(&models.RunEvent{
		RunID:     run.ID,
		Date:      run.Date,
		EventType: "error",
		Timestamp: e.nowFn(),
		Data:      map[string]interface{}{"status": status, "error": message},
	})

	slog.Warn("对账运行未完成", "run_id", run.ID, "date", run.Date, "status", status, "error", message)
}

// updateRunStatus 更新运行状态
func (e *ReconcileEngine) updateRunStatus(runID, status, errorMessage string) {
	now := e.nowFn()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	if status == models.RunStatusDone || status == models.RunStatusFailed || status == models.RunStatusCancelled {
		updates["finished_at"] = now
	}

	e.db.Model(&models.ReconcileRun{}).Where("id = ?", runID).Updates(updates)
}

// notifyEvent 发送运行事件
func (e *ReconcileEngine) notifyEvent(event *models.RunEvent) {
	if e.eventNotifier != nil {
		go e.eventNotifier(event)
	}
}

// summaryToJSONB 运行汇总转为可持久化的 JSONB
func summaryToJSONB(s models.RunSummary) models.JSONB {
	return models.JSONB{
		"date":                s.Date,
		"total_anomalies":     s.TotalAnomalies,
		"by_type":             s.ByType,
		"by_severity":         s.BySeverity,
		"orders_checked":      s.OrdersChecked,
		"snapshots_processed": s.SnapshotsProcessed,
		"bins_scanned":        s.BinsScanned,
		"skipped":             s.Skipped,
	}
}
