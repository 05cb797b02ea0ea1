/*
 * @module api/controllers/reconcile_controller
 * @description 对账运行控制器,提供对账触发、运行状态查询、取消与运行态总览API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow HTTP请求 -> 对账引擎 -> 异步运行 -> 状态查询
 * @rules 同一日期的在途运行冲突返回409并携带在途运行ID,非法日期返回400
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/reconcile/engine.go
 */

package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"warehouse-service/service"
	"warehouse-service/service/models"
	"warehouse-service/service/reconcile"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ReconcileController 对账运行控制器
type ReconcileController struct {
	engine *reconcile.ReconcileEngine
}

// NewReconcileController 创建对账控制器实例
func NewReconcileController() *ReconcileController {
	return &ReconcileController{
		engine: service.GlobalReconcileEngine,
	}
}

// RunSubmitResponse 对账提交响应
type RunSubmitResponse struct {
	JobID  string `json:"job_id"`
	Date   string `json:"date"`
	Status string `json:"status"`
}

// SubmitRun 触发对账运行
// @Summary 触发对账运行
// @Description 为指定日期提交一次异步对账运行,同日期在途运行冲突时返回409
// @Tags 对账管理
// @Accept json
// @Produce json
// @Param date query string true "对账日期 YYYY-MM-DD"
// @Success 200 {object} APIResponse{data=RunSubmitResponse}
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /reconcile/run [post]
func (c *ReconcileController) SubmitRun(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		ErrorResponse(w, r, http.StatusBadRequest, "缺少date参数", nil)
		return
	}

	run, err := c.engine.SubmitRun(&models.ReconcileRequest{
		Date:        date,
		TriggeredBy: "manual",
	})
	if err != nil {
		var inFlight *reconcile.InFlightError
		switch {
		case errors.As(err, &inFlight):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, APIResponse{
				Status: http.StatusConflict,
				Msg:    err.Error(),
				Data:   RunSubmitResponse{JobID: inFlight.RunID, Date: inFlight.Date, Status: models.RunStatusRunning},
			})
		case errors.Is(err, reconcile.ErrInvalidDate):
			ErrorResponse(w, r, http.StatusBadRequest, "对账日期非法", err)
		case errors.Is(err, reconcile.ErrQueueFull):
			ErrorResponse(w, r, http.StatusServiceUnavailable, "对账队列已满", err)
		default:
			ErrorResponse(w, r, http.StatusInternalServerError, "提交对账运行失败", err)
		}
		return
	}

	SuccessResponse(w, r, "对账运行已提交", RunSubmitResponse{
		JobID:  run.ID,
		Date:   run.Date,
		Status: run.Status,
	})
}

// RunStatusResponse 运行状态响应
type RunStatusResponse struct {
	Run   *models.ReconcileRun `json:"run"`
	Phase string               `json:"phase,omitempty"`
}

// GetRun 查询对账运行状态
// @Summary 查询对账运行
// @Description 按运行ID查询状态与汇总,在途运行附带当前阶段
// @Tags 对账管理
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse{data=RunStatusResponse}
// @Failure 404 {object} APIResponse
// @Router /reconcile/runs/{id} [get]
func (c *ReconcileController) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	run, phase, err := c.engine.GetRunStatus(runID)
	if err != nil {
		if errors.Is(err, reconcile.ErrRunNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "对账运行不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusInternalServerError, "查询对账运行失败", err)
		return
	}

	SuccessResponse(w, r, "查询成功", RunStatusResponse{Run: run, Phase: phase})
}

// ListRuns 查询对账运行列表
// @Summary 查询对账运行列表
// @Description 按日期过滤查询运行记录,按创建时间倒序分页
// @Tags 对账管理
// @Produce json
// @Param date query string false "对账日期 YYYY-MM-DD"
// @Param page query int false "页码,默认1"
// @Param size query int false "页大小,默认10"
// @Success 200 {object} PaginatedResponse
// @Router /reconcile/runs [get]
func (c *ReconcileController) ListRuns(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	page := parseIntParam(r, "page", 1)
	size := parseIntParam(r, "size", 10)

	runs, total, err := c.engine.ListRuns(date, page, size)
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询运行列表失败", err)
		return
	}

	PaginatedSuccessResponse(w, r, "查询成功", runs, total, page, size)
}

// CancelRun 取消对账运行
// @Summary 取消对账运行
// @Description 排队中的运行直接取消,在途运行在下一阶段检查点生效
// @Tags 对账管理
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /reconcile/runs/{id}/cancel [post]
func (c *ReconcileController) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if err := c.engine.CancelRun(runID); err != nil {
		if errors.Is(err, reconcile.ErrRunNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "对账运行不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusConflict, "取消对账运行失败", err)
		return
	}

	SuccessResponse(w, r, "取消请求已提交", map[string]interface{}{"run_id": runID})
}

// GetOpsStatus 查询运行态总览
// @Summary 运行态总览
// @Description 今日快照/扫描/移动统计、引擎运行统计与扫码接入状态
// @Tags 对账管理
// @Produce json
// @Success 200 {object} APIResponse
// @Router /reconcile/status [get]
func (c *ReconcileController) GetOpsStatus(w http.ResponseWriter, r *http.Request) {
	ops, err := service.GlobalSnapshotService.GetOpsStatus(r.Context())
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询运行态总览失败", err)
		return
	}

	var anomaliesToday int64
	service.DB.Model(&models.Anomaly{}).
		Where("date = ?", time.Now().Format("2006-01-02")).Count(&anomaliesToday)

	SuccessResponse(w, r, "查询成功", map[string]interface{}{
		"ops":             ops,
		"anomalies_today": anomaliesToday,
		"engine":          c.engine.GetStatistics(),
		"scanner":         service.GlobalScannerService.Status(),
		"scheduler":       service.GlobalScheduler.Status(),
	})
}

// parseIntParam 解析整型查询参数,非法或缺省时返回默认值
func parseIntParam(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return defaultValue
	}
	return v
}
