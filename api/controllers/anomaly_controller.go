/*
 * @module api/controllers/anomaly_controller
 * @description 异常管理控制器,提供异常集过滤查询、汇总统计与人工处理标记API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow HTTP请求 -> 异常服务 -> 过滤排序分页 -> 响应返回
 * @rules 排序稳定:级别权重优先编号次之;人工标记只改resolved位,引擎外不允许删除异常
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/reconcile/anomaly_service.go
 */

package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"warehouse-service/service"
	"warehouse-service/service/reconcile"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// AnomalyController 异常管理控制器
type AnomalyController struct {
	anomalyService *reconcile.AnomalyService
}

// NewAnomalyController 创建异常控制器实例
func NewAnomalyController() *AnomalyController {
	return &AnomalyController{
		anomalyService: service.GlobalAnomalyService,
	}
}

// ListAnomalies 查询异常列表
// @Summary 查询异常列表
// @Description 按日期/类型/级别/处理状态过滤查询,级别权重排序(high>med>low),同级别按编号
// @Tags 异常管理
// @Produce json
// @Param date query string false "对账日期 YYYY-MM-DD"
// @Param type query string false "异常类型 missing/misplaced/stale_location/duplicate_scan"
// @Param severity query string false "级别 high/med/low"
// @Param resolved query bool false "处理状态"
// @Param subject query string false "主体(item或bin标识)"
// @Param page query int false "页码,默认1"
// @Param size query int false "页大小,默认20"
// @Success 200 {object} PaginatedResponse
// @Router /anomalies [get]
func (c *AnomalyController) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	filter := reconcile.AnomalyFilter{
		Date:     r.URL.Query().Get("date"),
		Type:     r.URL.Query().Get("type"),
		Severity: r.URL.Query().Get("severity"),
		Subject:  r.URL.Query().Get("subject"),
	}

	if raw := r.URL.Query().Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			ErrorResponse(w, r, http.StatusBadRequest, "resolved参数非法", err)
			return
		}
		filter.Resolved = &resolved
	}

	page := parseIntParam(r, "page", 1)
	size := parseIntParam(r, "size", 20)

	anomalies, total, err := c.anomalyService.ListAnomalies(filter, page, size)
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询异常列表失败", err)
		return
	}

	PaginatedSuccessResponse(w, r, "查询成功", anomalies, total, page, size)
}

// GetAnomalySummary 查询异常汇总
// @Summary 查询异常汇总
// @Description 按类型与级别统计指定日期的异常分布
// @Tags 异常管理
// @Produce json
// @Param date query string true "对账日期 YYYY-MM-DD"
// @Success 200 {object} APIResponse{data=reconcile.AnomalySummary}
// @Failure 400 {object} APIResponse
// @Router /anomalies/summary [get]
func (c *AnomalyController) GetAnomalySummary(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		ErrorResponse(w, r, http.StatusBadRequest, "缺少date参数", nil)
		return
	}

	summary, err := c.anomalyService.GetAnomalySummary(date)
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询异常汇总失败", err)
		return
	}

	SuccessResponse(w, r, "查询成功", summary)
}

// ResolveAnomalyRequest 异常处理标记请求
type ResolveAnomalyRequest struct {
	Resolved *bool `json:"resolved"`
}

// ResolveAnomaly 标记异常处理状态
// @Summary 标记异常处理状态
// @Description 人工标记异常为已处理/未处理,缺省视为已处理
// @Tags 异常管理
// @Accept json
// @Produce json
// @Param id path string true "异常ID"
// @Param request body ResolveAnomalyRequest false "标记请求"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /anomalies/{id}/resolve [put]
func (c *AnomalyController) ResolveAnomaly(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	resolved := true
	var req ResolveAnomalyRequest
	if err := render.DecodeJSON(r.Body, &req); err == nil && req.Resolved != nil {
		resolved = *req.Resolved
	}

	anomaly, err := c.anomalyService.ResolveAnomaly(id, resolved)
	if err != nil {
		if errors.Is(err, reconcile.ErrAnomalyNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "异常记录不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusInternalServerError, "标记异常失败", err)
		return
	}

	SuccessResponse(w, r, "标记成功", anomaly)
}
