/*
 * @module api/controllers/scanner_controller
 * @description 扫码接入控制器,提供MQTT订阅源的管理API与接入状态查询
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/scanner_design.md
 * @stateFlow 订阅源CRUD -> 重载订阅 -> 消息到达 -> 转换脚本 -> 快照创建
 * @rules 启用转换脚本的订阅源在保存前校验脚本可编译,主题支持MQTT通配符
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/scanner/scanner_service.go
 */

package controllers

import (
	"errors"
	"net/http"

	"warehouse-service/service"
	"warehouse-service/service/models"
	"warehouse-service/service/scanner"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ScannerController 扫码接入控制器
type ScannerController struct {
	scannerService *scanner.ScannerService
}

// NewScannerController 创建扫码接入控制器实例
func NewScannerController() *ScannerController {
	return &ScannerController{
		scannerService: service.GlobalScannerService,
	}
}

// GetStatus 查询扫码接入状态
// @Summary 扫码接入状态
// @Description MQTT连接状态、订阅源数量与待处理消息数
// @Tags 扫码接入
// @Produce json
// @Success 200 {object} APIResponse
// @Router /scanner/status [get]
func (c *ScannerController) GetStatus(w http.ResponseWriter, r *http.Request) {
	SuccessResponse(w, r, "查询成功", c.scannerService.Status())
}

// ListFeeds 查询订阅源列表
// @Summary 查询订阅源列表
// @Tags 扫码接入
// @Produce json
// @Success 200 {object} APIResponse{data=[]models.ScannerFeed}
// @Router /scanner/feeds [get]
func (c *ScannerController) ListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := c.scannerService.ListFeeds(r.Context())
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询订阅源列表失败", err)
		return
	}

	SuccessResponse(w, r, "查询成功", feeds)
}

// GetFeed 查询单个订阅源
// @Summary 查询单个订阅源
// @Tags 扫码接入
// @Produce json
// @Param id path string true "订阅源ID"
// @Success 200 {object} APIResponse{data=models.ScannerFeed}
// @Failure 404 {object} APIResponse
// @Router /scanner/feeds/{id} [get]
func (c *ScannerController) GetFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	feed, err := c.scannerService.GetFeed(r.Context(), id)
	if err != nil {
		if errors.Is(err, scanner.ErrFeedNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "订阅源不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusInternalServerError, "查询订阅源失败", err)
		return
	}

	SuccessResponse(w, r, "查询成功", feed)
}

// CreateFeed 创建订阅源
// @Summary 创建订阅源
// @Description 创建MQTT订阅源,启用转换脚本时先校验脚本
// @Tags 扫码接入
// @Accept json
// @Produce json
// @Param request body models.ScannerFeed true "订阅源配置"
// @Success 200 {object} APIResponse{data=models.ScannerFeed}
// @Failure 400 {object} APIResponse
// @Router /scanner/feeds [post]
func (c *ScannerController) CreateFeed(w http.ResponseWriter, r *http.Request) {
	var feed models.ScannerFeed
	if err := render.DecodeJSON(r.Body, &feed); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "请求参数解析失败", err)
		return
	}

	if err := c.scannerService.CreateFeed(r.Context(), &feed); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "创建订阅源失败", err)
		return
	}

	SuccessResponse(w, r, "订阅源已创建", feed)
}

// UpdateFeed 更新订阅源
// @Summary 更新订阅源
// @Description 更新订阅源配置并重载MQTT订阅
// @Tags 扫码接入
// @Accept json
// @Produce json
// @Param id path string true "订阅源ID"
// @Param request body map[string]interface{} true "更新字段"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /scanner/feeds/{id} [put]
func (c *ScannerController) UpdateFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var updates map[string]interface{}
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "请求参数解析失败", err)
		return
	}

	if err := c.scannerService.UpdateFeed(r.Context(), id, updates); err != nil {
		if errors.Is(err, scanner.ErrFeedNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "订阅源不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusBadRequest, "更新订阅源失败", err)
		return
	}

	SuccessResponse(w, r, "订阅源已更新", map[string]interface{}{"id": id})
}

// DeleteFeed 删除订阅源
// @Summary 删除订阅源
// @Tags 扫码接入
// @Produce json
// @Param id path string true "订阅源ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /scanner/feeds/{id} [delete]
func (c *ScannerController) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.scannerService.DeleteFeed(r.Context(), id); err != nil {
		if errors.Is(err, scanner.ErrFeedNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "订阅源不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusInternalServerError, "删除订阅源失败", err)
		return
	}

	SuccessResponse(w, r, "订阅源已删除", map[string]interface{}{"id": id})
}

// ReloadFeeds 重载订阅
// @Summary 重载订阅
// @Description 重新加载启用的订阅源并刷新MQTT订阅
// @Tags 扫码接入
// @Produce json
// @Success 200 {object} APIResponse
// @Router /scanner/reload [post]
func (c *ScannerController) ReloadFeeds(w http.ResponseWriter, r *http.Request) {
	if err := c.scannerService.ReloadFeeds(r.Context()); err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "重载订阅失败", err)
		return
	}

	SuccessResponse(w, r, "订阅已重载", c.scannerService.Status())
}
