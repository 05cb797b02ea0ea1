/*
 * @module api/controllers/snapshot_controller
 * @description 快照管理控制器,提供快照上报、查询、删除、当前库存视图与移动流水API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/snapshot_design.md
 * @stateFlow 快照上报 -> 追加落库 -> 移动推导 -> 事件推送;查询走最新快照视图
 * @rules 快照只追加,修正靠新快照;当前库存取每库位最新一次快照
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/snapshot/snapshot_service.go
 */

package controllers

import (
	"errors"
	"net/http"

	"warehouse-service/service"
	"warehouse-service/service/snapshot"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// SnapshotController 快照管理控制器
type SnapshotController struct {
	snapshotService *snapshot.SnapshotService
}

// NewSnapshotController 创建快照控制器实例
func NewSnapshotController() *SnapshotController {
	return &SnapshotController{
		snapshotService: service.GlobalSnapshotService,
	}
}

// CreateSnapshot 上报快照
// @Summary 上报快照
// @Description 上报一次已解码的扫描结果(库位、物品码、置信度),快照只追加
// @Tags 快照管理
// @Accept json
// @Produce json
// @Param request body snapshot.CreateSnapshotRequest true "快照内容"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /snapshots [post]
func (c *SnapshotController) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshot.CreateSnapshotRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "请求参数解析失败", err)
		return
	}

	snap, err := c.snapshotService.CreateSnapshot(r.Context(), &req)
	if err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "创建快照失败", err)
		return
	}

	SuccessResponse(w, r, "快照已创建", snap)
}

// ListSnapshots 查询快照列表
// @Summary 查询快照列表
// @Description 按库位/日期/来源过滤查询,按时间倒序分页
// @Tags 快照管理
// @Produce json
// @Param bin_id query string false "库位ID"
// @Param date query string false "日期 YYYY-MM-DD"
// @Param source query string false "来源 manual/import/scanner"
// @Param page query int false "页码,默认1"
// @Param size query int false "页大小,默认50"
// @Success 200 {object} PaginatedResponse
// @Router /snapshots [get]
func (c *SnapshotController) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "page", 1)
	size := parseIntParam(r, "size", 50)

	filter := &snapshot.SnapshotFilter{
		BinID:  r.URL.Query().Get("bin_id"),
		Date:   r.URL.Query().Get("date"),
		Source: r.URL.Query().Get("source"),
		Limit:  size,
		Offset: (page - 1) * size,
	}

	snapshots, total, err := c.snapshotService.ListSnapshots(r.Context(), filter)
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询快照列表失败", err)
		return
	}

	PaginatedSuccessResponse(w, r, "查询成功", snapshots, total, page, size)
}

// GetSnapshot 查询单个快照
// @Summary 查询单个快照
// @Tags 快照管理
// @Produce json
// @Param id path string true "快照ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /snapshots/{id} [get]
func (c *SnapshotController) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := c.snapshotService.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "快照不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusInternalServerError, "查询快照失败", err)
		return
	}

	SuccessResponse(w, r, "查询成功", snap)
}

// DeleteSnapshot 删除快照
// @Summary 删除快照
// @Description 删除误报快照,同时清理由它推导出的移动流水
// @Tags 快照管理
// @Produce json
// @Param id path string true "快照ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /snapshots/{id} [delete]
func (c *SnapshotController) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.snapshotService.DeleteSnapshot(r.Context(), id); err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "快照不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusInternalServerError, "删除快照失败", err)
		return
	}

	SuccessResponse(w, r, "删除成功", map[string]interface{}{"id": id})
}

// GetCurrentInventory 查询当前库存视图
// @Summary 当前库存视图
// @Description 每个库位的最新一次快照内容,构成当前观测库存
// @Tags 快照管理
// @Produce json
// @Success 200 {object} APIResponse{data=[]snapshot.BinInventory}
// @Router /inventory/current [get]
func (c *SnapshotController) GetCurrentInventory(w http.ResponseWriter, r *http.Request) {
	inventory, err := c.snapshotService.GetCurrentInventory(r.Context())
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询当前库存失败", err)
		return
	}

	SuccessResponse(w, r, "查询成功", inventory)
}

// ListMovements 查询移动流水
// @Summary 查询移动流水
// @Description 按物品/日期过滤查询快照推导出的移动审计流水
// @Tags 快照管理
// @Produce json
// @Param item_id query string false "物品ID"
// @Param date query string false "日期 YYYY-MM-DD"
// @Param page query int false "页码,默认1"
// @Param size query int false "页大小,默认50"
// @Success 200 {object} PaginatedResponse
// @Router /movements [get]
func (c *SnapshotController) ListMovements(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "page", 1)
	size := parseIntParam(r, "size", 50)

	movements, total, err := c.snapshotService.ListMovements(r.Context(),
		r.URL.Query().Get("item_id"), r.URL.Query().Get("date"), (page-1)*size, size)
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询移动流水失败", err)
		return
	}

	PaginatedSuccessResponse(w, r, "查询成功", movements, total, page, size)
}
