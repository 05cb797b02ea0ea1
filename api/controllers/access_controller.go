/*
 * @module api/controllers/access_controller
 * @description 接入凭证控制器,提供API Key的签发、查询与生命周期管理API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/access_control.md
 * @stateFlow 签发请求 -> 生成Key(明文仅返回一次) -> 哈希落库 -> 列表/停用/删除
 * @rules 完整Key只在创建响应中出现一次,查询接口永不返回Key明文或哈希
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/access/access_service.go, api/middleware/api_key_auth.go
 */

package controllers

import (
	"errors"
	"net/http"
	"time"

	"warehouse-service/service"
	"warehouse-service/service/access"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// AccessController 接入凭证控制器
type AccessController struct {
	accessService *access.AccessService
}

// NewAccessController 创建接入凭证控制器实例
func NewAccessController() *AccessController {
	return &AccessController{
		accessService: service.GlobalAccessService,
	}
}

// CreateApiKeyRequest 创建API Key请求
type CreateApiKeyRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// CreateApiKey 创建API Key
// @Summary 创建API Key
// @Description 签发新的API Key,完整Key值仅在本次响应中返回
// @Tags 接入凭证
// @Accept json
// @Produce json
// @Param request body CreateApiKeyRequest true "创建请求"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /access/keys [post]
func (c *AccessController) CreateApiKey(w http.ResponseWriter, r *http.Request) {
	var req CreateApiKeyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "请求参数解析失败", err)
		return
	}

	apiKey, fullKey, err := c.accessService.CreateApiKey(req.Name, req.Description, req.ExpiresAt)
	if err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "创建API Key失败", err)
		return
	}

	SuccessResponse(w, r, "API Key已创建,请妥善保存,Key值不会再次展示", map[string]interface{}{
		"key_info": apiKey,
		"api_key":  fullKey,
	})
}

// ListApiKeys 查询API Key列表
// @Summary 查询API Key列表
// @Description 返回所有Key的元信息,不包含Key值
// @Tags 接入凭证
// @Produce json
// @Success 200 {object} APIResponse
// @Router /access/keys [get]
func (c *AccessController) ListApiKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := c.accessService.ListApiKeys()
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询API Key列表失败", err)
		return
	}

	SuccessResponse(w, r, "查询成功", keys)
}

// UpdateApiKey 更新API Key
// @Summary 更新API Key
// @Description 更新名称、描述、状态或过期时间
// @Tags 接入凭证
// @Accept json
// @Produce json
// @Param id path string true "Key ID"
// @Param request body map[string]interface{} true "更新字段"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /access/keys/{id} [put]
func (c *AccessController) UpdateApiKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var updates map[string]interface{}
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "请求参数解析失败", err)
		return
	}

	if err := c.accessService.UpdateApiKey(id, updates); err != nil {
		if errors.Is(err, access.ErrApiKeyNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "API Key不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusBadRequest, "更新API Key失败", err)
		return
	}

	SuccessResponse(w, r, "更新成功", map[string]interface{}{"id": id})
}

// DisableApiKey 停用API Key
// @Summary 停用API Key
// @Tags 接入凭证
// @Produce json
// @Param id path string true "Key ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /access/keys/{id}/disable [post]
func (c *AccessController) DisableApiKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.accessService.DisableApiKey(id); err != nil {
		if errors.Is(err, access.ErrApiKeyNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "API Key不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusInternalServerError, "停用API Key失败", err)
		return
	}

	SuccessResponse(w, r, "已停用", map[string]interface{}{"id": id})
}

// DeleteApiKey 删除API Key
// @Summary 删除API Key
// @Tags 接入凭证
// @Produce json
// @Param id path string true "Key ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /access/keys/{id} [delete]
func (c *AccessController) DeleteApiKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.accessService.DeleteApiKey(id); err != nil {
		if errors.Is(err, access.ErrApiKeyNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "API Key不存在", nil)
			return
		}
		ErrorResponse(w, r, http.StatusInternalServerError, "删除API Key失败", err)
		return
	}

	SuccessResponse(w, r, "已删除", map[string]interface{}{"id": id})
}
