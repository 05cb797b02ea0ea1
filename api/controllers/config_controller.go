/*
 * @module api/controllers/config_controller
 * @description 配置管理控制器,提供系统配置的HTTP接口与对账参数视图
 * @architecture RESTful API架构
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow HTTP请求 -> 控制器 -> 配置服务 -> 数据库
 * @rules 配置更新即时生效(缓存失效),对账参数按解析后的生效值返回
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/config
 */

package controllers

import (
	"net/http"

	"warehouse-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ConfigController 配置控制器
type ConfigController struct {
}

// NewConfigController 创建配置控制器实例
func NewConfigController() *ConfigController {
	return &ConfigController{}
}

// GetAllConfigs 获取所有配置
// @Summary 获取所有系统配置
// @Description 获取系统所有配置项,未入库的键以默认值补齐
// @Tags 系统配置
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse
// @Router /config [get]
func (c *ConfigController) GetAllConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := service.GlobalConfigService.GetAllSystemConfigs()
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "获取配置失败", err)
		return
	}

	SuccessResponse(w, r, "获取配置成功", configs)
}

// GetConfig 获取单个配置
// @Summary 获取单个配置
// @Description 根据键名获取配置值
// @Tags 系统配置
// @Accept json
// @Produce json
// @Param key path string true "配置键"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /config/{key} [get]
func (c *ConfigController) GetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		ErrorResponse(w, r, http.StatusBadRequest, "配置键不能为空", nil)
		return
	}

	value, err := service.GlobalConfigService.GetSystemConfig(key)
	if err != nil {
		ErrorResponse(w, r, http.StatusNotFound, "配置项不存在", err)
		return
	}

	SuccessResponse(w, r, "获取配置成功", map[string]interface{}{
		"key":   key,
		"value": value,
	})
}

// UpdateConfigRequest 更新配置请求
type UpdateConfigRequest struct {
	Value       string `json:"value" binding:"required"`
	Description string `json:"description"`
	UpdatedBy   string `json:"updated_by"`
}

// UpdateConfig 更新配置
// @Summary 更新配置
// @Description 更新指定键的配置值,立即生效
// @Tags 系统配置
// @Accept json
// @Produce json
// @Param key path string true "配置键"
// @Param request body UpdateConfigRequest true "更新配置请求"
// @Success 200 {object} APIResponse
// @Router /config/{key} [put]
func (c *ConfigController) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		ErrorResponse(w, r, http.StatusBadRequest, "配置键不能为空", nil)
		return
	}

	var req UpdateConfigRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "请求参数错误", err)
		return
	}

	updatedBy := req.UpdatedBy
	if updatedBy == "" {
		updatedBy = "api"
	}

	if err := service.GlobalConfigService.SetSystemConfig(key, req.Value, req.Description, updatedBy); err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "更新配置失败", err)
		return
	}

	SuccessResponse(w, r, "更新配置成功", map[string]interface{}{
		"key":   key,
		"value": req.Value,
	})
}

// BatchUpdateConfigsRequest 批量更新配置请求
type BatchUpdateConfigsRequest struct {
	Configs []struct {
		Key         string `json:"key" binding:"required"`
		Value       string `json:"value" binding:"required"`
		Description string `json:"description"`
	} `json:"configs" binding:"required"`
	UpdatedBy string `json:"updated_by"`
}

// BatchUpdateConfigs 批量更新配置
// @Summary 批量更新配置
// @Description 批量更新多个配置项,逐项更新并汇总结果
// @Tags 系统配置
// @Accept json
// @Produce json
// @Param request body BatchUpdateConfigsRequest true "批量更新配置请求"
// @Success 200 {object} APIResponse
// @Router /config/batch [put]
func (c *ConfigController) BatchUpdateConfigs(w http.ResponseWriter, r *http.Request) {
	var req BatchUpdateConfigsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "请求参数错误", err)
		return
	}

	updatedBy := req.UpdatedBy
	if updatedBy == "" {
		updatedBy = "api"
	}

	successCount := 0
	failedCount := 0
	errs := []string{}

	for _, cfg := range req.Configs {
		err := service.GlobalConfigService.SetSystemConfig(cfg.Key, cfg.Value, cfg.Description, updatedBy)
		if err != nil {
			failedCount++
			errs = append(errs, cfg.Key+": "+err.Error())
		} else {
			successCount++
		}
	}

	SuccessResponse(w, r, "批量更新完成", map[string]interface{}{
		"success_count": successCount,
		"failed_count":  failedCount,
		"errors":        errs,
	})
}

// GetReconcileConfig 获取生效的对账参数
// @Summary 获取生效的对账参数
// @Description 返回解析与校验后的当前对账参数(暂存库位集、过期阈值、置信度下限等)
// @Tags 系统配置
// @Produce json
// @Success 200 {object} APIResponse
// @Router /config/reconcile/effective [get]
func (c *ConfigController) GetReconcileConfig(w http.ResponseWriter, r *http.Request) {
	cfg := service.GlobalConfigService.ResolveReconcileConfig()
	SuccessResponse(w, r, "获取对账参数成功", cfg)
}

// ClearConfigCache 清除配置缓存
// @Summary 清除配置缓存
// @Description 强制下次读取回源数据库
// @Tags 系统配置
// @Produce json
// @Success 200 {object} APIResponse
// @Router /config/cache/clear [post]
func (c *ConfigController) ClearConfigCache(w http.ResponseWriter, r *http.Request) {
	service.GlobalConfigService.ClearCache()
	SuccessResponse(w, r, "配置缓存已清除", nil)
}
