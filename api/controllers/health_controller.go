/*
 * @module api/controllers/health_controller
 * @description 健康检查控制器,提供服务健康状态检查
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow HTTP请求处理流程
 * @rules 提供简单的健康检查接口,用于容器健康检查和负载均衡;就绪检查验证数据库连通
 * @dependencies net/http
 * @refs service/init.go
 */

package controllers

import (
	"net/http"
	"time"

	"warehouse-service/service"

	"github.com/go-chi/render"
)

// HealthController 健康检查控制器
type HealthController struct{}

// NewHealthController 创建健康检查控制器实例
func NewHealthController() *HealthController {
	return &HealthController{}
}

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Status    string    `json:"status" example:"ok"`
	Timestamp time.Time `json:"timestamp" example:"2025-03-01T00:00:00Z"`
	Version   string    `json:"version" example:"1.0.0"`
	Service   string    `json:"service" example:"warehouse-service"`
}

// Health 健康检查
// @Summary 健康检查
// @Description 检查服务健康状态
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Service:   "warehouse-service",
	}

	render.JSON(w, r, response)
}

// Ready 就绪检查
// @Summary 就绪检查
// @Description 检查服务是否就绪,包含数据库连通性
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	status := "ready"

	sqlDB, err := service.DB.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		status = "not_ready"
		render.Status(r, http.StatusServiceUnavailable)
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Service:   "warehouse-service",
	}

	render.JSON(w, r, response)
}
