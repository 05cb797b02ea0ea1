/*
 * @module api/controllers/event_controller
 * @description 事件推送控制器,提供SSE连接、事件历史查询与事件发布API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/event_push.md
 * @stateFlow HTTP请求 -> SSE长连接建立 -> 频道事件推送;断线客户端通过历史接口补齐
 * @rules 客户端按频道订阅(runs/anomalies/snapshots),不指定频道时订阅全部
 * @dependencies github.com/go-chi/render
 * @refs service/event/event_service.go
 */

package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"warehouse-service/service"
	"warehouse-service/service/event"
	"warehouse-service/service/models"

	"github.com/go-chi/render"
)

// EventController 事件推送控制器
type EventController struct {
	eventService *event.EventService
}

// NewEventController 创建事件控制器实例
func NewEventController() *EventController {
	return &EventController{
		eventService: service.GlobalEventService,
	}
}

// 合法的订阅频道
var validChannels = map[string]bool{
	models.EventChannelRuns:      true,
	models.EventChannelAnomalies: true,
	models.EventChannelSnapshots: true,
}

// HandleSSE 建立SSE连接
// @Summary 建立SSE连接
// @Description 建立SSE长连接接收实时事件,channels为逗号分隔的频道列表,缺省订阅全部
// @Tags 事件推送
// @Param channels query string false "订阅频道,如 runs,anomalies"
// @Success 200 {string} string "SSE事件流"
// @Router /sse [get]
func (c *EventController) HandleSSE(w http.ResponseWriter, r *http.Request) {
	var channels []string
	if raw := r.URL.Query().Get("channels"); raw != "" {
		for _, ch := range strings.Split(raw, ",") {
			ch = strings.TrimSpace(ch)
			if ch == "" {
				continue
			}
			if !validChannels[ch] {
				http.Error(w, fmt.Sprintf("未知频道: %s", ch), http.StatusBadRequest)
				return
			}
			channels = append(channels, ch)
		}
	}

	// 设置SSE响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	clientIP := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP = forwarded
	}

	client := c.eventService.AddSSEConnection(channels, clientIP)
	defer c.eventService.RemoveSSEConnection(client.ID)

	// 发送连接成功事件
	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"connection_id\":\"%s\",\"timestamp\":\"%s\"}\n\n",
		client.ID, time.Now().Format(time.RFC3339))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	// 事件推送循环
	for {
		select {
		case evt := <-client.Events:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Channel, toJSON(evt))

			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-client.Done:
			return

		case <-r.Context().Done():
			return
		}
	}
}

// GetEventHistory 查询事件历史
// @Summary 查询事件历史
// @Description 断线客户端重连后按频道补齐错过的事件
// @Tags 事件推送
// @Produce json
// @Param channel query string false "频道 runs/anomalies/snapshots"
// @Param event_type query string false "事件类型"
// @Param page query int false "页码,默认1"
// @Param size query int false "页大小,默认50"
// @Success 200 {object} PaginatedResponse
// @Router /events/history [get]
func (c *EventController) GetEventHistory(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "page", 1)
	size := parseIntParam(r, "size", 50)

	events, total, err := c.eventService.GetEventHistory(
		r.URL.Query().Get("channel"), r.URL.Query().Get("event_type"), page, size)
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询事件历史失败", err)
		return
	}

	PaginatedSuccessResponse(w, r, "查询成功", events, total, page, size)
}

// PublishEventRequest 发布事件请求
type PublishEventRequest struct {
	Channel   string                 `json:"channel" binding:"required"`
	EventType string                 `json:"event_type" binding:"required"`
	Data      map[string]interface{} `json:"data"`
}

// PublishEvent 发布事件
// @Summary 发布事件
// @Description 手动向指定频道发布事件,用于联调与运维通知
// @Tags 事件推送
// @Accept json
// @Produce json
// @Param request body PublishEventRequest true "发布事件请求"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /events/publish [post]
func (c *EventController) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var req PublishEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "请求参数解析失败", err)
		return
	}

	if !validChannels[req.Channel] {
		ErrorResponse(w, r, http.StatusBadRequest, "未知频道: "+req.Channel, nil)
		return
	}
	if req.EventType == "" {
		ErrorResponse(w, r, http.StatusBadRequest, "事件类型不能为空", nil)
		return
	}

	if err := c.eventService.PublishEvent(req.Channel, req.EventType, req.Data); err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "发布事件失败", err)
		return
	}

	SuccessResponse(w, r, "事件已发布", map[string]interface{}{
		"channel":    req.Channel,
		"event_type": req.EventType,
	})
}

// GetConnectionStats 查询连接统计
// @Summary 查询连接统计
// @Tags 事件推送
// @Produce json
// @Success 200 {object} APIResponse
// @Router /events/connections [get]
func (c *EventController) GetConnectionStats(w http.ResponseWriter, r *http.Request) {
	SuccessResponse(w, r, "查询成功", map[string]interface{}{
		"active_connections": c.eventService.ConnectionCount(),
	})
}

// toJSON 序列化为JSON字符串,失败时返回空对象
func toJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
