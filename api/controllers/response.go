package controllers

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"200"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"200"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Page   int         `json:"page" example:"1"`
	Size   int         `json:"size" example:"10"`
}

// SuccessResponse 渲染成功响应
func SuccessResponse(w http.ResponseWriter, r *http.Request, msg string, data interface{}) {
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    msg,
		Data:   data,
	})
}

// PaginatedSuccessResponse 渲染分页成功响应
func PaginatedSuccessResponse(w http.ResponseWriter, r *http.Request, msg string, data interface{}, total int64, page, size int) {
	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    msg,
		Data:   data,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// ErrorResponse 渲染错误响应,HTTP状态码与响应体status保持一致
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	render.Status(r, status)
	render.JSON(w, r, APIResponse{
		Status: status,
		Msg:    msg,
	})
}
