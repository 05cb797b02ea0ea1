/*
 * @module api/controllers/report_controller
 * @description 报表控制器,提供对账异常报表与当前库存报表的生成和下载API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/report_design.md
 * @stateFlow 生成请求 -> 查询数据 -> CSV渲染 -> 存储后端落盘 -> 返回引用;下载按引用读取
 * @rules 报表带UTF-8 BOM保证Excel兼容,下载引用只允许reports/前缀
 * @dependencies github.com/go-chi/render
 * @refs service/report/report_service.go
 */

package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"path"

	"warehouse-service/service"
	"warehouse-service/service/report"
)

// ReportController 报表控制器
type ReportController struct {
	reportService *report.ReportService
}

// NewReportController 创建报表控制器实例
func NewReportController() *ReportController {
	return &ReportController{
		reportService: service.GlobalReportService,
	}
}

// GenerateAnomalyReport 生成对账异常报表
// @Summary 生成对账异常报表
// @Description 生成指定日期的异常CSV报表并写入存储后端,返回下载引用
// @Tags 报表管理
// @Produce json
// @Param date query string true "对账日期 YYYY-MM-DD"
// @Success 200 {object} APIResponse{data=report.ReportResult}
// @Failure 400 {object} APIResponse
// @Router /reports/anomalies [post]
func (c *ReportController) GenerateAnomalyReport(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		ErrorResponse(w, r, http.StatusBadRequest, "缺少date参数", nil)
		return
	}

	result, err := c.reportService.GenerateAnomalyReport(r.Context(), date)
	if err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "生成异常报表失败", err)
		return
	}

	SuccessResponse(w, r, "报表已生成", result)
}

// GenerateInventoryReport 生成当前库存报表
// @Summary 生成当前库存报表
// @Description 以每库位最新快照生成当前库存CSV报表,返回下载引用
// @Tags 报表管理
// @Produce json
// @Success 200 {object} APIResponse{data=report.ReportResult}
// @Router /reports/inventory [post]
func (c *ReportController) GenerateInventoryReport(w http.ResponseWriter, r *http.Request) {
	result, err := c.reportService.GenerateInventoryReport(r.Context())
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "生成库存报表失败", err)
		return
	}

	SuccessResponse(w, r, "报表已生成", result)
}

// DownloadReport 下载报表
// @Summary 下载报表
// @Description 按生成时返回的引用下载报表文件
// @Tags 报表管理
// @Produce text/csv
// @Param ref query string true "报表引用 reports/xxx.csv"
// @Success 200 {string} string "CSV内容"
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /reports/download [get]
func (c *ReportController) DownloadReport(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		ErrorResponse(w, r, http.StatusBadRequest, "缺少ref参数", nil)
		return
	}

	data, contentType, err := c.reportService.DownloadReport(r.Context(), ref)
	if err != nil {
		if errors.Is(err, report.ErrInvalidRef) {
			ErrorResponse(w, r, http.StatusBadRequest, "报表引用非法", nil)
			return
		}
		ErrorResponse(w, r, http.StatusNotFound, "报表不存在", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, path.Base(ref)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
