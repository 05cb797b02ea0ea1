/*
 * @module api/controllers/ingest_controller
 * @description 数据导入控制器,提供库位/订单/分配/快照CSV文件的导入API与导入总览
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/ingest_design.md
 * @stateFlow 文件上传 -> 编码检测 -> 逐行解析 -> 批量落库 -> 导入结果
 * @rules 单文件一个事务,单行错误只计入错误列表不中断导入,支持GBK编码自动转换
 * @dependencies github.com/go-chi/render
 * @refs service/ingest/ingest_service.go
 */

package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"warehouse-service/service"
	"warehouse-service/service/ingest"
)

// 上传文件大小上限 32MB
const maxImportFileSize = 32 << 20

// IngestController 数据导入控制器
type IngestController struct {
	ingestService *ingest.IngestService
}

// NewIngestController 创建数据导入控制器实例
func NewIngestController() *IngestController {
	return &IngestController{
		ingestService: service.GlobalIngestService,
	}
}

// ImportBins 导入库位CSV
// @Summary 导入库位CSV
// @Description 上传库位主数据CSV(bin_id,zone,role,coords...),按bin_id插入或更新
// @Tags 数据导入
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV文件"
// @Success 200 {object} APIResponse{data=ingest.ImportResult}
// @Failure 400 {object} APIResponse
// @Router /import/bins [post]
func (c *IngestController) ImportBins(w http.ResponseWriter, r *http.Request) {
	c.runImport(w, r, "库位", c.ingestService.ImportBins)
}

// ImportOrders 导入订单CSV
// @Summary 导入订单CSV
// @Description 上传出库订单CSV(order_id,ship_date,sku,qty,item_ids,status),按(order_id,sku)插入或更新
// @Tags 数据导入
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV文件"
// @Success 200 {object} APIResponse{data=ingest.ImportResult}
// @Failure 400 {object} APIResponse
// @Router /import/orders [post]
func (c *IngestController) ImportOrders(w http.ResponseWriter, r *http.Request) {
	c.runImport(w, r, "订单", c.ingestService.ImportOrders)
}

// ImportAllocations 导入分配CSV
// @Summary 导入分配CSV
// @Description 上传拣货分配CSV(item_id,bin_id,status),按item_id插入或更新,自动补齐缺失的物品与库位
// @Tags 数据导入
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV文件"
// @Success 200 {object} APIResponse{data=ingest.ImportResult}
// @Failure 400 {object} APIResponse
// @Router /import/allocations [post]
func (c *IngestController) ImportAllocations(w http.ResponseWriter, r *http.Request) {
	c.runImport(w, r, "分配", c.ingestService.ImportAllocations)
}

// ImportSnapshots 导入快照CSV
// @Summary 导入快照CSV
// @Description 上传历史快照CSV(ts,bin_id,item_ids,conf...),仅追加不更新
// @Tags 数据导入
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV文件"
// @Success 200 {object} APIResponse{data=ingest.ImportResult}
// @Failure 400 {object} APIResponse
// @Router /import/snapshots [post]
func (c *IngestController) ImportSnapshots(w http.ResponseWriter, r *http.Request) {
	c.runImport(w, r, "快照", c.ingestService.ImportSnapshots)
}

// GetImportSummary 查询导入数据总览
// @Summary 导入数据总览
// @Description 各类主数据与快照的当前总量
// @Tags 数据导入
// @Produce json
// @Success 200 {object} APIResponse{data=ingest.ImportSummary}
// @Router /import/summary [get]
func (c *IngestController) GetImportSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := c.ingestService.GetImportSummary(r.Context())
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "查询导入总览失败", err)
		return
	}

	SuccessResponse(w, r, "查询成功", summary)
}

// runImport 读取上传文件并执行导入,各类导入共用同一处理流程
func (c *IngestController) runImport(w http.ResponseWriter, r *http.Request, kind string,
	importFn func(ctx context.Context, data []byte) (*ingest.ImportResult, error)) {
	data, err := readUploadFile(r)
	if err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "读取上传文件失败", err)
		return
	}

	result, err := importFn(r.Context(), data)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyFile) {
			ErrorResponse(w, r, http.StatusBadRequest, "文件为空或缺少数据行", nil)
			return
		}
		ErrorResponse(w, r, http.StatusBadRequest, kind+"导入失败", err)
		return
	}

	msg := kind + "导入完成"
	if len(result.Errors) > 0 {
		msg = fmt.Sprintf("%s导入完成,%d行存在错误", kind, len(result.Errors))
	}
	SuccessResponse(w, r, msg, result)
}

// readUploadFile 从multipart表单或请求体读取CSV内容
func readUploadFile(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")

	// multipart表单上传
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportFileSize); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(io.LimitReader(file, maxImportFileSize))
	}

	// 直接以请求体上传
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportFileSize))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("请求体为空")
	}
	return data, nil
}
