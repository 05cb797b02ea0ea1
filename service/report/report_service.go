/*
 * @module service/report/report_service
 * @description 报表服务,生成对账异常报表与库存现状报表并写入存储后端
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/report_design.md
 * @stateFlow 查询数据 -> 组装 CSV -> 写入存储 -> 返回引用,下载按引用读取
 * @rules 异常导出列与异常契约字段一一对应;CSV 带 BOM 以兼容 Excel
 * @dependencies warehouse-service/service/models, warehouse-service/service/snapshot, gorm.io/gorm
 * @refs api/controllers/report_controller.go
 */

package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"warehouse-service/service/models"
	"warehouse-service/service/monitoring"
	"warehouse-service/service/snapshot"
	"warehouse-service/service/utils"

	"gorm.io/gorm"
)

// severityOrder 级别排序表达式,high 在前
const severityOrder = "CASE severity WHEN 'high' THEN 0 WHEN 'med' THEN 1 ELSE 2 END ASC, id ASC"

// ReportResult 报表生成结果
type ReportResult struct {
	Ref         string    `json:"ref"`
	Filename    string    `json:"filename"`
	RecordCount int       `json:"record_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ReportService 报表服务
type ReportService struct {
	db        *gorm.DB
	store     Store
	snapshots *snapshot.SnapshotService
}

// NewReportService 创建报表服务实例
func NewReportService(db *gorm.DB, store Store, snapshots *snapshot.SnapshotService) *ReportService {
	return &ReportService{db: db, store: store, snapshots: snapshots}
}

// GenerateAnomalyReport 生成指定日期的对账异常报表
// 文件带汇总前言,正文列与异常稳定字段一一对应
func (s *ReportService) GenerateAnomalyReport(ctx context.Context, date string) (*ReportResult, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("日期格式非法: %s", date)
	}

	var anomalies []models.Anomaly
	err = s.db.WithContext(ctx).
		Where("date = ?", date).
		Order(severityOrder).
		Find(&anomalies).Error
	if err != nil {
		return nil, fmt.Errorf("异常查询失败: %w", err)
	}

	var snapshotCount int64
	dayStart := day
	err = s.db.WithContext(ctx).Model(&models.Snapshot{}).
		Where("ts >= ? AND ts < ?", dayStart, dayStart.AddDate(0, 0, 1)).
		Count(&snapshotCount).Error
	if err != nil {
		return nil, fmt.Errorf("快照统计失败: %w", err)
	}

	now := time.Now()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "对账报表 %s\n", date)
	fmt.Fprintf(&buf, "生成时间,%s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&buf, "异常总数,%d\n", len(anomalies))
	fmt.Fprintf(&buf, "当日快照数,%d\n", snapshotCount)
	buf.WriteString("\n")

	writer := csv.NewWriter(&buf)
	header := []string{"id", "date", "type", "severity", "subject", "expected", "actual", "detected_at", "explanation", "resolved"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("报表写入失败: %w", err)
	}
	for _, a := range anomalies {
		row := []string{
			a.ID,
			a.Date,
			a.Type,
			a.Severity,
			a.Subject,
			derefOrEmpty(a.Expected),
			derefOrEmpty(a.Actual),
			a.DetectedAt.Format("2006-01-02 15:04:05"),
			a.Explanation,
			strconv.FormatBool(a.Resolved),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("报表写入失败: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("报表写入失败: %w", err)
	}

	filename := fmt.Sprintf("reconciliation_%s.csv", day.Format("20060102"))
	ref := "reports/" + filename
	if err := s.store.Save(ctx, ref, utils.WithUTF8BOM(buf.Bytes()), "text/csv"); err != nil {
		return nil, fmt.Errorf("报表存储失败: %w", err)
	}

	monitoring.RecordReportGenerated("anomaly")
	slog.Info("异常报表生成完成", "date", date, "anomalies", len(anomalies), "ref", ref)

	return &ReportResult{
		Ref:         ref,
		Filename:    filename,
		RecordCount: len(anomalies),
		GeneratedAt: now,
	}, nil
}

// GenerateInventoryReport 生成库存现状报表,取每个库位最新快照
func (s *ReportService) GenerateInventoryReport(ctx context.Context) (*ReportResult, error) {
	inventory, err := s.snapshots.GetCurrentInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("库存现状查询失败: %w", err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	header := []string{"bin_id", "item_ids", "item_count", "last_seen", "conf", "photo_ref"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("报表写入失败: %w", err)
	}
	for _, inv := range inventory {
		itemIDs, err := json.Marshal(inv.ItemIDs)
		if err != nil {
			return nil, fmt.Errorf("报表写入失败: %w", err)
		}
		row := []string{
			inv.BinID,
			string(itemIDs),
			strconv.Itoa(inv.ItemCount),
			inv.LastSeen.Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(inv.Conf, 'f', 2, 64),
			inv.PhotoRef,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("报表写入失败: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("报表写入失败: %w", err)
	}

	now := time.Now()
	filename := fmt.Sprintf("inventory_%s.csv", now.Format("20060102_150405"))
	ref := "reports/" + filename
	if err := s.store.Save(ctx, ref, utils.WithUTF8BOM(buf.Bytes()), "text/csv"); err != nil {
		return nil, fmt.Errorf("报表存储失败: %w", err)
	}

	monitoring.RecordReportGenerated("inventory")
	slog.Info("库存报表生成完成", "bins", len(inventory), "ref", ref)

	return &ReportResult{
		Ref:         ref,
		Filename:    filename,
		RecordCount: len(inventory),
		GeneratedAt: now,
	}, nil
}

// DownloadReport 按引用读取报表内容
func (s *ReportService) DownloadReport(ctx context.Context, ref string) ([]byte, string, error) {
	if len(ref) < len("reports/") || ref[:len("reports/")] != "reports/" {
		return nil, "", fmt.Errorf("%w: %s", ErrInvalidRef, ref)
	}
	data, err := s.store.Load(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	return data, "text/csv", nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
