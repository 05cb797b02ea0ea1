/*
 * @module service/reconcile/anomaly_service
 * @description 异常查询与处理服务,提供按日期/类型/级别/处理状态的过滤查询、汇总统计与人工处理标记
 * @architecture 分层架构 - 核心服务层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 异常集查询 -> 过滤排序分页 -> 报表/看板消费;人工标记只改 resolved 位
 * @rules 引擎之外不允许删除异常;排序稳定:级别权重优先,编号次之
 * @dependencies warehouse-service/service/models, gorm.io/gorm
 * @refs api/controllers/anomaly_controller.go, service/report
 */

package reconcile

import (
	"errors"
	"fmt"
	"warehouse-service/service/models"

	"gorm.io/gorm"
)

// ErrAnomalyNotFound 异常记录不存在
var ErrAnomalyNotFound = errors.New("异常记录不存在")

// severityOrder 级别排序表达式,high 在前
const severityOrder = "CASE severity WHEN 'high' THEN 0 WHEN 'med' THEN 1 ELSE 2 END ASC, id ASC"

// AnomalyService 异常查询与处理服务
type AnomalyService struct {
	db *gorm.DB
}

// NewAnomalyService 创建异常服务实例
func NewAnomalyService(db *gorm.DB) *AnomalyService {
	return &AnomalyService{db: db}
}

// AnomalyFilter 异常查询过滤条件
type AnomalyFilter struct {
	Date     string
	Type     string
	Severity string
	Resolved *bool
	Subject  string
}

// ListAnomalies 过滤查询异常集,按级别权重与编号稳定排序
func (s *AnomalyService) ListAnomalies(filter AnomalyFilter, page, size int) ([]models.Anomaly, int64, error) {
	query := s.db.Model(&models.Anomaly{})
	if filter.Date != "" {
		query = query.Where("date = ?", filter.Date)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeErr("统计异常", err)
	}

	var anomalies []models.Anomaly
	if err := query.Order(severityOrder).
		Offset((page - 1) * size).
		Limit(size).
		Find(&anomalies).Error; err != nil {
		return nil, 0, storeErr("查询异常", err)
	}
	return anomalies, total, nil
}

// AnomalySummary 指定日期的异常汇总
type AnomalySummary struct {
	Date       string         `json:"date"`
	Total      int64          `json:"total"`
	ByType     map[string]int `json:"by_type"`
	BySeverity map[string]int `json:"by_severity"`
	Resolved   int64          `json:"resolved"`
	Unresolved int64          `json:"unresolved"`
}

// GetAnomalySummary 按类型与级别汇总指定日期的异常分布
func (s *AnomalyService) GetAnomalySummary(date string) (*AnomalySummary, error) {
	summary := &AnomalySummary{
		Date:       date,
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
	}

	type groupCount struct {
		Key   string
		Count int
	}

	var typeCounts []groupCount
	if err := s.db.Model(&models.Anomaly{}).
		Select("type AS key, COUNT(*) AS count").
		Where("date = ?", date).
		Group("type").
		Scan(&typeCounts).Error; err != nil {
		return nil, storeErr("汇总异常类型", err)
	}
	for _, c := range typeCounts {
		summary.ByType[c.Key] = c.Count
		summary.Total += int64(c.Count)
	}

	var severityCounts []groupCount
	if err := s.db.Model(&models.Anomaly{}).
		Select("severity AS key, COUNT(*) AS count").
		Where("date = ?", date).
		Group("severity").
		Scan(&severityCounts).Error; err != nil {
		return nil, storeErr("汇总异常级别", err)
	}
	for _, c := range severityCounts {
		summary.BySeverity[c.Key] = c.Count
	}

	if err := s.db.Model(&models.Anomaly{}).
		Where("date = ? AND resolved = ?", date, true).
		Count(&summary.Resolved).Error; err != nil {
		return nil, storeErr("汇总异常处理状态", err)
	}
	summary.Unresolved = summary.Total - summary.Resolved

	return summary, nil
}

// ResolveAnomaly 人工标记异常处理状态,只翻转 resolved 位,不做其他修改
func (s *AnomalyService) ResolveAnomaly(id string, resolved bool) (*models.Anomaly, error) {
	var anomaly models.Anomaly
	if err := s.db.First(&anomaly, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnomalyNotFound
		}
		return nil, storeErr("读取异常", err)
	}

	if anomaly.Resolved == resolved {
		return &anomaly, nil
	}

	if err := s.db.Model(&models.Anomaly{}).Where("id = ?", id).
		Update("resolved", resolved).Error; err != nil {
		return nil, fmt.Errorf("更新异常处理状态失败: %w", err)
	}
	anomaly.Resolved = resolved
	return &anomaly, nil
}
