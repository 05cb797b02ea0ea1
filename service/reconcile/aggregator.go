/*
 * @module service/reconcile/aggregator
 * @description 异常聚合器,对规则产出去重、排序、编号,并以事务原子替换当日异常集
 * @architecture 分层架构 - 核心服务层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 规则产出汇集 -> 去重排序 -> 确定性编号 -> 删除旧集+写入新集(单事务)
 * @rules 替换失败整体回滚,之前的异常集保持完整可见;编号只依赖排序结果,与规则评估顺序无关
 * @dependencies warehouse-service/service/models, gorm.io/gorm
 * @refs service/reconcile/engine.go
 */

package reconcile

import (
	"fmt"
	"sort"
	"time"
	"warehouse-service/service/models"

	"gorm.io/gorm"
)

// BuildAnomalies 将规则产出的异常草稿去重、排序并赋予确定性编号
// 去重键为 type+subject+expected+actual;编号按 (type, subject, expected, actual) 排序后生成,
// 同一数据两次运行产生同一批编号
func BuildAnomalies(date, runID string, detectedAt time.Time, findings []models.RuleFinding) []models.Anomaly {
	seen := make(map[string]bool)
	deduped := make([]models.RuleFinding, 0, len(findings))
	for _, f := range findings {
		key := dedupeKey(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, f)
	}

	sort.Slice(deduped, func(i, j int) bool {
		a, b := deduped[i], deduped[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if deref(a.Expected) != deref(b.Expected) {
			return deref(a.Expected) < deref(b.Expected)
		}
		return deref(a.Actual) < deref(b.Actual)
	})

	anomalies := make([]models.Anomaly, 0, len(deduped))
	for i, f := range deduped {
		anomalies = append(anomalies, models.Anomaly{
			ID:          fmt.Sprintf("%s-%04d", date, i+1),
			Date:        date,
			Type:        f.Type,
			Severity:    f.Severity,
			Subject:     f.Subject,
			Expected:    f.Expected,
			Actual:      f.Actual,
			DetectedAt:  detectedAt,
			Explanation: f.Explanation,
			Resolved:    false,
			RunID:       runID,
		})
	}
	return anomalies
}

// ReplaceAnomalies 以单事务原子替换指定日期的异常集
// 删除与写入要么全部生效,要么全部回滚,不会留下部分可见的中间状态
func ReplaceAnomalies(db *gorm.DB, date string, anomalies []models.Anomaly) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("date = ?", date).Delete(&models.Anomaly{}).Error; err != nil {
			return err
		}
		if len(anomalies) == 0 {
			return nil
		}
		return tx.CreateInBatches(anomalies, 200).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAggregatorWrite, err)
	}
	return nil
}

// Summarize 汇总一次运行的异常分布与处理规模
func Summarize(date string, anomalies []models.Anomaly, exp *models.Expectation, obs *models.Observation) models.RunSummary {
	summary := models.RunSummary{
		Date:           date,
		TotalAnomalies: len(anomalies),
		ByType:         make(map[string]int),
		BySeverity:     make(map[string]int),
	}
	for _, a := range anomalies {
		summary.ByType[a.Type]++
		summary.BySeverity[a.Severity]++
	}
	if exp != nil {
		summary.OrdersChecked = len(exp.ShippedOrders)
		summary.Skipped += exp.Skipped
	}
	if obs != nil {
		summary.SnapshotsProcessed = obs.Snapshots
		summary.BinsScanned = len(obs.Bins)
		summary.Skipped += obs.Skipped
	}
	return summary
}

// dedupeKey 生成去重键,空指针与空串区分开避免误合并
func dedupeKey(f models.RuleFinding) string {
	return f.Type + "\x00" + f.Subject + "\x00" + derefMark(f.Expected) + "\x00" + derefMark(f.Actual)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefMark(s *string) string {
	if s == nil {
		return "\x01nil"
	}
	return *s
}
