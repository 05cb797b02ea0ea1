/*
 * @module service/reconcile/aggregator_test
 * @description 异常聚合器单元测试,验证去重、确定性编号与原子替换
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 构造规则产出 -> 聚合 -> 编号与持久化断言
 * @rules 同一输入两次聚合必须产出同一批编号;替换失败不留中间状态
 * @dependencies testing, stretchr/testify, warehouse-service/testutil
 * @refs aggregator.go
 */

package reconcile

import (
	"testing"
	"time"
	"warehouse-service/service/models"
	"warehouse-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDetectedAt = time.Date(2025, 3, 2, 0, 0, 0, 0, time.Local)

// ===================== 去重与编号 =====================

func TestBuildAnomalies_确定性编号(t *testing.T) {
	findings := []models.RuleFinding{
		{Type: models.AnomalyTypeOrphan, Severity: models.SeverityLow, Subject: "GHOST-001"},
		{Type: models.AnomalyTypeMissing, Severity: models.SeverityMed, Subject: "ITEM-002", Expected: strPtr("A-01-02")},
		{Type: models.AnomalyTypeMissing, Severity: models.SeverityMed, Subject: "ITEM-001", Expected: strPtr("A-01-01")},
	}

	anomalies := BuildAnomalies("2025-03-01", "run-1", testDetectedAt, findings)

	require.Len(t, anomalies, 3)
	// 按 (type, subject) 排序后编号:missing 在 orphan 之前
	assert.Equal(t, "2025-03-01-0001", anomalies[0].ID)
	assert.Equal(t, "ITEM-001", anomalies[0].Subject)
	assert.Equal(t, "2025-03-01-0002", anomalies[1].ID)
	assert.Equal(t, "ITEM-002", anomalies[1].Subject)
	assert.Equal(t, "2025-03-01-0003", anomalies[2].ID)
	assert.Equal(t, "GHOST-001", anomalies[2].Subject)

	for _, a := range anomalies {
		assert.Equal(t, "2025-03-01", a.Date)
		assert.Equal(t, "run-1", a.RunID)
		assert.Equal(t, testDetectedAt, a.DetectedAt)
		assert.False(t, a.Resolved)
	}
}

func TestBuildAnomalies_编号与输入顺序无关(t *testing.T) {
	forward := []models.RuleFinding{
		{Type: models.AnomalyTypeMissing, Severity: models.SeverityMed, Subject: "ITEM-001", Expected: strPtr("A-01-01")},
		{Type: models.AnomalyTypeMisplaced, Severity: models.SeverityMed, Subject: "ITEM-002", Expected: strPtr("A-01-02"), Actual: strPtr("B-02-02")},
		{Type: models.AnomalyTypeOrphan, Severity: models.SeverityLow, Subject: "GHOST-001"},
	}
	reversed := []models.RuleFinding{forward[2], forward[1], forward[0]}

	first := BuildAnomalies("2025-03-01", "run-1", testDetectedAt, forward)
	second := BuildAnomalies("2025-03-01", "run-2", testDetectedAt, reversed)

	require.Len(t, first, 3)
	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Subject, second[i].Subject)
		assert.Equal(t, first[i].Type, second[i].Type)
	}
}

func TestBuildAnomalies_重复产出去重(t *testing.T) {
	dup := models.RuleFinding{
		Type: models.AnomalyTypeMissing, Severity: models.SeverityMed,
		Subject: "ITEM-001", Expected: strPtr("A-01-01"),
	}

	anomalies := BuildAnomalies("2025-03-01", "run-1", testDetectedAt, []models.RuleFinding{dup, dup, dup})

	require.Len(t, anomalies, 1)
	assert.Equal(t, "2025-03-01-0001", anomalies[0].ID)
}

func TestBuildAnomalies_空指针与空串不合并(t *testing.T) {
	findings := []models.RuleFinding{
		{Type: models.AnomalyTypeOrphan, Severity: models.SeverityLow, Subject: "GHOST-001", Actual: nil},
		{Type: models.AnomalyTypeOrphan, Severity: models.SeverityLow, Subject: "GHOST-001", Actual: strPtr("")},
	}

	anomalies := BuildAnomalies("2025-03-01", "run-1", testDetectedAt, findings)

	assert.Len(t, anomalies, 2)
}

func TestBuildAnomalies_空输入产出空集(t *testing.T) {
	anomalies := BuildAnomalies("2025-03-01", "run-1", testDetectedAt, nil)

	assert.Empty(t, anomalies)
}

// ===================== 原子替换 =====================

func TestReplaceAnomalies_替换当日异常集(t *testing.T) {
	testDB := testutil.NewTestDB()
	defer testDB.Close()
	factory := testutil.NewTestDataFactory(testDB.DB)

	// 旧异常集:两条当日,一条其他日期
	factory.CreateAnomaly("2025-03-01")
	factory.CreateAnomaly("2025-03-01")
	other := factory.CreateAnomaly("2025-02-28")

	fresh := BuildAnomalies("2025-03-01", "run-2", testDetectedAt, []models.RuleFinding{
		{Type: models.AnomalyTypeMissing, Severity: models.SeverityMed, Subject: "ITEM-009", Expected: strPtr("A-01-09")},
	})
	require.NoError(t, ReplaceAnomalies(testDB.DB, "2025-03-01", fresh))

	var todays []models.Anomaly
	require.NoError(t, testDB.DB.Where("date = ?", "2025-03-01").Find(&todays).Error)
	require.Len(t, todays, 1)
	assert.Equal(t, "2025-03-01-0001", todays[0].ID)
	assert.Equal(t, "ITEM-009", todays[0].Subject)

	// 其他日期的异常集不受影响
	var kept models.Anomaly
	require.NoError(t, testDB.DB.First(&kept, "id = ?", other.ID).Error)
	assert.Equal(t, "2025-02-28", kept.Date)
}

func TestReplaceAnomalies_空集清空当日(t *testing.T) {
	testDB := testutil.NewTestDB()
	defer testDB.Close()
	factory := testutil.NewTestDataFactory(testDB.DB)

	factory.CreateAnomaly("2025-03-01")
	factory.CreateAnomaly("2025-03-01")

	require.NoError(t, ReplaceAnomalies(testDB.DB, "2025-03-01", nil))

	var count int64
	testDB.DB.Model(&models.Anomaly{}).Where("date = ?", "2025-03-01").Count(&count)
	assert.Zero(t, count)
}

// ===================== 运行汇总 =====================

func TestSummarize_统计分布与处理规模(t *testing.T) {
	anomalies := []models.Anomaly{
		{Type: models.AnomalyTypeMissing, Severity: models.SeverityMed},
		{Type: models.AnomalyTypeMissing, Severity: models.SeverityMed},
		{Type: models.AnomalyTypeStaleStaging, Severity: models.SeverityHigh},
	}
	exp := newExpectation()
	exp.ShippedOrders = []models.ShippedOrder{{OrderID: "ORD-001"}, {OrderID: "ORD-002"}}
	exp.Skipped = 2
	obs := newObservation()
	obs.Snapshots = 7
	obs.Skipped = 1
	obs.Bins["A-01-01"] = models.BinObservation{BinID: "A-01-01"}
	obs.Bins["STG-01"] = models.BinObservation{BinID: "STG-01"}

	summary := Summarize("2025-03-01", anomalies, exp, obs)

	assert.Equal(t, "2025-03-01", summary.Date)
	assert.Equal(t, 3, summary.TotalAnomalies)
	assert.Equal(t, 2, summary.ByType[models.AnomalyTypeMissing])
	assert.Equal(t, 1, summary.ByType[models.AnomalyTypeStaleStaging])
	assert.Equal(t, 2, summary.BySeverity[models.SeverityMed])
	assert.Equal(t, 1, summary.BySeverity[models.SeverityHigh])
	assert.Equal(t, 2, summary.OrdersChecked)
	assert.Equal(t, 7, summary.SnapshotsProcessed)
	assert.Equal(t, 2, summary.BinsScanned)
	assert.Equal(t, 3, summary.Skipped)
}

func TestSummarize_快照缺席时容忍空指针(t *testing.T) {
	summary := Summarize("2025-03-01", nil, nil, nil)

	assert.Zero(t, summary.TotalAnomalies)
	assert.Zero(t, summary.Skipped)
	assert.Empty(t, summary.ByType)
}
