/*
 * @module service/reconcile/rules_test
 * @description 对账规则单元测试,验证五条规则的判定边界与置信度裁决
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 构造期望/观测快照 -> 规则评估 -> 产出断言
 * @rules 规则为纯函数,测试不依赖数据库;同一输入必须产出同一结果
 * @dependencies testing, stretchr/testify
 * @refs rules.go, models/reconcile_models.go
 */

package reconcile

import (
	"testing"
	"time"
	"warehouse-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试用的固定参照时刻与默认配置
var (
	testRefTime = time.Date(2025, 3, 2, 0, 0, 0, 0, time.Local)
	testConfig  = models.ReconcileConfig{
		StagingBins:     []string{"STG-01", "STG-02"},
		StaleHours:      24,
		ConfidenceFloor: 0.6,
		GraceDays:       0,
	}
)

func strPtr(s string) *string {
	return &s
}

// newExpectation 构造空期望快照
func newExpectation() *models.Expectation {
	return &models.Expectation{
		Date:         "2025-03-01",
		Items:        make(map[string]models.ExpectedItem),
		AllocatedIDs: make(map[string]bool),
		BinRoles:     make(map[string]string),
	}
}

// newObservation 构造空观测快照
func newObservation() *models.Observation {
	return &models.Observation{
		Date:       "2025-03-01",
		Bins:       make(map[string]models.BinObservation),
		LastSeen:   make(map[string]models.Sighting),
		LastKnown:  make(map[string]models.Sighting),
		RecentConf: make(map[string]float64),
		FirstSeen:  make(map[string]map[string]time.Time),
	}
}

func addExpectedItem(exp *models.Expectation, itemID, binID, status string) {
	exp.Items[itemID] = models.ExpectedItem{ItemID: itemID, SKU: "SKU-001", BinID: binID, Status: status}
	exp.AllocatedIDs[itemID] = true
}

// ===================== 规则集完整性 =====================

func TestRules_覆盖全部异常类型(t *testing.T) {
	rules := Rules()

	assert.Len(t, rules, 5)
	assert.Contains(t, rules, models.AnomalyTypeMissing)
	assert.Contains(t, rules, models.AnomalyTypeMisplaced)
	assert.Contains(t, rules, models.AnomalyTypeOrphan)
	assert.Contains(t, rules, models.AnomalyTypeStaleStaging)
	assert.Contains(t, rules, models.AnomalyTypeUnshippedOrder)
}

// ===================== 缺失规则 =====================

func TestCheckMissing_未观测到的分配物品(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusAllocated)
	obs := newObservation()

	findings := CheckMissing(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 1)
	assert.Equal(t, models.AnomalyTypeMissing, findings[0].Type)
	assert.Equal(t, models.SeverityMed, findings[0].Severity)
	assert.Equal(t, "ITEM-001", findings[0].Subject)
	require.NotNil(t, findings[0].Expected)
	assert.Equal(t, "A-01-01", *findings[0].Expected)
	assert.Nil(t, findings[0].Actual)
}

func TestCheckMissing_可信目击豁免(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusAllocated)
	obs := newObservation()
	obs.RecentConf["ITEM-001"] = 0.95

	findings := CheckMissing(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckMissing_低置信目击不足以豁免(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusAllocated)
	obs := newObservation()
	obs.RecentConf["ITEM-001"] = 0.4 // 低于下限 0.6

	findings := CheckMissing(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 1)
	assert.Equal(t, "ITEM-001", findings[0].Subject)
}

func TestCheckMissing_置信度恰好等于下限视为可信(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusAllocated)
	obs := newObservation()
	obs.RecentConf["ITEM-001"] = 0.6

	findings := CheckMissing(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckMissing_输出按物品编号排序(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-003", "A-01-03", models.AllocationStatusAllocated)
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusAllocated)
	addExpectedItem(exp, "ITEM-002", "A-01-02", models.AllocationStatusAllocated)
	obs := newObservation()

	findings := CheckMissing(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 3)
	assert.Equal(t, "ITEM-001", findings[0].Subject)
	assert.Equal(t, "ITEM-002", findings[1].Subject)
	assert.Equal(t, "ITEM-003", findings[2].Subject)
}

// ===================== 错放规则 =====================

func TestCheckMisplaced_实际库位与期望不符(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusAllocated)
	obs := newObservation()
	obs.LastSeen["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "B-02-02", Ts: testRefTime.Add(-2 * time.Hour), Conf: 0.9,
	}

	findings := CheckMisplaced(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 1)
	assert.Equal(t, models.AnomalyTypeMisplaced, findings[0].Type)
	assert.Equal(t, models.SeverityMed, findings[0].Severity)
	assert.Equal(t, "ITEM-001", findings[0].Subject)
	assert.Equal(t, strPtr("A-01-01"), findings[0].Expected)
	assert.Equal(t, strPtr("B-02-02"), findings[0].Actual)
}

func TestCheckMisplaced_库位一致不报告(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusAllocated)
	obs := newObservation()
	obs.LastSeen["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "A-01-01", Ts: testRefTime.Add(-2 * time.Hour), Conf: 0.9,
	}

	findings := CheckMisplaced(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckMisplaced_低置信目击视为未观测(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusAllocated)
	obs := newObservation()
	obs.LastSeen["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "B-02-02", Ts: testRefTime.Add(-2 * time.Hour), Conf: 0.3,
	}

	findings := CheckMisplaced(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckMisplaced_无库位上下文目击跳过(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusAllocated)
	obs := newObservation()
	obs.LastSeen["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "", Ts: testRefTime.Add(-2 * time.Hour), Conf: 0.9,
	}

	findings := CheckMisplaced(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

// ===================== 无主规则 =====================

func TestCheckOrphan_无分配记录的物品码(t *testing.T) {
	exp := newExpectation()
	obs := newObservation()
	obs.LastSeen["GHOST-001"] = models.Sighting{
		ItemID: "GHOST-001", BinID: "A-01-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.9,
	}

	findings := CheckOrphan(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 1)
	assert.Equal(t, models.AnomalyTypeOrphan, findings[0].Type)
	assert.Equal(t, models.SeverityLow, findings[0].Severity)
	assert.Equal(t, "GHOST-001", findings[0].Subject)
	assert.Equal(t, strPtr("A-01-01"), findings[0].Actual)
	assert.Nil(t, findings[0].Expected)
}

func TestCheckOrphan_已分配物品不报告(t *testing.T) {
	exp := newExpectation()
	// 分配记录存在但因脏数据未进入期望集合的物品,同样不算无主
	exp.AllocatedIDs["ITEM-001"] = true
	obs := newObservation()
	obs.LastSeen["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "A-01-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.9,
	}

	findings := CheckOrphan(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckOrphan_低置信目击仍然计入(t *testing.T) {
	exp := newExpectation()
	obs := newObservation()
	obs.LastSeen["GHOST-001"] = models.Sighting{
		ItemID: "GHOST-001", BinID: "A-01-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.2,
	}

	findings := CheckOrphan(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 1)
	assert.Equal(t, "GHOST-001", findings[0].Subject)
}

func TestCheckOrphan_输出按物品码排序(t *testing.T) {
	exp := newExpectation()
	obs := newObservation()
	for _, code := range []string{"GHOST-C", "GHOST-A", "GHOST-B"} {
		obs.LastSeen[code] = models.Sighting{ItemID: code, BinID: "A-01-01", Ts: testRefTime, Conf: 0.9}
	}

	findings := CheckOrphan(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 3)
	assert.Equal(t, "GHOST-A", findings[0].Subject)
	assert.Equal(t, "GHOST-B", findings[1].Subject)
	assert.Equal(t, "GHOST-C", findings[2].Subject)
}

// ===================== 暂存滞留规则 =====================

func TestCheckStaleStaging_超过阈值报告滞留(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusStaged)
	obs := newObservation()
	obs.FirstSeen["STG-01"] = map[string]time.Time{
		"ITEM-001": testRefTime.Add(-30 * time.Hour), // 超过 24 小时阈值
	}
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "STG-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.9,
	}

	findings := CheckStaleStaging(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 1)
	assert.Equal(t, models.AnomalyTypeStaleStaging, findings[0].Type)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "ITEM-001", findings[0].Subject)
	assert.Equal(t, strPtr("STG-01"), findings[0].Actual)
	assert.Equal(t, strPtr("A-01-01"), findings[0].Expected)
	assert.Contains(t, findings[0].Explanation, "30.0 小时")
}

func TestCheckStaleStaging_未超过阈值不报告(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusStaged)
	obs := newObservation()
	obs.FirstSeen["STG-01"] = map[string]time.Time{
		"ITEM-001": testRefTime.Add(-10 * time.Hour),
	}
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "STG-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.9,
	}

	findings := CheckStaleStaging(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckStaleStaging_恰好等于阈值不报告(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusStaged)
	obs := newObservation()
	obs.FirstSeen["STG-01"] = map[string]time.Time{
		"ITEM-001": testRefTime.Add(-24 * time.Hour),
	}
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "STG-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.9,
	}

	findings := CheckStaleStaging(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckStaleStaging_按库位覆盖阈值(t *testing.T) {
	cfg := testConfig
	cfg.BinStaleHours = map[string]float64{"STG-01": 4}

	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusStaged)
	obs := newObservation()
	obs.FirstSeen["STG-01"] = map[string]time.Time{
		"ITEM-001": testRefTime.Add(-6 * time.Hour), // 超过覆盖阈值 4 小时,未超过全局 24 小时
	}
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "STG-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.9,
	}

	findings := CheckStaleStaging(exp, obs, cfg, testRefTime)

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Explanation, "阈值 4 小时")
}

func TestCheckStaleStaging_已离开暂存库位不报告(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusStaged)
	obs := newObservation()
	obs.FirstSeen["STG-01"] = map[string]time.Time{
		"ITEM-001": testRefTime.Add(-30 * time.Hour),
	}
	// 最后已知位置已不在暂存库位
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "A-01-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.9,
	}

	findings := CheckStaleStaging(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckStaleStaging_收货与质检状态豁免(t *testing.T) {
	for _, status := range []string{models.AllocationStatusReceived, models.AllocationStatusQualityCheck} {
		exp := newExpectation()
		addExpectedItem(exp, "ITEM-001", "A-01-01", status)
		obs := newObservation()
		obs.FirstSeen["STG-01"] = map[string]time.Time{
			"ITEM-001": testRefTime.Add(-30 * time.Hour),
		}
		obs.LastKnown["ITEM-001"] = models.Sighting{
			ItemID: "ITEM-001", BinID: "STG-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.9,
		}

		findings := CheckStaleStaging(exp, obs, testConfig, testRefTime)

		assert.Empty(t, findings, "状态 %s 应豁免滞留判定", status)
	}
}

func TestCheckStaleStaging_低置信最后目击不报告(t *testing.T) {
	exp := newExpectation()
	addExpectedItem(exp, "ITEM-001", "A-01-01", models.AllocationStatusStaged)
	obs := newObservation()
	obs.FirstSeen["STG-01"] = map[string]time.Time{
		"ITEM-001": testRefTime.Add(-30 * time.Hour),
	}
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "STG-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.3,
	}

	findings := CheckStaleStaging(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckStaleStaging_无分配的滞留物品仍报告(t *testing.T) {
	exp := newExpectation()
	obs := newObservation()
	obs.FirstSeen["STG-01"] = map[string]time.Time{
		"GHOST-001": testRefTime.Add(-30 * time.Hour),
	}
	obs.LastKnown["GHOST-001"] = models.Sighting{
		ItemID: "GHOST-001", BinID: "STG-01", Ts: testRefTime.Add(-time.Hour), Conf: 0.9,
	}

	findings := CheckStaleStaging(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 1)
	assert.Equal(t, "GHOST-001", findings[0].Subject)
	assert.Nil(t, findings[0].Expected)
}

// ===================== 已发未走规则 =====================

func shippedOrderExp(shipDate time.Time, itemIDs ...string) *models.Expectation {
	exp := newExpectation()
	exp.ShippedOrders = []models.ShippedOrder{
		{OrderID: "ORD-001", ShipDate: shipDate, ItemIDs: itemIDs},
	}
	exp.BinRoles["A-01-01"] = models.BinRoleStorage
	exp.BinRoles["OUT-01"] = models.BinRoleOutbound
	return exp
}

func TestCheckUnshippedOrder_发货后仍在存储库位(t *testing.T) {
	shipDate := time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)
	exp := shippedOrderExp(shipDate, "ITEM-001", "ITEM-002")
	obs := newObservation()
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "A-01-01", Ts: shipDate.Add(5 * time.Hour), Conf: 0.9,
	}

	findings := CheckUnshippedOrder(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 1)
	assert.Equal(t, models.AnomalyTypeUnshippedOrder, findings[0].Type)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "ORD-001", findings[0].Subject)
	assert.Contains(t, findings[0].Explanation, "ITEM-001(A-01-01)")
}

func TestCheckUnshippedOrder_同一订单多物品合并为一条(t *testing.T) {
	shipDate := time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)
	exp := shippedOrderExp(shipDate, "ITEM-001", "ITEM-002")
	obs := newObservation()
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "A-01-01", Ts: shipDate.Add(5 * time.Hour), Conf: 0.9,
	}
	obs.LastKnown["ITEM-002"] = models.Sighting{
		ItemID: "ITEM-002", BinID: "A-01-01", Ts: shipDate.Add(6 * time.Hour), Conf: 0.9,
	}

	findings := CheckUnshippedOrder(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Explanation, "ITEM-001(A-01-01)、ITEM-002(A-01-01)")
}

func TestCheckUnshippedOrder_暂存与出库库位不算在库(t *testing.T) {
	shipDate := time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)
	exp := shippedOrderExp(shipDate, "ITEM-001", "ITEM-002")
	obs := newObservation()
	// 配置的暂存库位
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "STG-01", Ts: shipDate.Add(5 * time.Hour), Conf: 0.9,
	}
	// 出库角色库位
	obs.LastKnown["ITEM-002"] = models.Sighting{
		ItemID: "ITEM-002", BinID: "OUT-01", Ts: shipDate.Add(5 * time.Hour), Conf: 0.9,
	}

	findings := CheckUnshippedOrder(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckUnshippedOrder_发货日前的目击不算(t *testing.T) {
	shipDate := time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)
	exp := shippedOrderExp(shipDate, "ITEM-001")
	obs := newObservation()
	// 目击发生在发货日零点之前
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "A-01-01", Ts: shipDate.Add(-12 * time.Hour), Conf: 0.9,
	}

	findings := CheckUnshippedOrder(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

func TestCheckUnshippedOrder_发货当日早于发货时刻的目击计入(t *testing.T) {
	// 发货日零点起的目击即算,粒度为整日而非时刻
	shipDate := time.Date(2025, 3, 1, 15, 0, 0, 0, time.Local)
	exp := shippedOrderExp(shipDate, "ITEM-001")
	obs := newObservation()
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "A-01-01",
		Ts: time.Date(2025, 3, 1, 8, 0, 0, 0, time.Local), Conf: 0.9,
	}

	findings := CheckUnshippedOrder(exp, obs, testConfig, testRefTime)

	require.Len(t, findings, 1)
	assert.Equal(t, "ORD-001", findings[0].Subject)
}

func TestCheckUnshippedOrder_低置信目击不算(t *testing.T) {
	shipDate := time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)
	exp := shippedOrderExp(shipDate, "ITEM-001")
	obs := newObservation()
	obs.LastKnown["ITEM-001"] = models.Sighting{
		ItemID: "ITEM-001", BinID: "A-01-01", Ts: shipDate.Add(5 * time.Hour), Conf: 0.3,
	}

	findings := CheckUnshippedOrder(exp, obs, testConfig, testRefTime)

	assert.Empty(t, findings)
}

// ===================== 目击裁决比较器 =====================

func TestSightingSupersedes_时间新者胜(t *testing.T) {
	older := models.Sighting{ItemID: "ITEM-001", BinID: "A-01-01", Ts: testRefTime.Add(-2 * time.Hour), Conf: 1.0}
	newer := models.Sighting{ItemID: "ITEM-001", BinID: "B-02-02", Ts: testRefTime.Add(-1 * time.Hour), Conf: 0.5}

	assert.True(t, newer.Supersedes(older))
	assert.False(t, older.Supersedes(newer))
}

func TestSightingSupersedes_同时刻置信度高者胜(t *testing.T) {
	ts := testRefTime.Add(-time.Hour)
	lowConf := models.Sighting{ItemID: "ITEM-001", BinID: "A-01-01", Ts: ts, Conf: 0.5}
	highConf := models.Sighting{ItemID: "ITEM-001", BinID: "B-02-02", Ts: ts, Conf: 0.9}

	assert.True(t, highConf.Supersedes(lowConf))
	assert.False(t, lowConf.Supersedes(highConf))
	// 完全相同的目击互不裁决,保留先到者
	assert.False(t, lowConf.Supersedes(lowConf))
}

// ===================== 配置辅助方法 =====================

func TestReconcileConfig_StaleThresholdFor(t *testing.T) {
	cfg := models.ReconcileConfig{
		StaleHours:    24,
		BinStaleHours: map[string]float64{"STG-01": 4},
	}

	assert.Equal(t, 4.0, cfg.StaleThresholdFor("STG-01"))
	assert.Equal(t, 24.0, cfg.StaleThresholdFor("STG-02"))
}

func TestReconcileConfig_IsStagingBin(t *testing.T) {
	cfg := models.ReconcileConfig{StagingBins: []string{"STG-01", "STG-02"}}

	assert.True(t, cfg.IsStagingBin("STG-01"))
	assert.False(t, cfg.IsStagingBin("A-01-01"))
}
