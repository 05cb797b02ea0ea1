/*
 * @module service/reconcile/rules
 * @description 对账规则集,五条相互独立的纯函数规则:缺失、错放、无主、暂存滞留、已发未走
 * @architecture 分层架构 - 核心服务层
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 期望/观测快照就绪 -> 各规则独立评估 -> 产出异常草稿
 * @rules 每条规则只读两个不可变快照,互不依赖,评估顺序不影响结果;
 *        置信度低于下限的目击对 missing/misplaced 视为未观测,对 orphan 仍然计入
 * @dependencies warehouse-service/service/models
 * @refs service/reconcile/aggregator.go
 */

package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"warehouse-service/service/models"
)

// RuleFunc 对账规则签名:纯函数,只读期望与观测快照,产出异常草稿
// refTime 为评估参照时刻,滞留时长与"发货后仍被观测"均以此为基准
type RuleFunc func(exp *models.Expectation, obs *models.Observation, cfg models.ReconcileConfig, refTime time.Time) []models.RuleFinding

// Rules 返回全部规则,键为规则名,供引擎并发调度与单元测试按名取用
func Rules() map[string]RuleFunc {
	return map[string]RuleFunc{
		models.AnomalyTypeMissing:        CheckMissing,
		models.AnomalyTypeMisplaced:      CheckMisplaced,
		models.AnomalyTypeOrphan:         CheckOrphan,
		models.AnomalyTypeStaleStaging:   CheckStaleStaging,
		models.AnomalyTypeUnshippedOrder: CheckUnshippedOrder,
	}
}

// CheckMissing 缺失规则:有有效分配但在当日及宽限窗口内无可信目击的物品
// 低于置信度下限的目击不足以推翻缺失判定
func CheckMissing(exp *models.Expectation, obs *models.Observation, cfg models.ReconcileConfig, refTime time.Time) []models.RuleFinding {
	var findings []models.RuleFinding

	for _, itemID := range sortedItemIDs(exp.Items) {
		expected := exp.Items[itemID]
		if obs.RecentConf[itemID] >= cfg.ConfidenceFloor {
			continue
		}

		binID := expected.BinID
		findings = append(findings, models.RuleFinding{
			Type:     models.AnomalyTypeMissing,
			Severity: models.SeverityMed,
			Subject:  itemID,
			Expected: &binID,
			Explanation: fmt.Sprintf("物品 %s 分配在库位 %s,但当日未被任何快照观测到",
				itemID, expected.BinID),
		})
	}
	return findings
}

// CheckMisplaced 错放规则:当日被观测到的物品,其所在库位与分配期望库位不一致
// 多处目击冲突时由 Sighting.Supersedes 比较器裁决,低置信度目击视为未观测
func CheckMisplaced(exp *models.Expectation, obs *models.Observation, cfg models.ReconcileConfig, refTime time.Time) []models.RuleFinding {
	var findings []models.RuleFinding

	for _, itemID := range sortedItemIDs(exp.Items) {
		expected := exp.Items[itemID]
		sighting, ok := obs.LastSeen[itemID]
		if !ok || sighting.Conf < cfg.ConfidenceFloor {
			continue
		}
		// 无库位上下文的目击只证明物品存在,无法支撑错放判断
		if sighting.BinID == "" {
			continue
		}
		if sighting.BinID == expected.BinID {
			continue
		}

		expBin := expected.BinID
		actBin := sighting.BinID
		findings = append(findings, models.RuleFinding{
			Type:     models.AnomalyTypeMisplaced,
			Severity: models.SeverityMed,
			Subject:  itemID,
			Expected: &expBin,
			Actual:   &actBin,
			Explanation: fmt.Sprintf("物品 %s 期望在库位 %s,实际观测在库位 %s",
				itemID, expected.BinID, sighting.BinID),
		})
	}
	return findings
}

// CheckOrphan 无主规则:当日被观测到但系统中不存在任何分配记录的物品码
// 低置信度目击同样计入,低可信的游离识别仍值得标记
func CheckOrphan(exp *models.Expectation, obs *models.Observation, cfg models.ReconcileConfig, refTime time.Time) []models.RuleFinding {
	var findings []models.RuleFinding

	codes := make([]string, 0, len(obs.LastSeen))
	for code := range obs.LastSeen {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if exp.AllocatedIDs[code] {
			continue
		}
		sighting := obs.LastSeen[code]

		finding := models.RuleFinding{
			Type:     models.AnomalyTypeOrphan,
			Severity: models.SeverityLow,
			Subject:  code,
			Explanation: fmt.Sprintf("物品码 %s 被观测到但系统中无任何分配记录",
				code),
		}
		if sighting.BinID != "" {
			actBin := sighting.BinID
			finding.Actual = &actBin
			finding.Explanation = fmt.Sprintf("物品码 %s 在库位 %s 被观测到,但系统中无任何分配记录",
				code, sighting.BinID)
		}
		findings = append(findings, finding)
	}
	return findings
}

// CheckStaleStaging 暂存滞留规则:物品最后已知位置为配置的暂存库位,
// 且自首次可信目击起的滞留时长超过该库位阈值,且分配状态未进入后续处理环节
func CheckStaleStaging(exp *models.Expectation, obs *models.Observation, cfg models.ReconcileConfig, refTime time.Time) []models.RuleFinding {
	var findings []models.RuleFinding

	stagingBins := append([]string(nil), cfg.StagingBins...)
	sort.Strings(stagingBins)

	for _, stagingBin := range stagingBins {
		firstSeen := obs.FirstSeen[stagingBin]
		if len(firstSeen) == 0 {
			continue
		}
		threshold := cfg.StaleThresholdFor(stagingBin)

		itemIDs := make([]string, 0, len(firstSeen))
		for id := range firstSeen {
			itemIDs = append(itemIDs, id)
		}
		sort.Strings(itemIDs)

		for _, itemID := range itemIDs {
			lastKnown, ok := obs.LastKnown[itemID]
			if !ok || lastKnown.BinID != stagingBin || lastKnown.Conf < cfg.ConfidenceFloor {
				continue
			}
			// 分配已进入收货或质检环节的物品不再按暂存滞留计
			if expected, ok := exp.Items[itemID]; ok {
				if expected.Status == models.AllocationStatusReceived ||
					expected.Status == models.AllocationStatusQualityCheck {
					continue
				}
			}

			elapsed := refTime.Sub(firstSeen[itemID]).Hours()
			if elapsed <= threshold {
				continue
			}

			actBin := stagingBin
			finding := models.RuleFinding{
				Type:     models.AnomalyTypeStaleStaging,
				Severity: models.SeverityHigh,
				Subject:  itemID,
				Actual:   &actBin,
				Explanation: fmt.Sprintf("物品 %s 在暂存库位 %s 滞留 %.1f 小时(阈值 %.0f 小时)",
					itemID, stagingBin, elapsed, threshold),
			}
			if expected, ok := exp.Items[itemID]; ok {
				expBin := expected.BinID
				finding.Expected = &expBin
			}
			findings = append(findings, finding)
		}
	}
	return findings
}

// CheckUnshippedOrder 已发未走规则:订单已标记发货,但其覆盖的物品仍在
// 非暂存、非出库库位被可信观测到,且目击时间不早于发货日
func CheckUnshippedOrder(exp *models.Expectation, obs *models.Observation, cfg models.ReconcileConfig, refTime time.Time) []models.RuleFinding {
	var findings []models.RuleFinding

	for _, order := range exp.ShippedOrders {
		shipDayStart := time.Date(order.ShipDate.Year(), order.ShipDate.Month(), order.ShipDate.Day(),
			0, 0, 0, 0, order.ShipDate.Location())

		var offending []string
		for _, itemID := range order.ItemIDs {
			sighting, ok := obs.LastKnown[itemID]
			if !ok || sighting.Conf < cfg.ConfidenceFloor || sighting.BinID == "" {
				continue
			}
			if sighting.Ts.Before(shipDayStart) {
				continue
			}
			// 暂存与出库库位属于发货流转路径,不作为"仍在库"证据
			if cfg.IsStagingBin(sighting.BinID) {
				continue
			}
			role := exp.BinRoles[sighting.BinID]
			if role == models.BinRoleStaging || role == models.BinRoleOutbound {
				continue
			}
			offending = append(offending, fmt.Sprintf("%s(%s)", itemID, sighting.BinID))
		}

		if len(offending) == 0 {
			continue
		}
		sort.Strings(offending)

		findings = append(findings, models.RuleFinding{
			Type:     models.AnomalyTypeUnshippedOrder,
			Severity: models.SeverityHigh,
			Subject:  order.OrderID,
			Explanation: fmt.Sprintf("订单 %s 已标记发货,但物品 %s 仍被观测在库",
				order.OrderID, joinCodes(offending)),
		})
	}
	return findings
}

// sortedItemIDs 返回排序后的期望物品编号,保证规则输出顺序可复现
func sortedItemIDs(items map[string]models.ExpectedItem) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// joinCodes 拼接物品码列表用于异常说明
func joinCodes(codes []string) string {
	return strings.Join(codes, "、")
}
