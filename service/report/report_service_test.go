/*
 * @module service/report/report_service_test
 * @description 报表服务单元测试,验证异常报表、库存报表的内容组装与下载
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 造数 -> 生成报表 -> 读取存储内容断言
 * @rules 异常报表按级别排序;导出文件带 BOM 保证 Excel 兼容
 * @dependencies testing, stretchr/testify, warehouse-service/testutil
 * @refs report_service.go
 */

package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
	"warehouse-service/service/models"
	"warehouse-service/service/snapshot"
	"warehouse-service/testutil"

	"github.com/stretchr/testify/suite"
)

func strPtr(s string) *string { return &s }

type ReportServiceTestSuite struct {
	suite.Suite
	testDB  *testutil.TestDB
	factory *testutil.TestDataFactory
	store   *LocalStore
	service *ReportService
	ctx     context.Context
}

func (suite *ReportServiceTestSuite) SetupSuite() {
	suite.testDB = testutil.NewTestDB()
	suite.factory = testutil.NewTestDataFactory(suite.testDB.DB)

	store, err := NewLocalStore(suite.T().TempDir())
	suite.Require().NoError(err)
	suite.store = store

	snapshots := snapshot.NewSnapshotService(suite.testDB.DB)
	suite.service = NewReportService(suite.testDB.DB, store, snapshots)
	suite.ctx = context.Background()
}

func (suite *ReportServiceTestSuite) TearDownSuite() {
	suite.testDB.Close()
}

func (suite *ReportServiceTestSuite) SetupTest() {
	suite.testDB.CleanDB()
}

// ===================== 异常报表 =====================

func (suite *ReportServiceTestSuite) TestGenerateAnomalyReport_内容与排序() {
	detectedAt := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	suite.Require().NoError(suite.testDB.DB.Create(&models.Anomaly{
		ID: "2025-03-01-0001", Date: "2025-03-01", Type: models.AnomalyTypeMissing,
		Severity: models.SeverityMed, Subject: "ITEM-002",
		Expected: strPtr("A-01-01"), DetectedAt: detectedAt,
		Explanation: "分配到 A-01-01 但当日未被任何快照观测到",
	}).Error)
	suite.Require().NoError(suite.testDB.DB.Create(&models.Anomaly{
		ID: "2025-03-01-0002", Date: "2025-03-01", Type: models.AnomalyTypeStaleStaging,
		Severity: models.SeverityHigh, Subject: "ITEM-001",
		Actual: strPtr("STG-01"), DetectedAt: detectedAt,
		Explanation: "暂存滞留",
	}).Error)
	// 其他日期的异常不进入报表
	suite.Require().NoError(suite.testDB.DB.Create(&models.Anomaly{
		ID: "2025-03-02-0001", Date: "2025-03-02", Type: models.AnomalyTypeOrphan,
		Severity: models.SeverityLow, Subject: "GHOST-001", DetectedAt: detectedAt,
	}).Error)
	suite.factory.CreateSnapshot("A-01-01", []string{"ITEM-001"},
		testutil.WithSnapshotTs(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))

	result, err := suite.service.GenerateAnomalyReport(suite.ctx, "2025-03-01")

	suite.Require().NoError(err)
	suite.Equal(2, result.RecordCount)
	suite.Equal("reports/reconciliation_20250301.csv", result.Ref)
	suite.Equal("reconciliation_20250301.csv", result.Filename)

	data, err := suite.store.Load(suite.ctx, result.Ref)
	suite.Require().NoError(err)
	suite.True(bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))

	content := string(data)
	suite.Contains(content, "对账报表 2025-03-01")
	suite.Contains(content, "异常总数,2")
	suite.Contains(content, "当日快照数,1")
	suite.Contains(content, "id,date,type,severity,subject,expected,actual,detected_at,explanation,resolved")
	suite.NotContains(content, "2025-03-02-0001")

	// high 级别排在 med 前
	highRow := strings.Index(content, "2025-03-01-0002")
	medRow := strings.Index(content, "2025-03-01-0001")
	suite.Greater(highRow, 0)
	suite.Greater(medRow, 0)
	suite.Less(highRow, medRow)
}

func (suite *ReportServiceTestSuite) TestGenerateAnomalyReport_无异常仍出报表() {
	result, err := suite.service.GenerateAnomalyReport(suite.ctx, "2025-03-01")

	suite.Require().NoError(err)
	suite.Equal(0, result.RecordCount)

	data, err := suite.store.Load(suite.ctx, result.Ref)
	suite.Require().NoError(err)
	suite.Contains(string(data), "异常总数,0")
}

func (suite *ReportServiceTestSuite) TestGenerateAnomalyReport_日期非法() {
	_, err := suite.service.GenerateAnomalyReport(suite.ctx, "2025/03/01")

	suite.Error(err)
	suite.Contains(err.Error(), "日期格式非法")
}

// ===================== 库存报表 =====================

func (suite *ReportServiceTestSuite) TestGenerateInventoryReport_每库位最新快照() {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	suite.factory.CreateSnapshot("A-01-01", []string{"ITEM-001"},
		testutil.WithSnapshotTs(base))
	suite.factory.CreateSnapshot("A-01-01", []string{"ITEM-002", "ITEM-003"},
		testutil.WithSnapshotTs(base.Add(time.Hour)), testutil.WithSnapshotConf(0.85))
	suite.factory.CreateSnapshot("B-02-02", []string{"ITEM-004"},
		testutil.WithSnapshotTs(base))

	result, err := suite.service.GenerateInventoryReport(suite.ctx)

	suite.Require().NoError(err)
	suite.Equal(2, result.RecordCount)
	suite.True(strings.HasPrefix(result.Ref, "reports/inventory_"))

	data, err := suite.store.Load(suite.ctx, result.Ref)
	suite.Require().NoError(err)

	content := string(data)
	suite.Contains(content, "bin_id,item_ids,item_count,last_seen,conf,photo_ref")
	suite.Contains(content, "A-01-01")
	suite.Contains(content, "ITEM-002")
	suite.Contains(content, "ITEM-003")
	suite.Contains(content, "0.85")
	suite.Contains(content, "B-02-02")
	// 被新快照覆盖的旧观测不出现
	suite.NotContains(content, "ITEM-001")
}

// ===================== 下载 =====================

func (suite *ReportServiceTestSuite) TestDownloadReport() {
	result, err := suite.service.GenerateAnomalyReport(suite.ctx, "2025-03-01")
	suite.Require().NoError(err)

	data, contentType, err := suite.service.DownloadReport(suite.ctx, result.Ref)
	suite.Require().NoError(err)
	suite.Equal("text/csv", contentType)
	suite.NotEmpty(data)

	_, _, err = suite.service.DownloadReport(suite.ctx, "photos/x.bin")
	suite.ErrorIs(err, ErrInvalidRef)

	_, _, err = suite.service.DownloadReport(suite.ctx, "reports/not-exist.csv")
	suite.Error(err)
}

func TestReportServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReportServiceTestSuite))
}
