/*
 * @module service/reconcile/engine_test
 * @description 对账引擎单元测试,验证提交校验、同日期互斥、完整运行与取消语义
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 构造业务数据 -> 提交运行 -> 等待回调 -> 运行记录与异常集断言
 * @rules 同一数据两次运行产出同一批异常编号;历史日期运行可复现
 * @dependencies testing, stretchr/testify, warehouse-service/testutil
 * @refs engine.go
 */

package reconcile

import (
	"testing"
	"time"
	"warehouse-service/service/models"
	"warehouse-service/testutil"

	"github.com/stretchr/testify/suite"
)

// 引擎测试冻结的当前时刻,目标日期 2025-03-01 为历史日期
var engineTestNow = time.Date(2025, 3, 5, 12, 0, 0, 0, time.Local)

type EngineTestSuite struct {
	suite.Suite
	testDB  *testutil.TestDB
	factory *testutil.TestDataFactory
	engine  *ReconcileEngine
}

func (suite *EngineTestSuite) SetupSuite() {
	suite.testDB = testutil.NewTestDB()
	suite.factory = testutil.NewTestDataFactory(suite.testDB.DB)
}

func (suite *EngineTestSuite) TearDownSuite() {
	suite.testDB.Close()
}

func (suite *EngineTestSuite) SetupTest() {
	suite.testDB.CleanDB()
	suite.engine = NewReconcileEngine(suite.testDB.DB, func() models.ReconcileConfig {
		return testConfig
	}, 2)
	suite.engine.nowFn = func() time.Time { return engineTestNow }
}

func (suite *EngineTestSuite) TearDownTest() {
	suite.engine.Stop()
}

// submitAndWait 提交运行并等待回调收尾
func (suite *EngineTestSuite) submitAndWait(date string) *models.ReconcileRun {
	done := make(chan *models.ReconcileRun, 1)
	run, err := suite.engine.SubmitRun(&models.ReconcileRequest{
		Date:        date,
		TriggeredBy: "manual",
		Callback:    func(r *models.ReconcileRun) { done <- r },
	})
	suite.Require().NoError(err)
	suite.Require().NotEmpty(run.ID)

	select {
	case finished := <-done:
		return finished
	case <-time.After(10 * time.Second):
		suite.FailNow("对账运行未在期望时间内完成")
		return nil
	}
}

// waitForIdle 等待引擎清理完在途索引,之后同日期可再次提交
func (suite *EngineTestSuite) waitForIdle() {
	suite.Require().Eventually(func() bool {
		suite.engine.runMutex.RLock()
		defer suite.engine.runMutex.RUnlock()
		return len(suite.engine.dateIndex) == 0 && len(suite.engine.runningRuns) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

// seedScenario 构造产出三类异常的业务数据:
// ITEM-001 分配而未观测(missing),ITEM-002 在错误库位(misplaced),GHOST-001 无分配(orphan)
func (suite *EngineTestSuite) seedScenario() {
	suite.factory.CreateBin("A-01-01")
	suite.factory.CreateBin("B-02-02")
	suite.factory.CreateAllocation("ITEM-001", "A-01-01")
	suite.factory.CreateAllocation("ITEM-002", "A-01-01")
	suite.factory.CreateSnapshot("B-02-02", []string{"ITEM-002", "GHOST-001"},
		testutil.WithSnapshotTs(time.Date(2025, 3, 1, 10, 0, 0, 0, time.Local)),
		testutil.WithSnapshotConf(0.9))
}

func (suite *EngineTestSuite) TestSubmitRun_日期格式非法() {
	_, err := suite.engine.SubmitRun(&models.ReconcileRequest{Date: "03/01/2025"})

	suite.ErrorIs(err, ErrInvalidDate)

	var count int64
	suite.testDB.DB.Model(&models.ReconcileRun{}).Count(&count)
	suite.Zero(count)
}

func (suite *EngineTestSuite) TestSubmitRun_未来日期拒绝() {
	_, err := suite.engine.SubmitRun(&models.ReconcileRequest{Date: "2025-03-06"})

	suite.ErrorIs(err, ErrInvalidDate)
}

func (suite *EngineTestSuite) TestSubmitRun_当天日期允许() {
	run := suite.submitAndWait("2025-03-05")

	suite.Equal(models.RunStatusDone, run.Status)
}

func (suite *EngineTestSuite) TestSubmitRun_同日期在途互斥() {
	inFlight := suite.factory.CreateReconcileRun("2025-03-01", testutil.WithRunStatus(models.RunStatusRunning))
	suite.engine.runMutex.Lock()
	suite.engine.dateIndex["2025-03-01"] = inFlight.ID
	suite.engine.runMutex.Unlock()

	run, err := suite.engine.SubmitRun(&models.ReconcileRequest{Date: "2025-03-01"})

	suite.Require().Error(err)
	suite.ErrorIs(err, ErrRunInFlight)

	var ife *InFlightError
	suite.Require().ErrorAs(err, &ife)
	suite.Equal("2025-03-01", ife.Date)
	suite.Equal(inFlight.ID, ife.RunID)

	// 拒绝时返回在途运行记录供调用方跟踪
	suite.Require().NotNil(run)
	suite.Equal(inFlight.ID, run.ID)

	suite.engine.runMutex.Lock()
	delete(suite.engine.dateIndex, "2025-03-01")
	suite.engine.runMutex.Unlock()
}

func (suite *EngineTestSuite) TestSubmitRun_完整运行产出确定性异常集() {
	suite.seedScenario()

	finished := suite.submitAndWait("2025-03-01")

	suite.Equal(models.RunStatusDone, finished.Status)
	suite.Require().NotNil(finished.StartedAt)
	suite.Require().NotNil(finished.FinishedAt)
	suite.EqualValues(3, finished.Summary["total_anomalies"])

	var anomalies []models.Anomaly
	suite.Require().NoError(
		suite.testDB.DB.Where("date = ?", "2025-03-01").Order("id ASC").Find(&anomalies).Error)
	suite.Require().Len(anomalies, 3)

	// 按 (type, subject) 排序后编号:misplaced < missing < orphan
	suite.Equal("2025-03-01-0001", anomalies[0].ID)
	suite.Equal(models.AnomalyTypeMisplaced, anomalies[0].Type)
	suite.Equal("ITEM-002", anomalies[0].Subject)

	suite.Equal("2025-03-01-0002", anomalies[1].ID)
	suite.Equal(models.AnomalyTypeMissing, anomalies[1].Type)
	suite.Equal("ITEM-001", anomalies[1].Subject)

	suite.Equal("2025-03-01-0003", anomalies[2].ID)
	suite.Equal(models.AnomalyTypeOrphan, anomalies[2].Type)
	suite.Equal("GHOST-001", anomalies[2].Subject)

	// 历史日期的评估参照时刻为该日日终,检测时间可复现
	refTime := time.Date(2025, 3, 2, 0, 0, 0, 0, time.Local)
	for _, a := range anomalies {
		suite.True(a.DetectedAt.Equal(refTime))
		suite.Equal(finished.ID, a.RunID)
	}
}

func (suite *EngineTestSuite) TestSubmitRun_重跑同一日期产出同一批编号() {
	suite.seedScenario()

	first := suite.submitAndWait("2025-03-01")
	suite.waitForIdle()

	var firstIDs []string
	suite.testDB.DB.Model(&models.Anomaly{}).Where("date = ?", "2025-03-01").
		Order("id ASC").Pluck("id", &firstIDs)

	second := suite.submitAndWait("2025-03-01")
	suite.NotEqual(first.ID, second.ID)

	var secondIDs []string
	suite.testDB.DB.Model(&models.Anomaly{}).Where("date = ?", "2025-03-01").
		Order("id ASC").Pluck("id", &secondIDs)

	suite.Equal(firstIDs, secondIDs)

	// 异常集整体归属新一次运行
	var runIDs []string
	suite.testDB.DB.Model(&models.Anomaly{}).Where("date = ?", "2025-03-01").
		Distinct("run_id").Pluck("run_id", &runIDs)
	suite.Equal([]string{second.ID}, runIDs)
}

func (suite *EngineTestSuite) TestSubmitRun_无异常日期清空旧异常集() {
	// 旧运行遗留的异常,当日数据已修复
	suite.factory.CreateAnomaly("2025-03-01")
	suite.factory.CreateBin("A-01-01")
	suite.factory.CreateAllocation("ITEM-001", "A-01-01")
	suite.factory.CreateSnapshot("A-01-01", []string{"ITEM-001"},
		testutil.WithSnapshotTs(time.Date(2025, 3, 1, 10, 0, 0, 0, time.Local)),
		testutil.WithSnapshotConf(0.9))

	finished := suite.submitAndWait("2025-03-01")

	suite.Equal(models.RunStatusDone, finished.Status)
	var count int64
	suite.testDB.DB.Model(&models.Anomaly{}).Where("date = ?", "2025-03-01").Count(&count)
	suite.Zero(count)
}

func (suite *EngineTestSuite) TestCancelRun_排队状态直接标记取消() {
	queued := suite.factory.CreateReconcileRun("2025-03-01")

	suite.Require().NoError(suite.engine.CancelRun(queued.ID))

	var reloaded models.ReconcileRun
	suite.Require().NoError(suite.testDB.DB.First(&reloaded, "id = ?", queued.ID).Error)
	suite.Equal(models.RunStatusCancelled, reloaded.Status)
	suite.NotNil(reloaded.FinishedAt)
}

func (suite *EngineTestSuite) TestCancelRun_完成状态不可取消() {
	done := suite.factory.CreateReconcileRun("2025-03-01", testutil.WithRunStatus(models.RunStatusDone))

	err := suite.engine.CancelRun(done.ID)

	suite.Require().Error(err)
	suite.Contains(err.Error(), "不可取消")
}

func (suite *EngineTestSuite) TestCancelRun_运行不存在() {
	err := suite.engine.CancelRun("00000000-0000-0000-0000-000000000000")

	suite.ErrorIs(err, ErrRunNotFound)
}

func (suite *EngineTestSuite) TestGetRunStatus_运行不存在() {
	_, _, err := suite.engine.GetRunStatus("00000000-0000-0000-0000-000000000000")

	suite.ErrorIs(err, ErrRunNotFound)
}

func (suite *EngineTestSuite) TestGetRunStatus_返回记录与阶段() {
	created := suite.factory.CreateReconcileRun("2025-03-01")

	run, phase, err := suite.engine.GetRunStatus(created.ID)

	suite.Require().NoError(err)
	suite.Equal(created.ID, run.ID)
	suite.Equal(models.RunStatusQueued, run.Status)
	// 非在途运行无阶段信息
	suite.Empty(phase)
}

func (suite *EngineTestSuite) TestListRuns_按日期过滤与分页() {
	suite.factory.CreateReconcileRun("2025-03-01")
	suite.factory.CreateReconcileRun("2025-03-01")
	suite.factory.CreateReconcileRun("2025-02-28")

	runs, total, err := suite.engine.ListRuns("2025-03-01", 1, 10)
	suite.Require().NoError(err)
	suite.EqualValues(2, total)
	suite.Len(runs, 2)

	runs, total, err = suite.engine.ListRuns("", 1, 2)
	suite.Require().NoError(err)
	suite.EqualValues(3, total)
	suite.Len(runs, 2)

	runs, total, err = suite.engine.ListRuns("", 2, 2)
	suite.Require().NoError(err)
	suite.EqualValues(3, total)
	suite.Len(runs, 1)
}

func (suite *EngineTestSuite) TestGetStatistics_运行规模统计() {
	suite.factory.CreateReconcileRun("2025-03-01", testutil.WithRunStatus(models.RunStatusDone))
	suite.factory.CreateReconcileRun("2025-02-28", testutil.WithRunStatus(models.RunStatusFailed))
	suite.factory.CreateReconcileRun("2025-02-27", testutil.WithRunStatus(models.RunStatusDone))

	stats := suite.engine.GetStatistics()

	suite.EqualValues(3, stats["total_runs"])
	suite.EqualValues(2, stats["done_runs"])
	suite.EqualValues(1, stats["failed_runs"])
	suite.EqualValues(0, stats["running_runs"])
	suite.EqualValues(2, stats["max_concurrent"])
}

func (suite *EngineTestSuite) TestReferenceTime_历史日期取日终当天取当前() {
	historical := suite.engine.referenceTime("2025-03-01")
	suite.True(historical.Equal(time.Date(2025, 3, 2, 0, 0, 0, 0, time.Local)))

	today := suite.engine.referenceTime("2025-03-05")
	suite.True(today.Equal(engineTestNow))
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
