/*
 * @module service/reconcile/expectation_test
 * @description 期望状态构建器单元测试,验证分配/订单读取与脏数据跳过计数
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 准备库位/分配/订单数据 -> 构建期望快照 -> 结构断言
 * @rules 单条脏记录跳过并计数,不中断构建;构建纯读取不修改数据
 * @dependencies testing, stretchr/testify, warehouse-service/testutil
 * @refs expectation.go
 */

package reconcile

import (
	"context"
	"testing"
	"time"
	"warehouse-service/service/models"
	"warehouse-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ExpectationTestSuite struct {
	suite.Suite
	testDB  *testutil.TestDB
	factory *testutil.TestDataFactory
	ctx     context.Context
}

func (suite *ExpectationTestSuite) SetupSuite() {
	suite.testDB = testutil.NewTestDB()
	suite.factory = testutil.NewTestDataFactory(suite.testDB.DB)
	suite.ctx = context.Background()
}

func (suite *ExpectationTestSuite) TearDownSuite() {
	suite.testDB.Close()
}

func (suite *ExpectationTestSuite) SetupTest() {
	suite.testDB.CleanDB()
}

func (suite *ExpectationTestSuite) build(date string) (*models.Expectation, error) {
	return BuildExpectation(suite.ctx, suite.testDB.DB, date, testConfig)
}

func (suite *ExpectationTestSuite) TestBuildExpectation_日期非法() {
	_, err := suite.build("2025/03/01")

	suite.ErrorIs(err, ErrInvalidDate)
}

func (suite *ExpectationTestSuite) TestBuildExpectation_库位角色与分配映射() {
	suite.factory.CreateBin("A-01-01")
	suite.factory.CreateBin("STG-01", testutil.WithBinRole(models.BinRoleStaging))
	suite.factory.CreateAllocation("ITEM-001", "A-01-01")
	suite.factory.CreateAllocation("ITEM-002", "STG-01", testutil.WithAllocationStatus(models.AllocationStatusStaged))

	exp, err := suite.build("2025-03-01")

	suite.Require().NoError(err)
	suite.Equal("2025-03-01", exp.Date)
	suite.Equal(models.BinRoleStorage, exp.BinRoles["A-01-01"])
	suite.Equal(models.BinRoleStaging, exp.BinRoles["STG-01"])

	suite.Require().Len(exp.Items, 2)
	suite.Equal("A-01-01", exp.Items["ITEM-001"].BinID)
	suite.Equal(models.AllocationStatusAllocated, exp.Items["ITEM-001"].Status)
	suite.Equal("STG-01", exp.Items["ITEM-002"].BinID)
	suite.Equal(models.AllocationStatusStaged, exp.Items["ITEM-002"].Status)

	suite.True(exp.AllocatedIDs["ITEM-001"])
	suite.True(exp.AllocatedIDs["ITEM-002"])
	suite.Zero(exp.Skipped)
}

func (suite *ExpectationTestSuite) TestBuildExpectation_脏分配记录跳过并计数() {
	suite.factory.CreateBin("A-01-01")
	suite.factory.CreateAllocation("ITEM-001", "A-01-01")
	// 缺物品编号、缺库位、引用不存在库位的三类脏记录
	suite.factory.CreateAllocation("", "A-01-01")
	suite.factory.CreateAllocation("ITEM-002", "")
	suite.factory.CreateAllocation("ITEM-003", "B-99-99")

	exp, err := suite.build("2025-03-01")

	suite.Require().NoError(err)
	suite.Equal(3, exp.Skipped)
	suite.Len(exp.Items, 1)
	suite.Contains(exp.Items, "ITEM-001")

	// 缺库位/库位不存在的分配仍证明物品为系统已知
	suite.True(exp.AllocatedIDs["ITEM-002"])
	suite.True(exp.AllocatedIDs["ITEM-003"])
	suite.False(exp.AllocatedIDs[""])
}

func (suite *ExpectationTestSuite) TestBuildExpectation_已发货订单覆盖的物品剔除() {
	suite.factory.CreateBin("A-01-01")
	suite.factory.CreateAllocation("ITEM-001", "A-01-01")
	suite.factory.CreateAllocation("ITEM-002", "A-01-01")
	shipDate := time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)
	suite.factory.CreateOrder("ORD-001", shipDate,
		testutil.WithOrderStatus(models.OrderStatusShipped),
		testutil.WithOrderItems("ITEM-002"))

	exp, err := suite.build("2025-03-01")

	suite.Require().NoError(err)
	suite.Require().Len(exp.ShippedOrders, 1)
	suite.Equal("ORD-001", exp.ShippedOrders[0].OrderID)
	suite.Equal([]string{"ITEM-002"}, exp.ShippedOrders[0].ItemIDs)

	// 发货覆盖的物品不再期望在库,但仍属于系统已知
	suite.Len(exp.Items, 1)
	suite.Contains(exp.Items, "ITEM-001")
	suite.NotContains(exp.Items, "ITEM-002")
	suite.True(exp.AllocatedIDs["ITEM-002"])
}

func (suite *ExpectationTestSuite) TestBuildExpectation_未发货与未来发货订单不计入() {
	suite.factory.CreateBin("A-01-01")
	suite.factory.CreateAllocation("ITEM-001", "A-01-01")
	// 未发货
	suite.factory.CreateOrder("ORD-001", time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local),
		testutil.WithOrderItems("ITEM-001"))
	// 已发货但发货日晚于目标日期
	suite.factory.CreateOrder("ORD-002", time.Date(2025, 3, 5, 9, 0, 0, 0, time.Local),
		testutil.WithOrderStatus(models.OrderStatusShipped),
		testutil.WithOrderItems("ITEM-001"))

	exp, err := suite.build("2025-03-01")

	suite.Require().NoError(err)
	suite.Empty(exp.ShippedOrders)
	suite.Contains(exp.Items, "ITEM-001")
}

func (suite *ExpectationTestSuite) TestBuildExpectation_同订单多行归并取最早发货日() {
	suite.factory.CreateBin("A-01-01")
	early := time.Date(2025, 2, 27, 9, 0, 0, 0, time.Local)
	late := time.Date(2025, 2, 28, 16, 0, 0, 0, time.Local)
	suite.factory.CreateOrder("ORD-001", late,
		testutil.WithOrderStatus(models.OrderStatusShipped),
		testutil.WithOrderItems("ITEM-002"))
	suite.factory.CreateOrder("ORD-001", early,
		testutil.WithOrderStatus(models.OrderStatusShipped),
		testutil.WithOrderItems("ITEM-001"))

	exp, err := suite.build("2025-03-01")

	suite.Require().NoError(err)
	suite.Require().Len(exp.ShippedOrders, 1)
	order := exp.ShippedOrders[0]
	suite.Equal("ORD-001", order.OrderID)
	suite.True(order.ShipDate.Equal(early))
	suite.Equal([]string{"ITEM-001", "ITEM-002"}, order.ItemIDs)
}

func (suite *ExpectationTestSuite) TestBuildExpectation_缺订单号的发货行跳过并计数() {
	suite.factory.CreateBin("A-01-01")
	suite.factory.CreateOrder("", time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local),
		testutil.WithOrderStatus(models.OrderStatusShipped),
		testutil.WithOrderItems("ITEM-001"))

	exp, err := suite.build("2025-03-01")

	suite.Require().NoError(err)
	suite.Empty(exp.ShippedOrders)
	suite.Equal(1, exp.Skipped)
}

func (suite *ExpectationTestSuite) TestBuildExpectation_订单行按SKU推导物品() {
	suite.factory.CreateBin("A-01-01")
	suite.factory.CreateItem("ITEM-003", testutil.WithItemSKU("SKU-RED"))
	suite.factory.CreateItem("ITEM-001", testutil.WithItemSKU("SKU-RED"))
	suite.factory.CreateItem("ITEM-002", testutil.WithItemSKU("SKU-RED"))
	suite.factory.CreateItem("ITEM-009", testutil.WithItemSKU("SKU-BLUE"))
	// 行未显式列出物品,按 SKU 取前两个(item_id 升序)
	suite.factory.CreateOrder("ORD-001", time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local),
		testutil.WithOrderStatus(models.OrderStatusShipped),
		testutil.WithOrderSKU("SKU-RED"),
		testutil.WithOrderQty(2))

	exp, err := suite.build("2025-03-01")

	suite.Require().NoError(err)
	suite.Require().Len(exp.ShippedOrders, 1)
	suite.Equal([]string{"ITEM-001", "ITEM-002"}, exp.ShippedOrders[0].ItemIDs)
}

func (suite *ExpectationTestSuite) TestBuildExpectation_SKU推导数量超过存量取全部() {
	suite.factory.CreateBin("A-01-01")
	suite.factory.CreateItem("ITEM-001", testutil.WithItemSKU("SKU-RED"))
	suite.factory.CreateOrder("ORD-001", time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local),
		testutil.WithOrderStatus(models.OrderStatusShipped),
		testutil.WithOrderSKU("SKU-RED"),
		testutil.WithOrderQty(5))

	exp, err := suite.build("2025-03-01")

	suite.Require().NoError(err)
	suite.Require().Len(exp.ShippedOrders, 1)
	suite.Equal([]string{"ITEM-001"}, exp.ShippedOrders[0].ItemIDs)
}

func (suite *ExpectationTestSuite) TestBuildExpectation_订单按订单号排序() {
	suite.factory.CreateBin("A-01-01")
	shipDate := time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)
	for _, orderID := range []string{"ORD-C", "ORD-A", "ORD-B"} {
		suite.factory.CreateOrder(orderID, shipDate,
			testutil.WithOrderStatus(models.OrderStatusShipped),
			testutil.WithOrderItems("ITEM-"+orderID))
	}

	exp, err := suite.build("2025-03-01")

	suite.Require().NoError(err)
	suite.Require().Len(exp.ShippedOrders, 3)
	suite.Equal("ORD-A", exp.ShippedOrders[0].OrderID)
	suite.Equal("ORD-B", exp.ShippedOrders[1].OrderID)
	suite.Equal("ORD-C", exp.ShippedOrders[2].OrderID)
}

func TestExpectationTestSuite(t *testing.T) {
	suite.Run(t, new(ExpectationTestSuite))
}

// 构建器纯读取,不应修改任何业务表
func TestBuildExpectation_不修改数据(t *testing.T) {
	testDB := testutil.NewTestDB()
	defer testDB.Close()
	factory := testutil.NewTestDataFactory(testDB.DB)

	factory.CreateBin("A-01-01")
	factory.CreateAllocation("ITEM-001", "A-01-01")

	_, err := BuildExpectation(context.Background(), testDB.DB, "2025-03-01", testConfig)
	require.NoError(t, err)

	var allocCount, binCount int64
	testDB.DB.Model(&models.Allocation{}).Count(&allocCount)
	testDB.DB.Model(&models.Bin{}).Count(&binCount)
	assert.Equal(t, int64(1), allocCount)
	assert.Equal(t, int64(1), binCount)
}
