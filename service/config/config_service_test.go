/*
 * @module service/config/config_service_test
 * @description 配置服务单元测试,验证默认值回退、解析与合法性校验
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 准备配置数据 -> 解析运行配置 -> 字段断言
 * @rules 任一配置项解析失败回退默认值,不让坏配置阻断对账
 * @dependencies testing, stretchr/testify, warehouse-service/testutil
 * @refs config_service.go
 */

package config

import (
	"testing"
	"warehouse-service/service/models"
	"warehouse-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ConfigServiceTestSuite struct {
	suite.Suite
	testDB  *testutil.TestDB
	factory *testutil.TestDataFactory
	service *ConfigService
}

func (suite *ConfigServiceTestSuite) SetupSuite() {
	suite.testDB = testutil.NewTestDB()
	suite.factory = testutil.NewTestDataFactory(suite.testDB.DB)
}

func (suite *ConfigServiceTestSuite) TearDownSuite() {
	suite.testDB.Close()
}

func (suite *ConfigServiceTestSuite) SetupTest() {
	suite.testDB.CleanDB()
	// 每个用例使用全新服务实例,避免缓存跨用例
	suite.service = NewConfigService(suite.testDB.DB)
}

func (suite *ConfigServiceTestSuite) TestResolveReconcileConfig_全默认值() {
	cfg := suite.service.ResolveReconcileConfig()

	suite.Equal([]string{"S-01", "S-02", "S-03", "S-04"}, cfg.StagingBins)
	suite.InDelta(DefaultStaleHours, cfg.StaleHours, 1e-9)
	suite.Nil(cfg.BinStaleHours)
	suite.InDelta(DefaultConfidenceFloor, cfg.ConfidenceFloor, 1e-9)
	suite.Equal(DefaultGraceDays, cfg.GraceDays)
	suite.Equal(DefaultRunTimeoutSeconds, cfg.RunTimeoutSeconds)
	suite.Equal(DefaultBurstWindowSeconds, cfg.BurstWindowSeconds)
}

func (suite *ConfigServiceTestSuite) TestResolveReconcileConfig_数据库配置生效() {
	suite.factory.CreateSystemConfig(models.ConfigKeyStagingBins, "STG-01, STG-02")
	suite.factory.CreateSystemConfig(models.ConfigKeyStaleHours, "36")
	suite.factory.CreateSystemConfig(models.ConfigKeyBinStaleHours, "STG-01=4,STG-02=48")
	suite.factory.CreateSystemConfig(models.ConfigKeyConfidenceFloor, "0.75")
	suite.factory.CreateSystemConfig(models.ConfigKeyGraceDays, "2")
	suite.factory.CreateSystemConfig(models.ConfigKeyRunTimeoutSeconds, "120")
	suite.factory.CreateSystemConfig(models.ConfigKeyBurstWindowSeconds, "300")

	cfg := suite.service.ResolveReconcileConfig()

	suite.Equal([]string{"STG-01", "STG-02"}, cfg.StagingBins)
	suite.InDelta(36.0, cfg.StaleHours, 1e-9)
	suite.Equal(map[string]float64{"STG-01": 4, "STG-02": 48}, cfg.BinStaleHours)
	suite.InDelta(0.75, cfg.ConfidenceFloor, 1e-9)
	suite.Equal(2, cfg.GraceDays)
	suite.Equal(120, cfg.RunTimeoutSeconds)
	suite.Equal(300, cfg.BurstWindowSeconds)
}

func (suite *ConfigServiceTestSuite) TestResolveReconcileConfig_非法值回退默认() {
	suite.factory.CreateSystemConfig(models.ConfigKeyConfidenceFloor, "1.5")
	suite.factory.CreateSystemConfig(models.ConfigKeyStaleHours, "-3")
	suite.factory.CreateSystemConfig(models.ConfigKeyGraceDays, "abc")
	suite.factory.CreateSystemConfig(models.ConfigKeyRunTimeoutSeconds, "0")

	cfg := suite.service.ResolveReconcileConfig()

	suite.InDelta(DefaultConfidenceFloor, cfg.ConfidenceFloor, 1e-9)
	suite.InDelta(DefaultStaleHours, cfg.StaleHours, 1e-9)
	suite.Equal(DefaultGraceDays, cfg.GraceDays)
	suite.Equal(DefaultRunTimeoutSeconds, cfg.RunTimeoutSeconds)
}

func (suite *ConfigServiceTestSuite) TestResolveReconcileConfig_环境变量优先() {
	suite.factory.CreateSystemConfig(models.ConfigKeyStaleHours, "36")
	suite.T().Setenv("WAREHOUSE_RECONCILE_STALE_HOURS", "6")

	cfg := suite.service.ResolveReconcileConfig()

	suite.InDelta(6.0, cfg.StaleHours, 1e-9)
}

func (suite *ConfigServiceTestSuite) TestGetStorageBackend_未知后端回退local() {
	suite.factory.CreateSystemConfig(models.ConfigKeyStorageBackend, "ftp")

	suite.Equal("local", suite.service.GetStorageBackend())
}

func (suite *ConfigServiceTestSuite) TestGetStorageBackend_s3() {
	suite.factory.CreateSystemConfig(models.ConfigKeyStorageBackend, "s3")
	suite.factory.CreateSystemConfig(models.ConfigKeyS3Bucket, "warehouse-reports")

	suite.Equal("s3", suite.service.GetStorageBackend())
	suite.Equal("warehouse-reports", suite.service.GetS3Bucket())
}

func (suite *ConfigServiceTestSuite) TestGetRunRetentionDays_非正数回退默认() {
	suite.factory.CreateSystemConfig(models.ConfigKeyRunRetentionDays, "-1")

	suite.Equal(DefaultRunRetentionDays, suite.service.GetRunRetentionDays())
}

func (suite *ConfigServiceTestSuite) TestGetScheduleCron() {
	suite.Equal(DefaultScheduleCron, suite.service.GetScheduleCron())

	suite.factory.CreateSystemConfig(models.ConfigKeyScheduleCron, "0 30 3 * * *")
	suite.service.ClearCache()
	suite.Equal("0 30 3 * * *", suite.service.GetScheduleCron())
}

func (suite *ConfigServiceTestSuite) TestGetAllSystemConfigs_合并内置默认值() {
	suite.factory.CreateSystemConfig(models.ConfigKeyStaleHours, "36")

	items, err := suite.service.GetAllSystemConfigs()

	suite.Require().NoError(err)
	byKey := make(map[string]models.SystemConfigItem)
	for _, item := range items {
		byKey[item.Key] = item
	}

	// 数据库中的键取数据库值
	stale := byKey[models.ConfigKeyStaleHours]
	suite.Equal("36", stale.Value)
	suite.False(stale.IsDefault)
	suite.Equal("float", stale.ValueType)

	// 数据库缺失的键补内置默认值
	floor := byKey[models.ConfigKeyConfidenceFloor]
	suite.Equal("0.5", floor.Value)
	suite.True(floor.IsDefault)

	backend := byKey[models.ConfigKeyStorageBackend]
	suite.Equal("local", backend.Value)
	suite.True(backend.IsDefault)
}

func TestConfigServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigServiceTestSuite))
}

// ===================== 解析辅助函数 =====================

func TestParseStagingBins(t *testing.T) {
	assert.Equal(t, []string{"S-01", "S-02"}, parseStagingBins("S-01,S-02"))
	// 去空白、去重、忽略空段
	assert.Equal(t, []string{"S-01", "S-02"}, parseStagingBins(" S-01 , S-02 ,, S-01 "))
	assert.Empty(t, parseStagingBins(""))
	assert.Empty(t, parseStagingBins(" , , "))
}

func TestParseBinStaleHours(t *testing.T) {
	assert.Equal(t, map[string]float64{"S-01": 24, "S-02": 6.5},
		parseBinStaleHours("S-01=24, S-02=6.5"))

	// 非法对逐个忽略,合法对保留
	assert.Equal(t, map[string]float64{"S-01": 24},
		parseBinStaleHours("S-01=24,S-02=abc,S-03=-1,S-04"))

	// 全部非法或空串返回 nil
	assert.Nil(t, parseBinStaleHours(""))
	assert.Nil(t, parseBinStaleHours("garbage"))
}
