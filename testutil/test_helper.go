/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"warehouse-service/service/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 内存库随连接销毁,限制单连接使并发会话看到同一数据库
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Bin{},
		&models.Item{},
		&models.Allocation{},
		&models.Order{},
		&models.Snapshot{},
		&models.Movement{},
		&models.Anomaly{},
		&models.ReconcileRun{},
		&models.SystemConfig{},
		&models.SSEEvent{},
		&models.DBEventListener{},
		&models.ScannerFeed{},
		&models.ApiKey{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"bins",
		"items",
		"allocations",
		"orders",
		"snapshots",
		"movements",
		"anomalies",
		"reconcile_runs",
		"system_configs",
		"sse_events",
		"db_event_listeners",
		"scanner_feeds",
		"api_keys",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// BinOption 库位选项函数类型
type BinOption func(*models.Bin)

// CreateBin 创建测试库位
func (f *TestDataFactory) CreateBin(binID string, opts ...BinOption) *models.Bin {
	bin := &models.Bin{
		BinID:     binID,
		Zone:      "A",
		Role:      models.BinRoleStorage,
		Coords:    "0,0",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(bin)
	}

	err := f.DB.Create(bin).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test bin: %v", err))
	}

	return bin
}

// WithBinRole 设置库位角色
func WithBinRole(role string) BinOption {
	return func(b *models.Bin) {
		b.Role = role
	}
}

// ItemOption 物品选项函数类型
type ItemOption func(*models.Item)

// CreateItem 创建测试物品
func (f *TestDataFactory) CreateItem(itemID string, opts ...ItemOption) *models.Item {
	item := &models.Item{
		ItemID:     itemID,
		SKU:        "SKU-" + generateSuffix(),
		Lot:        "LOT-01",
		CustomerID: "CUST-01",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(item)
	}

	err := f.DB.Create(item).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test item: %v", err))
	}

	return item
}

// WithItemSKU 设置物品SKU
func WithItemSKU(sku string) ItemOption {
	return func(i *models.Item) {
		i.SKU = sku
	}
}

// AllocationOption 分配选项函数类型
type AllocationOption func(*models.Allocation)

// CreateAllocation 创建测试分配记录
func (f *TestDataFactory) CreateAllocation(itemID, binID string, opts ...AllocationOption) *models.Allocation {
	allocation := &models.Allocation{
		ID:        generateID("alloc"),
		ItemID:    itemID,
		BinID:     binID,
		Status:    models.AllocationStatusAllocated,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(allocation)
	}

	err := f.DB.Create(allocation).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test allocation: %v", err))
	}

	return allocation
}

// WithAllocationStatus 设置分配状态
func WithAllocationStatus(status string) AllocationOption {
	return func(a *models.Allocation) {
		a.Status = status
	}
}

// OrderOption 订单选项函数类型
type OrderOption func(*models.Order)

// CreateOrder 创建测试订单行
func (f *TestDataFactory) CreateOrder(orderID string, shipDate time.Time, opts ...OrderOption) *models.Order {
	order := &models.Order{
		ID:        generateID("order"),
		OrderID:   orderID,
		ShipDate:  shipDate,
		SKU:       "SKU-" + generateSuffix(),
		Qty:       1,
		ItemIDs:   models.JSONBStringArray{},
		Status:    models.OrderStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(order)
	}

	err := f.DB.Create(order).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test order: %v", err))
	}

	return order
}

// WithOrderStatus 设置订单状态
func WithOrderStatus(status string) OrderOption {
	return func(o *models.Order) {
		o.Status = status
	}
}

// WithOrderItems 设置订单关联物品
func WithOrderItems(itemIDs ...string) OrderOption {
	return func(o *models.Order) {
		o.ItemIDs = models.JSONBStringArray(itemIDs)
	}
}

// WithOrderSKU 设置订单SKU
func WithOrderSKU(sku string) OrderOption {
	return func(o *models.Order) {
		o.SKU = sku
	}
}

// WithOrderQty 设置订单数量
func WithOrderQty(qty int) OrderOption {
	return func(o *models.Order) {
		o.Qty = qty
	}
}

// SnapshotOption 快照选项函数类型
type SnapshotOption func(*models.Snapshot)

// CreateSnapshot 创建测试快照
func (f *TestDataFactory) CreateSnapshot(binID string, itemIDs []string, opts ...SnapshotOption) *models.Snapshot {
	snapshot := &models.Snapshot{
		ID:        generateID("snap"),
		Ts:        time.Now(),
		BinID:     binID,
		ItemIDs:   models.JSONBStringArray(itemIDs),
		Conf:      1.0,
		Source:    models.SnapshotSourceManual,
		CreatedAt: time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(snapshot)
	}

	err := f.DB.Create(snapshot).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test snapshot: %v", err))
	}

	return snapshot
}

// WithSnapshotTs 设置快照时间
func WithSnapshotTs(ts time.Time) SnapshotOption {
	return func(s *models.Snapshot) {
		s.Ts = ts
	}
}

// WithSnapshotConf 设置快照置信度
func WithSnapshotConf(conf float64) SnapshotOption {
	return func(s *models.Snapshot) {
		s.Conf = conf
	}
}

// AnomalyOption 异常选项函数类型
type AnomalyOption func(*models.Anomaly)

// CreateAnomaly 创建测试异常
func (f *TestDataFactory) CreateAnomaly(date string, opts ...AnomalyOption) *models.Anomaly {
	anomaly := &models.Anomaly{
		ID:          fmt.Sprintf("%s-%s", date, generateSuffix()),
		Date:        date,
		Type:        models.AnomalyTypeMissing,
		Severity:    models.SeverityMed,
		Subject:     "ITM-" + generateSuffix(),
		DetectedAt:  time.Now(),
		Explanation: "测试异常",
		Resolved:    false,
		CreatedAt:   time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(anomaly)
	}

	err := f.DB.Create(anomaly).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test anomaly: %v", err))
	}

	return anomaly
}

// WithAnomalyType 设置异常类型与严重级别
func WithAnomalyType(anomalyType, severity string) AnomalyOption {
	return func(a *models.Anomaly) {
		a.Type = anomalyType
		a.Severity = severity
	}
}

// ReconcileRunOption 对账运行选项函数类型
type ReconcileRunOption func(*models.ReconcileRun)

// CreateReconcileRun 创建测试对账运行记录
func (f *TestDataFactory) CreateReconcileRun(date string, opts ...ReconcileRunOption) *models.ReconcileRun {
	run := &models.ReconcileRun{
		ID:          generateID("run"),
		Date:        date,
		Status:      models.RunStatusQueued,
		TriggeredBy: "manual",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(run)
	}

	err := f.DB.Create(run).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test reconcile run: %v", err))
	}

	return run
}

// WithRunStatus 设置运行状态
func WithRunStatus(status string) ReconcileRunOption {
	return func(r *models.ReconcileRun) {
		r.Status = status
	}
}

// ScannerFeedOption 扫描通道选项函数类型
type ScannerFeedOption func(*models.ScannerFeed)

// CreateScannerFeed 创建测试扫描通道
func (f *TestDataFactory) CreateScannerFeed(opts ...ScannerFeedOption) *models.ScannerFeed {
	suffix := generateSuffix()
	feed := &models.ScannerFeed{
		ID:          generateID("feed"),
		Name:        "测试扫描通道_" + suffix,
		Topic:       "warehouse/scan/" + suffix,
		Vendor:      "generic",
		IsEnabled:   true,
		Description: "这是一个测试扫描通道",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(feed)
	}

	err := f.DB.Create(feed).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test scanner feed: %v", err))
	}

	return feed
}

// WithFeedTopic 设置扫描通道主题
func WithFeedTopic(topic string) ScannerFeedOption {
	return func(feed *models.ScannerFeed) {
		feed.Topic = topic
	}
}

// WithFeedScript 设置转换脚本并启用
func WithFeedScript(script string) ScannerFeedOption {
	return func(feed *models.ScannerFeed) {
		feed.Script = script
		feed.ScriptEnabled = true
	}
}

// ApiKeyOption API密钥选项函数类型
type ApiKeyOption func(*models.ApiKey)

// CreateApiKey 创建测试API密钥
func (f *TestDataFactory) CreateApiKey(opts ...ApiKeyOption) *models.ApiKey {
	apiKey := &models.ApiKey{
		ID:           generateID("ak"),
		Name:         "测试API密钥",
		KeyPrefix:    "testpref",
		KeyValueHash: "test_key_hash_" + generateSuffix(),
		Description:  "这是一个测试API密钥",
		Status:       models.ApiKeyStatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(apiKey)
	}

	err := f.DB.Create(apiKey).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test api key: %v", err))
	}

	return apiKey
}

// SystemConfigOption 系统配置选项函数类型
type SystemConfigOption func(*models.SystemConfig)

// CreateSystemConfig 创建测试系统配置
func (f *TestDataFactory) CreateSystemConfig(key, value string, opts ...SystemConfigOption) *models.SystemConfig {
	config := &models.SystemConfig{
		ID:        generateID("cfg"),
		Key:       key,
		Value:     value,
		Category:  "reconcile",
		UpdatedBy: "test",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(config)
	}

	err := f.DB.Create(config).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test system config: %v", err))
	}

	return config
}

// 辅助函数
func generateID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), generateSuffix())
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}

// TestTransaction 测试事务辅助工具
type TestTransaction struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewTestTransaction 创建测试事务
func NewTestTransaction(db *gorm.DB) *TestTransaction {
	tx := db.Begin()
	return &TestTransaction{
		db: db,
		tx: tx,
	}
}

// DB 获取事务数据库
func (tt *TestTransaction) DB() *gorm.DB {
	return tt.tx
}

// Commit 提交事务
func (tt *TestTransaction) Commit() {
	tt.tx.Commit()
}

// Rollback 回滚事务
func (tt *TestTransaction) Rollback() {
	tt.tx.Rollback()
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// AssertJSONResponse 断言JSON响应
func (h *HTTPTestHelper) AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, _ := json.Marshal(expectedBody)
		actualJSON, _ := json.Marshal(actualBody)

		assert.JSONEq(t, string(expectedJSON), string(actualJSON))
	}
}
