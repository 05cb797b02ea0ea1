/*
 * @module service/scanner/scanner_service
 * @description 扫描接入服务,订阅 MQTT 扫描上报主题,经厂商脚本或默认映射转换后落快照
 * @architecture 发布订阅模式 - 连接 broker 并按通道配置订阅主题
 * @documentReference ai_docs/scanner_feed_design.md
 * @stateFlow 连接 broker -> 订阅通道主题 -> 接收报文 -> 转换 -> 快照落库
 * @rules 未配置 MQTT_BROKER 时服务静默停用;报文通道满时丢弃并告警,不阻塞接收
 * @dependencies github.com/eclipse/paho.mqtt.golang, warehouse-service/service/snapshot, gorm.io/gorm
 * @refs api/controllers/scanner_controller.go, service/snapshot
 */

package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"warehouse-service/service/models"
	"warehouse-service/service/snapshot"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

// ErrFeedNotFound 通道配置不存在
var ErrFeedNotFound = errors.New("扫描通道不存在")

// feedMessage 收到的一条扫描报文
type feedMessage struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// ScannerService 扫描接入服务
type ScannerService struct {
	db        *gorm.DB
	snapshots *snapshot.SnapshotService
	executor  *ScriptExecutor

	client   mqtt.Client
	broker   string
	port     int
	clientID string
	username string
	password string
	qos      byte

	msgChannel chan feedMessage

	feedsMu sync.RWMutex
	feeds   []*models.ScannerFeed

	mu      sync.Mutex
	started bool
}

// NewScannerService 创建扫描接入服务,连接参数取环境变量
func NewScannerService(db *gorm.DB, snapshots *snapshot.SnapshotService) *ScannerService {
	port, err := strconv.Atoi(getEnvWithDefault("MQTT_PORT", "1883"))
	if err != nil {
		port = 1883
	}

	return &ScannerService{
		db:         db,
		snapshots:  snapshots,
		executor:   NewScriptExecutor(),
		broker:     os.Getenv("MQTT_BROKER"),
		port:       port,
		clientID:   fmt.Sprintf("warehouse-scanner-%d", time.Now().Unix()),
		username:   os.Getenv("MQTT_USERNAME"),
		password:   os.Getenv("MQTT_PASSWORD"),
		qos:        1,
		msgChannel: make(chan feedMessage, 1000),
	}
}

// Enabled 是否配置了 MQTT 接入
func (s *ScannerService) Enabled() bool {
	return s.broker != ""
}

// Start 连接 broker 并订阅启用的通道主题
func (s *ScannerService) Start(ctx context.Context) error {
	if !s.Enabled() {
		slog.Info("未配置 MQTT_BROKER,扫描接入停用")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("扫描接入服务已启动")
	}

	if err := s.loadFeeds(ctx); err != nil {
		return err
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", s.broker, s.port))
	opts.SetClientID(s.clientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(30 * time.Second)
	if s.username != "" {
		opts.SetUsername(s.username)
	}
	if s.password != "" {
		opts.SetPassword(s.password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(5 * time.Second)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		slog.Error("MQTT 连接丢失,等待自动重连", "error", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		slog.Info("MQTT 连接成功", "broker", s.broker, "client_id", s.clientID)
		// 重连后需要重新订阅
		if err := s.subscribeFeeds(client); err != nil {
			slog.Error("订阅扫描通道失败", "error", err)
		}
	})

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("连接 MQTT broker 失败: %w", token.Error())
	}

	go s.processMessages()
	s.started = true

	slog.Info("扫描接入服务已启动", "broker", s.broker, "port", s.port, "feeds", len(s.feeds))
	return nil
}

// Stop 停止订阅并断开连接
func (s *ScannerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	close(s.msgChannel)
	s.started = false
	slog.Info("扫描接入服务已停止")
}

// Status 服务运行状态概览
func (s *ScannerService) Status() map[string]interface{} {
	s.feedsMu.RLock()
	feedCount := len(s.feeds)
	s.feedsMu.RUnlock()

	connected := s.client != nil && s.client.IsConnected()
	return map[string]interface{}{
		"enabled":   s.Enabled(),
		"connected": connected,
		"feeds":     feedCount,
		"backlog":   len(s.msgChannel),
	}
}

// loadFeeds 加载启用的通道配置
func (s *ScannerService) loadFeeds(ctx context.Context) error {
	var feeds []*models.ScannerFeed
	err := s.db.WithContext(ctx).Where("is_enabled = ?", true).Find(&feeds).Error
	if err != nil {
		return fmt.Errorf("加载扫描通道配置失败: %w", err)
	}

	s.feedsMu.Lock()
	s.feeds = feeds
	s.feedsMu.Unlock()
	return nil
}

// subscribeFeeds 订阅全部通道主题
func (s *ScannerService) subscribeFeeds(client mqtt.Client) error {
	s.feedsMu.RLock()
	defer s.feedsMu.RUnlock()

	for _, feed := range s.feeds {
		if token := client.Subscribe(feed.Topic, s.qos, s.handleMessage); token.Wait() && token.Error() != nil {
			return fmt.Errorf("订阅主题 %s 失败: %w", feed.Topic, token.Error())
		}
		slog.Info("扫描通道已订阅", "name", feed.Name, "topic", feed.Topic)
	}
	return nil
}

// ReloadFeeds 重新加载通道配置并调整订阅,配置变更后调用
func (s *ScannerService) ReloadFeeds(ctx context.Context) error {
	s.feedsMu.RLock()
	oldTopics := make([]string, 0, len(s.feeds))
	for _, feed := range s.feeds {
		oldTopics = append(oldTopics, feed.Topic)
	}
	s.feedsMu.RUnlock()

	if err := s.loadFeeds(ctx); err != nil {
		return err
	}

	if s.client == nil || !s.client.IsConnected() {
		return nil
	}

	for _, topic := range oldTopics {
		if token := s.client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
			slog.Warn("退订主题失败", "topic", topic, "error", token.Error())
		}
	}
	return s.subscribeFeeds(s.client)
}

// handleMessage MQTT 消息回调,只做入队
func (s *ScannerService) handleMessage(client mqtt.Client, msg mqtt.Message) {
	message := feedMessage{
		Topic:      msg.Topic(),
		Payload:    msg.Payload(),
		ReceivedAt: time.Now(),
	}

	select {
	case s.msgChannel <- message:
	default:
		slog.Warn("扫描报文通道已满,丢弃消息", "topic", msg.Topic())
	}
}

// processMessages 消费报文队列
func (s *ScannerService) processMessages() {
	for msg := range s.msgChannel {
		if err := s.processFeedMessage(msg); err != nil {
			slog.Error("扫描报文处理失败", "topic", msg.Topic, "error", err)
		}
	}
}

// processFeedMessage 单条报文的转换与落库
func (s *ScannerService) processFeedMessage(msg feedMessage) error {
	feed := s.feedFor(msg.Topic)
	if feed == nil {
		return fmt.Errorf("主题 %s 无匹配通道", msg.Topic)
	}

	var parsed map[string]interface{}
	_ = json.Unmarshal(msg.Payload, &parsed)

	fields := parsed
	if feed.ScriptEnabled && feed.Script != "" {
		result, err := s.executor.Execute(feed.Script, map[string]interface{}{
			"topic":   msg.Topic,
			"payload": string(msg.Payload),
			"parsed":  parsed,
		})
		if err != nil {
			return fmt.Errorf("通道 %s 脚本执行失败: %w", feed.Name, err)
		}
		converted, ok := result.(map[string]interface{})
		if !ok {
			return fmt.Errorf("通道 %s 脚本返回类型非法,期望 map[string]interface{}", feed.Name)
		}
		fields = converted
	}

	req, err := buildSnapshotRequest(fields)
	if err != nil {
		return fmt.Errorf("通道 %s 报文字段非法: %w", feed.Name, err)
	}
	if req.Ts == nil {
		req.Ts = &msg.ReceivedAt
	}

	_, err = s.snapshots.CreateSnapshot(context.Background(), req)
	return err
}

// feedFor 按 MQTT 主题匹配规则查找通道配置
func (s *ScannerService) feedFor(topic string) *models.ScannerFeed {
	s.feedsMu.RLock()
	defer s.feedsMu.RUnlock()

	for _, feed := range s.feeds {
		if topicMatches(feed.Topic, topic) {
			return feed
		}
	}
	return nil
}

// buildSnapshotRequest 将归一化字段映射为快照创建请求
// 字段契约: bin_id, item_ids(数组或分号分隔), conf, ts, photo_ref, ocr_text, notes
func buildSnapshotRequest(fields map[string]interface{}) (*snapshot.CreateSnapshotRequest, error) {
	if fields == nil {
		return nil, errors.New("报文不是合法 JSON 且无转换脚本")
	}

	req := &snapshot.CreateSnapshotRequest{
		BinID:    cast.ToString(fields["bin_id"]),
		PhotoRef: cast.ToString(fields["photo_ref"]),
		OcrText:  cast.ToString(fields["ocr_text"]),
		Notes:    cast.ToString(fields["notes"]),
		Source:   models.SnapshotSourceScanner,
	}

	switch v := fields["item_ids"].(type) {
	case []interface{}:
		for _, item := range v {
			if id := strings.TrimSpace(cast.ToString(item)); id != "" {
				req.ItemIDs = append(req.ItemIDs, id)
			}
		}
	case []string:
		for _, item := range v {
			if id := strings.TrimSpace(item); id != "" {
				req.ItemIDs = append(req.ItemIDs, id)
			}
		}
	case string:
		for _, item := range strings.Split(v, ";") {
			if id := strings.TrimSpace(item); id != "" {
				req.ItemIDs = append(req.ItemIDs, id)
			}
		}
	}

	if raw, exists := fields["conf"]; exists && raw != nil {
		conf, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, fmt.Errorf("conf 非法: %v", raw)
		}
		req.Conf = &conf
	}

	if raw, exists := fields["ts"]; exists && raw != nil {
		tsStr := cast.ToString(raw)
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, tsStr); err == nil {
				req.Ts = &ts
				break
			}
		}
	}

	if req.BinID == "" && len(req.ItemIDs) == 0 {
		return nil, errors.New("报文缺少库位号与物品清单")
	}
	return req, nil
}

// topicMatches MQTT 主题过滤器匹配,支持 + 与 # 通配
func topicMatches(filter, topic string) bool {
	if filter == topic {
		return true
	}

	filterParts := strings.Split(filter, "/")
	topicParts := strings.Split(topic, "/")

	for i, fp := range filterParts {
		if fp == "#" {
			return true
		}
		if i >= len(topicParts) {
			return false
		}
		if fp != "+" && fp != topicParts[i] {
			return false
		}
	}
	return len(filterParts) == len(topicParts)
}

// === 通道配置管理 ===

// CreateFeed 创建扫描通道,脚本启用时先校验可编译
func (s *ScannerService) CreateFeed(ctx context.Context, feed *models.ScannerFeed) error {
	if feed.Name == "" || feed.Topic == "" {
		return errors.New("通道名称与主题不能为空")
	}
	if feed.ScriptEnabled {
		if err := s.executor.Validate(feed.Script); err != nil {
			return fmt.Errorf("转换脚本校验失败: %w", err)
		}
	}
	if err := s.db.WithContext(ctx).Create(feed).Error; err != nil {
		return fmt.Errorf("创建扫描通道失败: %w", err)
	}
	return s.ReloadFeeds(ctx)
}

// ListFeeds 列出全部通道配置
func (s *ScannerService) ListFeeds(ctx context.Context) ([]models.ScannerFeed, error) {
	var feeds []models.ScannerFeed
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&feeds).Error
	if err != nil {
		return nil, fmt.Errorf("查询扫描通道失败: %w", err)
	}
	return feeds, nil
}

// GetFeed 获取单个通道配置
func (s *ScannerService) GetFeed(ctx context.Context, id string) (*models.ScannerFeed, error) {
	var feed models.ScannerFeed
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&feed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFeedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询扫描通道失败: %w", err)
	}
	return &feed, nil
}

// UpdateFeed 更新通道配置,脚本变更时重新校验
func (s *ScannerService) UpdateFeed(ctx context.Context, id string, updates map[string]interface{}) error {
	if script, exists := updates["script"]; exists {
		scriptStr := cast.ToString(script)
		enabled := cast.ToBool(updates["script_enabled"])
		if !enabled {
			if current, err := s.GetFeed(ctx, id); err == nil {
				enabled = current.ScriptEnabled
			}
		}
		if enabled && scriptStr != "" {
			if err := s.executor.Validate(scriptStr); err != nil {
				return fmt.Errorf("转换脚本校验失败: %w", err)
			}
		}
	}

	result := s.db.WithContext(ctx).Model(&models.ScannerFeed{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("更新扫描通道失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFeedNotFound
	}
	return s.ReloadFeeds(ctx)
}

// DeleteFeed 删除通道配置
func (s *ScannerService) DeleteFeed(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ScannerFeed{})
	if result.Error != nil {
		return fmt.Errorf("删除扫描通道失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFeedNotFound
	}
	return s.ReloadFeeds(ctx)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
