/*
 * @module service/event
 * @description 事件推送服务,提供 SSE 实时推送与 PostgreSQL LISTEN/NOTIFY 数据库变更监听
 * @architecture 事件驱动架构 - 发布订阅模式
 * @documentReference ai_docs/event_push.md
 * @stateFlow 业务事件/数据库变更 -> 频道分发 -> SSE 客户端推送
 * @rules 客户端按频道订阅(runs/anomalies/snapshots),事件持久化后广播,队列满时跳过不阻塞
 * @dependencies gorm.io/gorm, github.com/lib/pq, github.com/google/uuid
 * @refs api/controllers/event_controller.go, service/models/event.go
 */

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"warehouse-service/service/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SSEClient SSE 客户端连接
type SSEClient struct {
	ID       string
	Channels map[string]bool // 订阅的频道集合
	Events   chan *models.SSEEvent
	Done     chan bool
	ClientIP string
}

// SubscribedTo 判断客户端是否订阅了指定频道
func (c *SSEClient) SubscribedTo(channel string) bool {
	return c.Channels[channel]
}

// EventService 事件推送服务
type EventService struct {
	db      *gorm.DB
	mu      sync.RWMutex
	clients map[string]*SSEClient

	listenersMu sync.RWMutex
	listeners   []models.DBEventListener

	dbListener      *pq.Listener
	ctx             context.Context
	cancel          context.CancelFunc
	functionCreated bool
}

// NewEventService 创建事件推送服务实例
func NewEventService(db *gorm.DB) *EventService {
	ctx, cancel := context.WithCancel(context.Background())

	service := &EventService{
		db:      db,
		clients: make(map[string]*SSEClient),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := service.loadListeners(); err != nil {
		log.Printf("加载数据库事件监听配置失败: %v", err)
	}

	go service.startDBListener()
	go service.startHousekeeper()

	if err := service.ensureDatabaseTriggers(); err != nil {
		log.Printf("检查数据库触发器失败: %v", err)
	}

	return service
}

// === SSE 连接管理 ===

// AddSSEConnection 添加 SSE 连接,channels 为空时订阅全部频道
func (s *EventService) AddSSEConnection(channels []string, clientIP string) *SSEClient {
	if len(channels) == 0 {
		channels = []string{models.EventChannelRuns, models.EventChannelAnomalies, models.EventChannelSnapshots}
	}

	subscribed := make(map[string]bool, len(channels))
	for _, ch := range channels {
		subscribed[ch] = true
	}

	client := &SSEClient{
		ID:       uuid.New().String(),
		Channels: subscribed,
		Events:   make(chan *models.SSEEvent, 100),
		Done:     make(chan bool),
		ClientIP: clientIP,
	}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	log.Printf("SSE连接已建立: 连接ID=%s, IP=%s, 频道=%v", client.ID, clientIP, channels)
	return client
}

// RemoveSSEConnection 移除 SSE 连接
func (s *EventService) RemoveSSEConnection(connectionID string) {
	s.mu.Lock()
	client, exists := s.clients[connectionID]
	if exists {
		delete(s.clients, connectionID)
	}
	s.mu.Unlock()

	if exists {
		close(client.Done)
		log.Printf("SSE连接已断开: 连接ID=%s", connectionID)
	}
}

// ConnectionCount 当前活跃连接数
func (s *EventService) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// === 事件发布 ===

// PublishEvent 发布业务事件:持久化后向订阅了该频道的客户端广播
func (s *EventService) PublishEvent(channel, eventType string, payload interface{}) error {
	event := &models.SSEEvent{
		Channel:   channel,
		EventType: eventType,
		Data:      toJSONB(payload),
		CreatedAt: time.Now(),
	}

	if err := s.db.Create(event).Error; err != nil {
		log.Printf("保存事件失败: 频道=%s, 类型=%s, 错误=%v", channel, eventType, err)
		return fmt.Errorf("保存事件失败: %w", err)
	}

	delivered := s.broadcast(event)
	if delivered > 0 {
		now := time.Now()
		s.db.Model(event).Updates(map[string]interface{}{"sent": true, "sent_at": now})
	}

	return nil
}

// NotifyRunEvent 对账运行事件通知入口,供对账引擎回调
func (s *EventService) NotifyRunEvent(event *models.RunEvent) {
	payload := map[string]interface{}{
		"run_id":    event.RunID,
		"date":      event.Date,
		"timestamp": event.Timestamp,
	}
	for k, v := range event.Data {
		payload[k] = v
	}

	if err := s.PublishEvent(models.EventChannelRuns, event.EventType, payload); err != nil {
		log.Printf("推送对账运行事件失败: run_id=%s, 错误=%v", event.RunID, err)
	}
}

// broadcast 向订阅频道的客户端分发事件,返回送达的连接数
func (s *EventService) broadcast(event *models.SSEEvent) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for _, client := range s.clients {
		if !client.SubscribedTo(event.Channel) {
			continue
		}

		select {
		case client.Events <- event:
			delivered++
		default:
			log.Printf("连接 %s 事件队列已满，跳过发送", client.ID)
		}
	}

	return delivered
}

// GetEventHistory 查询事件历史,断线客户端重连后据此补齐
func (s *EventService) GetEventHistory(channel, eventType string, page, pageSize int) ([]models.SSEEvent, int64, error) {
	var events []models.SSEEvent
	var total int64

	query := s.db.Model(&models.SSEEvent{})
	if channel != "" {
		query = query.Where("channel = ?", channel)
	}
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&events).Error

	return events, total, err
}

// === 数据库变更监听 ===

// loadListeners 加载启用的数据库事件监听配置
func (s *EventService) loadListeners() error {
	var listeners []models.DBEventListener
	if err := s.db.Where("is_enabled = ?", true).Find(&listeners).Error; err != nil {
		return err
	}

	s.listenersMu.Lock()
	s.listeners = listeners
	s.listenersMu.Unlock()

	log.Printf("已加载 %d 个数据库事件监听配置", len(listeners))
	return nil
}

// startDBListener 启动 PostgreSQL 监听器
func (s *EventService) startDBListener() {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "warehouse2025")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	s.dbListener = pq.NewListener(connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("PostgreSQL监听器事件: %v, 错误: %v", ev, err)
		}
	})

	if err := s.dbListener.Listen("warehouse_changes"); err != nil {
		log.Printf("监听数据库通知失败: %v", err)
		return
	}

	log.Println("数据库监听器已启动")

	for {
		select {
		case notification := <-s.dbListener.Notify:
			if notification != nil {
				s.handleDBNotification(notification)
			}
		case <-s.ctx.Done():
			log.Println("数据库监听器已停止")
			return
		}
	}
}

// handleDBNotification 处理数据库变更通知,转换为对应频道的事件广播
func (s *EventService) handleDBNotification(notification *pq.Notification) {
	var changeData map[string]interface{}
	if err := json.Unmarshal([]byte(notification.Extra), &changeData); err != nil {
		log.Printf("解析数据库通知失败: %v", err)
		return
	}

	tableName, _ := changeData["table"].(string)
	eventType, _ := changeData["type"].(string)

	listener, ok := s.listenerFor(tableName, eventType)
	if !ok {
		return
	}

	// 数据库变更事件直接广播,不重复落库
	event := &models.SSEEvent{
		ID:        uuid.New().String(),
		Channel:   listener.Channel,
		EventType: fmt.Sprintf("db_%s", eventType),
		Data:      models.JSONB(changeData),
		CreatedAt: time.Now(),
	}
	s.broadcast(event)
}

// listenerFor 查找表与事件类型匹配的监听配置
func (s *EventService) listenerFor(tableName, eventType string) (*models.DBEventListener, bool) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()

	for i := range s.listeners {
		l := &s.listeners[i]
		if l.TableName != tableName {
			continue
		}
		for _, et := range l.EventTypes {
			if et == eventType {
				return l, true
			}
		}
	}
	return nil, false
}

// ReloadListeners 重新加载监听配置并补建触发器
func (s *EventService) ReloadListeners() error {
	if err := s.loadListeners(); err != nil {
		return err
	}
	return s.ensureDatabaseTriggers()
}

// === 连接维护 ===

// startHousekeeper 周期清理已断开的连接
func (s *EventService) startHousekeeper() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupInactiveConnections()
		case <-s.ctx.Done():
			return
		}
	}
}

// cleanupInactiveConnections 清理不活跃的连接
func (s *EventService) cleanupInactiveConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for connectionID, client := range s.clients {
		select {
		case <-client.Done:
			delete(s.clients, connectionID)
			log.Printf("清理已断开的连接: 连接ID=%s", connectionID)
		default:
		}
	}
}

// Stop 停止事件服务
func (s *EventService) Stop() {
	s.cancel()

	if s.dbListener != nil {
		s.dbListener.Close()
	}

	s.mu.Lock()
	for _, client := range s.clients {
		close(client.Done)
	}
	s.clients = make(map[string]*SSEClient)
	s.mu.Unlock()

	log.Println("事件服务已停止")
}

// === 数据库触发器管理 ===

// ensureDatabaseTriggers 为所有启用的监听配置检查并补建触发器
func (s *EventService) ensureDatabaseTriggers() error {
	s.listenersMu.RLock()
	tables := make([]string, 0, len(s.listeners))
	seen := make(map[string]bool)
	for _, l := range s.listeners {
		if !seen[l.TableName] {
			seen[l.TableName] = true
			tables = append(tables, l.TableName)
		}
	}
	s.listenersMu.RUnlock()

	for _, tableName := range tables {
		if err := s.checkTableTrigger(tableName); err != nil {
			log.Printf("检查表 %s 的触发器失败: %v", tableName, err)
		}
	}
	return nil
}

// checkTableTrigger 检查指定表的触发器,缺失时创建
func (s *EventService) checkTableTrigger(tableName string) error {
	triggerName := tableName + "_notify"

	var count int64
	err := s.db.Raw(`
		SELECT COUNT(*) FROM information_schema.triggers
		WHERE trigger_name = ? AND event_object_table = ?
	`, triggerName, tableName).Scan(&count).Error
	if err != nil {
		return fmt.Errorf("查询触发器失败: %w", err)
	}

	if count > 0 {
		return nil
	}

	log.Printf("表 %s 缺少触发器 %s，正在创建...", tableName, triggerName)
	if err := s.createTableTrigger(tableName); err != nil {
		return fmt.Errorf("创建表 %s 的触发器失败: %w", tableName, err)
	}
	log.Printf("成功创建表 %s 的触发器 %s", tableName, triggerName)
	return nil
}

// createTableTrigger 为指定表创建变更通知触发器
func (s *EventService) createTableTrigger(tableName string) error {
	if err := s.createNotifyFunction(); err != nil {
		return fmt.Errorf("创建通知函数失败: %w", err)
	}

	createTriggerSQL := fmt.Sprintf(`
		CREATE OR REPLACE TRIGGER %s_notify
		AFTER INSERT OR UPDATE OR DELETE ON %s
		FOR EACH ROW
		EXECUTE FUNCTION notify_warehouse_changes();
	`, tableName, tableName)

	if err := s.db.Exec(createTriggerSQL).Error; err != nil {
		return fmt.Errorf("执行创建触发器SQL失败: %w", err)
	}

	return nil
}

// createNotifyFunction 创建数据库通知函数
func (s *EventService) createNotifyFunction() error {
	if s.functionCreated {
		return nil
	}

	createFunctionSQL := `
CREATE OR REPLACE FUNCTION notify_warehouse_changes()
RETURNS TRIGGER AS $$
DECLARE
    record_id TEXT;
    payload JSON;
BEGIN
    IF TG_OP = 'DELETE' THEN
        record_id := OLD.id;
        payload := json_build_object(
            'table', TG_TABLE_NAME,
            'type', TG_OP,
            'record_id', record_id,
            'old_data', row_to_json(OLD),
            'timestamp', extract(epoch from now())
        );
    ELSE
        record_id := NEW.id;
        payload := json_build_object(
            'table', TG_TABLE_NAME,
            'type', TG_OP,
            'record_id', record_id,
            'new_data', row_to_json(NEW),
            'timestamp', extract(epoch from now())
        );
    END IF;

    PERFORM pg_notify('warehouse_changes', payload::text);

    IF TG_OP = 'DELETE' THEN
        RETURN OLD;
    ELSE
        RETURN NEW;
    END IF;
END;
$$ LANGUAGE plpgsql;`

	if err := s.db.Exec(createFunctionSQL).Error; err != nil {
		return fmt.Errorf("执行创建函数SQL失败: %w", err)
	}

	log.Println("数据库通知函数 notify_warehouse_changes() 已创建")
	s.functionCreated = true
	return nil
}

// toJSONB 将任意载荷转换为 JSONB 存储结构
func toJSONB(payload interface{}) models.JSONB {
	if payload == nil {
		return models.JSONB{}
	}
	if m, ok := payload.(map[string]interface{}); ok {
		return models.JSONB(m)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return models.JSONB{"value": fmt.Sprintf("%v", payload)}
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return models.JSONB{"value": string(data)}
	}
	return models.JSONB(m)
}

// getEnvWithDefault 获取环境变量,不存在时返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
