/*
 * @module service/notify/kafka_notifier
 * @description Kafka 事件发布器,对账运行结束与异常变更事件向下游消息总线广播
 * @architecture 适配器模式 - 封装 kafka-go 生产者
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 事件产生 -> JSON 序列化 -> 按日期键发送 -> 下游消费
 * @rules 未配置 KAFKA_BROKERS 时发布器静默停用;发送失败只记日志不影响主流程
 * @dependencies github.com/segmentio/kafka-go
 * @refs service/reconcile/engine.go, service/init.go
 */

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"warehouse-service/service/models"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier Kafka 事件发布器
type KafkaNotifier struct {
	brokers []string
	topic   string
	writer  *kafka.Writer
	mu      sync.Mutex
}

// NewKafkaNotifier 创建发布器,连接参数取环境变量
// KAFKA_BROKERS 逗号分隔;为空时返回停用的发布器
func NewKafkaNotifier() *KafkaNotifier {
	brokersRaw := os.Getenv("KAFKA_BROKERS")
	topic := getEnvWithDefault("KAFKA_TOPIC", "warehouse.reconcile.events")

	n := &KafkaNotifier{topic: topic}
	if brokersRaw == "" {
		slog.Info("未配置 KAFKA_BROKERS,事件发布停用")
		return n
	}

	for _, b := range strings.Split(brokersRaw, ",") {
		if broker := strings.TrimSpace(b); broker != "" {
			n.brokers = append(n.brokers, broker)
		}
	}
	if len(n.brokers) == 0 {
		return n
	}

	n.writer = &kafka.Writer{
		Addr:         kafka.TCP(n.brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 100 * time.Millisecond,
	}

	slog.Info("Kafka 事件发布器已启用", "brokers", n.brokers, "topic", topic)
	return n
}

// Enabled 是否启用
func (n *KafkaNotifier) Enabled() bool {
	return n.writer != nil
}

// Publish 发送一条事件消息
func (n *KafkaNotifier) Publish(ctx context.Context, key string, payload interface{}) error {
	if !n.Enabled() {
		return nil
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("事件序列化失败: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("事件发送失败: %w", err)
	}
	return nil
}

// PublishRunEvent 发布对账运行事件,失败只告警
func (n *KafkaNotifier) PublishRunEvent(event *models.RunEvent) {
	if !n.Enabled() || event == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := n.Publish(ctx, event.Date, event); err != nil {
		slog.Warn("对账事件发布失败", "run_id", event.RunID, "event_type", event.EventType, "error", err)
	}
}

// Close 关闭生产者
func (n *KafkaNotifier) Close() error {
	if n.writer == nil {
		return nil
	}
	return n.writer.Close()
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
