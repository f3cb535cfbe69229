package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/codec"
	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/mqtt"
)

// MessageSink 解码后事件的去向，与 HTTP 入口共用同一条处理链
type MessageSink interface {
	HandleMessage(rec models.Event)
}

// MQTTConsumer 旁路上报通道
// 部分网关部署在 NAT 后，回不了 HTTP，改走 MQTT 推送同样的事件 JSON
type MQTTConsumer struct {
	client  *mqtt.Client
	topic   string
	qos     byte
	decoder *codec.Decoder
	sink    MessageSink
	logger  *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	client *mqtt.Client,
	topic string,
	qos byte,
	decoder *codec.Decoder,
	sink MessageSink,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		client:  client,
		topic:   topic,
		qos:     qos,
		decoder: decoder,
		sink:    sink,
		logger:  logger,
	}
}

// Start 启动消费者，阻塞到上下文取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.client.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to event topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.topic),
	)

	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop() {
	if err := c.client.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.client.Disconnect()
	c.logger.Info("MQTT consumer stopped")
}

// handleMessage 处理一条MQTT消息
// 主题格式: smsweb/{devId}/event，固件走 MQTT 时常把 devId 只放在主题里，
// 载荷缺 devId 字段时从主题补上
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("%w: %v", codec.ErrDecode, err)
	}

	rec := models.Event(raw)
	if rec.DevID() == "" {
		if devID := devIDFromTopic(topic); devID != "" {
			rec["devId"] = devID
		}
	}

	rec, err := c.decoder.DecodeEvent(rec)
	if err != nil {
		return err
	}

	c.logger.Debug("Received MQTT event",
		zap.String("topic", topic),
		zap.String("dev_id", rec.DevID()),
		zap.Int("type", rec.Type()),
	)

	c.sink.HandleMessage(rec)
	return nil
}

func devIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 && parts[1] != "+" {
		return parts[1]
	}
	return ""
}
