package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
)

// FeishuSender 飞书群机器人，交互式卡片消息
type FeishuSender struct {
	client *resty.Client
	logger *zap.Logger
}

// NewFeishuSender 创建飞书投递器
func NewFeishuSender(timeout time.Duration, logger *zap.Logger) *FeishuSender {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &FeishuSender{client: client, logger: logger}
}

func (s *FeishuSender) Name() string { return models.ChannelFeishu }

// Send 投递一张卡片，响应 code 非零视为失败
func (s *FeishuSender) Send(ctx context.Context, cfg *models.ChannelConfig, title, body string) error {
	webhookURL := cfg.Config["webhook_url"]
	if webhookURL == "" {
		return fmt.Errorf("feishu webhook_url not configured")
	}

	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title":    map[string]any{"tag": "plain_text", "content": title},
				"template": "blue",
			},
			"elements": []any{
				map[string]any{
					"tag":  "div",
					"text": map[string]any{"tag": "lark_md", "content": body},
				},
			},
		},
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post(webhookURL)
	if err != nil {
		return fmt.Errorf("failed to call feishu webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("feishu webhook returned status %d", resp.StatusCode())
	}
	if result.Code != 0 {
		return fmt.Errorf("feishu webhook error %d: %s", result.Code, result.Msg)
	}
	return nil
}
