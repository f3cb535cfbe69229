package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
)

// WeComSender 企业微信群机器人，纯文本消息
type WeComSender struct {
	client *resty.Client
	logger *zap.Logger
}

// NewWeComSender 创建企业微信投递器
func NewWeComSender(timeout time.Duration, logger *zap.Logger) *WeComSender {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &WeComSender{client: client, logger: logger}
}

func (s *WeComSender) Name() string { return models.ChannelWeCom }

// Send 投递一条文本消息，响应 errcode 非零视为失败
func (s *WeComSender) Send(ctx context.Context, cfg *models.ChannelConfig, title, body string) error {
	webhookURL := cfg.Config["webhook_url"]
	if webhookURL == "" {
		return fmt.Errorf("wecom webhook_url not configured")
	}

	payload := map[string]any{
		"msgtype": "text",
		"text": map[string]any{
			"content": title + "\n" + body,
		},
	}

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post(webhookURL)
	if err != nil {
		return fmt.Errorf("failed to call wecom webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("wecom webhook returned status %d", resp.StatusCode())
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("wecom webhook error %d: %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}
