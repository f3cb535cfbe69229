package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
)

// SMTPSender 邮件渠道，HTML 正文
// 渠道 config 字段：host、port、username、password、from、to（逗号分隔）、tls
type SMTPSender struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewSMTPSender 创建邮件投递器
func NewSMTPSender(timeout time.Duration, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{timeout: timeout, logger: logger}
}

func (s *SMTPSender) Name() string { return models.ChannelSMTP }

// Send 投递一封 HTML 邮件
func (s *SMTPSender) Send(ctx context.Context, cfg *models.ChannelConfig, title, body string) error {
	host := cfg.Config["host"]
	if host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	port := cfg.Config["port"]
	if port == "" {
		port = "25"
	}
	from := cfg.Config["from"]
	if from == "" {
		from = cfg.Config["username"]
	}
	to := splitAddrs(cfg.Config["to"])
	if len(to) == 0 {
		return fmt.Errorf("smtp recipients not configured")
	}

	addr := host + ":" + port

	var (
		client *smtp.Client
		err    error
	)
	if cfg.Config["tls"] == "true" {
		client, err = smtp.DialTLS(addr, &tls.Config{ServerName: host})
	} else {
		client, err = smtp.Dial(addr)
	}
	if err != nil {
		return fmt.Errorf("could not connect to smtp server: %w", err)
	}
	defer client.Close()

	client.CommandTimeout = s.timeout
	client.SubmissionTimeout = s.timeout

	if user := cfg.Config["username"]; user != "" {
		if err := client.Auth(sasl.NewLoginClient(user, cfg.Config["password"])); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(from, nil); err != nil {
		return fmt.Errorf("smtp server rejected mail from %q: %w", from, err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("smtp server rejected mail to %q: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp server rejected mail data: %w", err)
	}
	if _, err := writer.Write([]byte(buildHTMLMail(from, to, title, body))); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write mail body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish mail body: %w", err)
	}

	return client.Quit()
}

// buildHTMLMail 拼 MIME 头和 HTML 正文
func buildHTMLMail(from string, to []string, title, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", title)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")

	fmt.Fprintf(&b, "<h3>%s</h3>\n", html.EscapeString(title))
	for _, line := range strings.Split(body, "\n") {
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(line))
	}
	return b.String()
}

func splitAddrs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
