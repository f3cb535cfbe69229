package repository

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/telemetry"
)

// MessageRepository 原始事件审计日志，仅追加
type MessageRepository struct {
	db     DB
	logger *zap.Logger
}

// NewMessageRepository 创建审计日志仓库
func NewMessageRepository(db DB, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{db: db, logger: logger}
}

// Append 追加一条审计记录
func (r *MessageRepository) Append(msg *models.Message) error {
	_, err := r.db.Exec(
		`INSERT INTO messages (dev_id, type, type_name, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.DevID, msg.Type, msg.TypeName, msg.Payload, telemetry.CanonicalNow(),
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// CountByDevID 某设备的审计条数
func (r *MessageRepository) CountByDevID(devID string) (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM messages WHERE dev_id = ?", devID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
