package repository

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/telemetry"
)

// SmsRecordRepository 短信记录，仅追加
type SmsRecordRepository struct {
	db     DB
	logger *zap.Logger
}

// NewSmsRecordRepository 创建短信记录仓库
func NewSmsRecordRepository(db DB, logger *zap.Logger) *SmsRecordRepository {
	return &SmsRecordRepository{db: db, logger: logger}
}

// Append 追加一条短信记录
func (r *SmsRecordRepository) Append(rec *models.SmsRecord) error {
	_, err := r.db.Exec(
		`INSERT INTO sms_records (dev_id, slot, phone_num, content, sms_time, direction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.DevID, rec.Slot, rec.PhoneNum, rec.Content, rec.SmsTime,
		rec.Direction, telemetry.CanonicalNow(),
	)
	if err != nil {
		return fmt.Errorf("failed to append sms record: %w", err)
	}
	return nil
}
