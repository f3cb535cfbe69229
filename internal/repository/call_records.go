package repository

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/telemetry"
)

// CallRecordRepository 通话记录，仅追加
type CallRecordRepository struct {
	db     DB
	logger *zap.Logger
}

// NewCallRecordRepository 创建通话记录仓库
func NewCallRecordRepository(db DB, logger *zap.Logger) *CallRecordRepository {
	return &CallRecordRepository{db: db, logger: logger}
}

// Append 追加一条通话记录
func (r *CallRecordRepository) Append(rec *models.CallRecord) error {
	_, err := r.db.Exec(
		`INSERT INTO call_records
			(dev_id, slot, phone_num, msg_type, call_type, start_time, duration_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DevID, rec.Slot, rec.PhoneNum, rec.MsgType, rec.CallType,
		rec.StartTime, rec.DurationSeconds, telemetry.CanonicalNow(),
	)
	if err != nil {
		return fmt.Errorf("failed to append call record: %w", err)
	}
	return nil
}
