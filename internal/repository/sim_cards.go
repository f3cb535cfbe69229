package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/telemetry"
)

// SimCardRepository SIM 卡仓库，按 (dev_id, slot) 唯一
type SimCardRepository struct {
	db     DB
	logger *zap.Logger
}

// NewSimCardRepository 创建 SIM 卡仓库
func NewSimCardRepository(db DB, logger *zap.Logger) *SimCardRepository {
	return &SimCardRepository{db: db, logger: logger}
}

// GetBySlot 按 (dev_id, slot) 查询
func (r *SimCardRepository) GetBySlot(devID string, slot int) (*models.SimCard, error) {
	query := `
		SELECT
			id, dev_id, slot, iccid, imsi, msisdn, operator_plmn,
			signal_level, status, timezone_offset_hours, updated_at
		FROM sim_cards
		WHERE dev_id = ? AND slot = ?
		LIMIT 1
	`

	c := &models.SimCard{}
	var tz sql.NullInt64
	err := r.db.QueryRow(query, devID, slot).Scan(
		&c.ID, &c.DevID, &c.Slot, &c.ICCID, &c.IMSI, &c.MSISDN, &c.OperatorPLMN,
		&c.SignalLevel, &c.Status, &tz, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sim card %s/%d: %w", devID, slot, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query sim card: %w", err)
	}
	if tz.Valid {
		hours := int(tz.Int64)
		c.TimezoneOffsetHours = &hours
	}
	return c, nil
}

// MergeUpsert 增量合并写入
// 字符串字段非空才覆盖，signal_level 传负值表示未携带；
// 多次事件各带一部分字段时逐步拼出完整记录，已知字段不会被空值冲掉
func (r *SimCardRepository) MergeUpsert(card *models.SimCard) error {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM sim_cards WHERE dev_id = ? AND slot = ?",
		card.DevID, card.Slot,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check sim card existence: %w", err)
	}

	now := telemetry.CanonicalNow()
	if count == 0 {
		status := card.Status
		if status == "" {
			status = models.SimStatusUnknown
		}
		signal := card.SignalLevel
		if signal < 0 {
			signal = 0
		}
		_, err = r.db.Exec(
			`INSERT INTO sim_cards
				(dev_id, slot, iccid, imsi, msisdn, operator_plmn, signal_level, status, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			card.DevID, card.Slot, card.ICCID, card.IMSI, card.MSISDN,
			card.OperatorPLMN, signal, status, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sim card: %w", err)
		}
		return nil
	}

	_, err = r.db.Exec(
		`UPDATE sim_cards SET
			iccid = COALESCE(NULLIF(?, ''), iccid),
			imsi = COALESCE(NULLIF(?, ''), imsi),
			msisdn = COALESCE(NULLIF(?, ''), msisdn),
			operator_plmn = COALESCE(NULLIF(?, ''), operator_plmn),
			signal_level = CASE WHEN ? >= 0 THEN ? ELSE signal_level END,
			status = COALESCE(NULLIF(?, ''), status),
			updated_at = ?
		 WHERE dev_id = ? AND slot = ?`,
		card.ICCID, card.IMSI, card.MSISDN, card.OperatorPLMN,
		card.SignalLevel, card.SignalLevel, card.Status, now,
		card.DevID, card.Slot,
	)
	if err != nil {
		return fmt.Errorf("failed to merge sim card: %w", err)
	}
	return nil
}

// SetTimezoneOffset 运营侧为某张卡配置来源时区（小时，东正西负），nil 清除
func (r *SimCardRepository) SetTimezoneOffset(devID string, slot int, hours *int) error {
	var val any
	if hours != nil {
		val = *hours
	}
	_, err := r.db.Exec(
		`UPDATE sim_cards SET timezone_offset_hours = ?, updated_at = ? WHERE dev_id = ? AND slot = ?`,
		val, telemetry.CanonicalNow(), devID, slot,
	)
	if err != nil {
		return fmt.Errorf("failed to set timezone offset: %w", err)
	}
	return nil
}

// LookupTimezoneOffset 解析某条事件生效的来源时区
// 优先级：(dev_id, slot) 精确命中 → (dev_id, imsi) → 该设备任一非空配置 → 0
func (r *SimCardRepository) LookupTimezoneOffset(devID string, slot int, imsi string) int {
	var tz sql.NullInt64

	err := r.db.QueryRow(
		`SELECT timezone_offset_hours FROM sim_cards
		 WHERE dev_id = ? AND slot = ? AND timezone_offset_hours IS NOT NULL
		 LIMIT 1`,
		devID, slot,
	).Scan(&tz)
	if err == nil && tz.Valid {
		return int(tz.Int64)
	}

	if imsi != "" {
		err = r.db.QueryRow(
			`SELECT timezone_offset_hours FROM sim_cards
			 WHERE dev_id = ? AND imsi = ? AND timezone_offset_hours IS NOT NULL
			 LIMIT 1`,
			devID, imsi,
		).Scan(&tz)
		if err == nil && tz.Valid {
			return int(tz.Int64)
		}
	}

	err = r.db.QueryRow(
		`SELECT timezone_offset_hours FROM sim_cards
		 WHERE dev_id = ? AND timezone_offset_hours IS NOT NULL
		 ORDER BY slot
		 LIMIT 1`,
		devID,
	).Scan(&tz)
	if err == nil && tz.Valid {
		return int(tz.Int64)
	}

	return 0
}
