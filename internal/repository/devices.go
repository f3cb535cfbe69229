package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/telemetry"
)

// DeviceRepository 设备仓库
type DeviceRepository struct {
	db     DB
	logger *zap.Logger
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{db: db, logger: logger}
}

// GetByDevID 按设备标识查询
func (r *DeviceRepository) GetByDevID(devID string) (*models.Device, error) {
	query := `
		SELECT
			id, dev_id, name, hw_ver, last_ip, last_ssid,
			last_signal_level, status, last_seen_at, created_at, updated_at
		FROM devices
		WHERE dev_id = ?
		LIMIT 1
	`

	d := &models.Device{}
	err := r.db.QueryRow(query, devID).Scan(
		&d.ID, &d.DevID, &d.Name, &d.HwVer, &d.LastIP, &d.LastSSID,
		&d.LastSignalLevel, &d.Status, &d.LastSeenAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("device %s: %w", devID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	return d, nil
}

// Ensure 设备不存在则自动建档（首个事件触发，先查后插，不依赖唯一约束报错做控制流）
func (r *DeviceRepository) Ensure(devID string) error {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM devices WHERE dev_id = ?", devID).Scan(&count); err != nil {
		return fmt.Errorf("failed to check device existence: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := telemetry.CanonicalNow()
	_, err := r.db.Exec(
		`INSERT INTO devices (dev_id, name, status, last_seen_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		devID, devID, models.DeviceStatusOnline, now, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}

	r.logger.Info("Auto-registered device", zap.String("dev_id", devID))
	return nil
}

// UpdateNetworkState 联网事件的设备状态落库
// 空字符串不覆盖已知字段，signalLevel 传负值表示未携带
func (r *DeviceRepository) UpdateNetworkState(devID, ip, ssid, hwVer string, signalLevel int) error {
	if err := r.Ensure(devID); err != nil {
		return err
	}

	now := telemetry.CanonicalNow()
	_, err := r.db.Exec(
		`UPDATE devices SET
			last_ip = COALESCE(NULLIF(?, ''), last_ip),
			last_ssid = COALESCE(NULLIF(?, ''), last_ssid),
			hw_ver = COALESCE(NULLIF(?, ''), hw_ver),
			last_signal_level = CASE WHEN ? >= 0 THEN ? ELSE last_signal_level END,
			status = ?,
			last_seen_at = ?,
			updated_at = ?
		 WHERE dev_id = ?`,
		ip, ssid, hwVer, signalLevel, signalLevel,
		models.DeviceStatusOnline, now, now, devID,
	)
	if err != nil {
		return fmt.Errorf("failed to update network state: %w", err)
	}
	return nil
}

// TouchLastSeen 任何事件都会刷新在线状态与最后上报时间
func (r *DeviceRepository) TouchLastSeen(devID string) error {
	if err := r.Ensure(devID); err != nil {
		return err
	}

	now := telemetry.CanonicalNow()
	_, err := r.db.Exec(
		`UPDATE devices SET status = ?, last_seen_at = ?, updated_at = ? WHERE dev_id = ?`,
		models.DeviceStatusOnline, now, now, devID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	return nil
}

// MarkOffline 把最后上报早于 cutoff 的在线设备批量置为离线，返回影响行数
// 与上报写入并发执行时 last-write-wins，由单连接串行化兜底
func (r *DeviceRepository) MarkOffline(cutoff string) (int64, error) {
	res, err := r.db.Exec(
		`UPDATE devices SET status = ?, updated_at = ?
		 WHERE status = ? AND last_seen_at < ?`,
		models.DeviceStatusOffline, telemetry.CanonicalNow(),
		models.DeviceStatusOnline, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark devices offline: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
