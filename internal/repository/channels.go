package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/telemetry"
)

// ChannelRepository 通知渠道配置，每个渠道名恰好一行
type ChannelRepository struct {
	db     DB
	logger *zap.Logger
}

// NewChannelRepository 创建渠道配置仓库
func NewChannelRepository(db DB, logger *zap.Logger) *ChannelRepository {
	return &ChannelRepository{db: db, logger: logger}
}

// Save 保存渠道配置
// ON CONFLICT upsert，避免先更新后插入的竞态丢配置
func (r *ChannelRepository) Save(cfg *models.ChannelConfig) error {
	configJSON, err := json.Marshal(cfg.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal channel config: %w", err)
	}
	eventsJSON, err := json.Marshal(cfg.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal channel events: %w", err)
	}

	enabled := 0
	if cfg.Enabled {
		enabled = 1
	}

	_, err = r.db.Exec(
		`INSERT INTO notify_channels (name, enabled, config, events, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name)
		 DO UPDATE SET enabled = excluded.enabled,
		               config = excluded.config,
		               events = excluded.events,
		               updated_at = excluded.updated_at`,
		cfg.Name, enabled, string(configJSON), string(eventsJSON), telemetry.CanonicalNow(),
	)
	if err != nil {
		return fmt.Errorf("failed to save channel %s: %w", cfg.Name, err)
	}
	return nil
}

// Get 按渠道名查询
func (r *ChannelRepository) Get(name string) (*models.ChannelConfig, error) {
	row := r.db.QueryRow(
		`SELECT name, enabled, config, events, updated_at FROM notify_channels WHERE name = ?`,
		name,
	)
	cfg, err := scanChannel(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("channel %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query channel: %w", err)
	}
	return cfg, nil
}

// List 全部渠道配置
func (r *ChannelRepository) List() ([]*models.ChannelConfig, error) {
	rows, err := r.db.Query(
		`SELECT name, enabled, config, events, updated_at FROM notify_channels ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var out []*models.ChannelConfig
	for rows.Next() {
		cfg, err := scanChannel(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// ListEnabledFor 订阅了指定事件且已启用的渠道
// events 存的是 JSON 数组文本，过滤放在内存里做
func (r *ChannelRepository) ListEnabledFor(event string) ([]*models.ChannelConfig, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}

	var out []*models.ChannelConfig
	for _, cfg := range all {
		if cfg.Enabled && cfg.Subscribes(event) {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func scanChannel(scan func(dest ...any) error) (*models.ChannelConfig, error) {
	var (
		cfg        models.ChannelConfig
		enabled    int
		configJSON string
		eventsJSON string
	)
	if err := scan(&cfg.Name, &enabled, &configJSON, &eventsJSON, &cfg.UpdatedAt); err != nil {
		return nil, err
	}

	cfg.Enabled = enabled != 0
	cfg.Config = map[string]string{}
	cfg.Events = nil
	// 历史数据可能是空串或残缺 JSON，解析失败按零值处理
	_ = json.Unmarshal([]byte(configJSON), &cfg.Config)
	_ = json.Unmarshal([]byte(eventsJSON), &cfg.Events)

	return &cfg, nil
}
