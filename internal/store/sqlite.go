package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/telemetry"
)

// Store 内嵌关系存储
// 数据常驻内存（SQLite :memory:），每次写入后和定时器兜底时整库快照到磁盘。
// 进程在一次写入与其快照之间崩溃最多丢掉最后一批写入，这是接受的取舍，不是缺陷。
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	dirty chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dev_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		hw_ver TEXT NOT NULL DEFAULT '',
		last_ip TEXT NOT NULL DEFAULT '',
		last_ssid TEXT NOT NULL DEFAULT '',
		last_signal_level INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'online',
		last_seen_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sim_cards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dev_id TEXT NOT NULL,
		slot INTEGER NOT NULL,
		iccid TEXT NOT NULL DEFAULT '',
		imsi TEXT NOT NULL DEFAULT '',
		msisdn TEXT NOT NULL DEFAULT '',
		operator_plmn TEXT NOT NULL DEFAULT '',
		signal_level INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'unknown',
		timezone_offset_hours INTEGER,
		updated_at TEXT NOT NULL DEFAULT '',
		UNIQUE(dev_id, slot)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dev_id TEXT NOT NULL,
		type INTEGER NOT NULL,
		type_name TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sms_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dev_id TEXT NOT NULL,
		slot INTEGER NOT NULL DEFAULT 1,
		phone_num TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		sms_time TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL DEFAULT 'in',
		created_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS call_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dev_id TEXT NOT NULL,
		slot INTEGER NOT NULL DEFAULT 1,
		phone_num TEXT NOT NULL DEFAULT '',
		msg_type INTEGER NOT NULL DEFAULT 0,
		call_type TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL DEFAULT '',
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS notify_channels (
		name TEXT PRIMARY KEY,
		enabled INTEGER NOT NULL DEFAULT 0,
		config TEXT NOT NULL DEFAULT '{}',
		events TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_dev ON messages(dev_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sms_dev ON sms_records(dev_id)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_dev ON call_records(dev_id)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status, last_seen_at)`,
}

// 快照恢复时按表拷贝
var tableNames = []string{
	"devices", "sim_cards", "messages", "sms_records", "call_records", "notify_channels",
}

// Open 打开存储：建表、装载已有快照（如存在）、预置渠道行、启动快照协程
func Open(path string, snapshotInterval time.Duration, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// :memory: 数据挂在连接上，连接池必须钉死单连接且永不回收，
	// 顺带把所有读写串行化
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	s := &Store{
		db:     db,
		path:   path,
		logger: logger,
		dirty:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	if err := s.restore(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to restore snapshot: %w", err)
	}
	if err := s.seedChannels(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed channels: %w", err)
	}

	s.wg.Add(1)
	go s.snapshotLoop(snapshotInterval)

	return s, nil
}

// Exec 执行写语句并触发快照
func (s *Store) Exec(query string, args ...any) (sql.Result, error) {
	res, err := s.db.Exec(query, args...)
	if err == nil {
		s.markDirty()
	}
	return res, err
}

// Query 执行查询
func (s *Store) Query(query string, args ...any) (*sql.Rows, error) {
	return s.db.Query(query, args...)
}

// QueryRow 执行单行查询
func (s *Store) QueryRow(query string, args ...any) *sql.Row {
	return s.db.QueryRow(query, args...)
}

// Close 停止快照协程，落一次最终快照后关库
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()

	if err := s.snapshot(); err != nil {
		s.logger.Error("Final snapshot failed", zap.Error(err))
	}
	return s.db.Close()
}

// markDirty 合并写信号：已有待处理信号时直接丢弃
func (s *Store) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Store) snapshotLoop(interval time.Duration) {
	defer s.wg.Done()

	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.dirty:
			if err := s.snapshot(); err != nil {
				s.logger.Error("Write-triggered snapshot failed", zap.Error(err))
			}
		case <-ticker.C:
			if err := s.snapshot(); err != nil {
				s.logger.Error("Timer snapshot failed", zap.Error(err))
			}
		case <-s.done:
			return
		}
	}
}

// snapshot 整库序列化：VACUUM INTO 临时文件后原子改名
func (s *Store) snapshot() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmp := s.path + ".tmp"
	_ = os.Remove(tmp)

	if _, err := s.db.Exec("VACUUM INTO ?", tmp); err != nil {
		return fmt.Errorf("failed to vacuum into %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// restore 启动时整库装载快照（如存在）
func (s *Store) restore() error {
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); err != nil {
		return nil
	}

	if _, err := s.db.Exec("ATTACH DATABASE ? AS snap", s.path); err != nil {
		return fmt.Errorf("failed to attach snapshot: %w", err)
	}
	defer s.db.Exec("DETACH DATABASE snap")

	for _, table := range tableNames {
		var count int
		err := s.db.QueryRow(
			"SELECT COUNT(*) FROM snap.sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(&count)
		if err != nil || count == 0 {
			continue
		}
		if _, err := s.db.Exec("INSERT INTO " + table + " SELECT * FROM snap." + table); err != nil {
			return fmt.Errorf("failed to restore table %s: %w", table, err)
		}
	}

	s.logger.Info("Restored snapshot", zap.String("path", s.path))
	return nil
}

// seedChannels 为每个已知渠道确保有一行零配置记录
func (s *Store) seedChannels() error {
	now := telemetry.CanonicalNow()
	for _, name := range models.KnownChannels {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO notify_channels (name, enabled, config, events, updated_at)
			 VALUES (?, 0, '{}', '[]', ?)`,
			name, now,
		)
		if err != nil {
			return fmt.Errorf("failed to seed channel %s: %w", name, err)
		}
	}
	return nil
}
