package config

import (
	"os"
	"strconv"
)

// Config 服务配置
type Config struct {
	HTTP struct {
		Addr string
	}

	Store struct {
		SnapshotPath     string
		SnapshotInterval int // 秒，定时快照兜底间隔
	}

	Sweeper struct {
		Interval       int // 秒，离线巡检周期
		OfflineTimeout int // 秒，超过该时长未上报判定离线
	}

	// 传输解密配置，Key/IV 支持 ASCII、十进制数组、十六进制数组三种写法
	Crypto struct {
		Enabled bool
		Key     string
		IV      string
	}

	// 原始事件审计日志开关（关闭后其余链路行为不变）
	RawMessageLog bool

	MQTT struct {
		Enabled  bool
		Broker   string
		ClientID string
		Username string
		Password string
		Topic    string
		QoS      byte
	}

	// Redis 可选，仅用于通知去重缓存；Addr 为空时使用内存实现
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Notify struct {
		Timeout   int // 秒，单渠道投递超时
		QueueSize int // 通知队列容量
		DedupTTL  int // 秒，至多一次去重键有效期
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Store.SnapshotPath = getEnv("SNAPSHOT_PATH", "data/sms-web.db")
	cfg.Store.SnapshotInterval = getEnvInt("SNAPSHOT_INTERVAL", 30)

	cfg.Sweeper.Interval = getEnvInt("SWEEP_INTERVAL", 300)
	cfg.Sweeper.OfflineTimeout = getEnvInt("OFFLINE_TIMEOUT", 600)

	cfg.Crypto.Enabled = getEnvBool("CRYPTO_ENABLED", false)
	cfg.Crypto.Key = getEnv("CRYPTO_KEY", "")
	cfg.Crypto.IV = getEnv("CRYPTO_IV", "")

	cfg.RawMessageLog = getEnvBool("RAW_MESSAGE_LOG", true)

	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", false)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "sms-web")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "smsweb/+/event")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Notify.Timeout = getEnvInt("NOTIFY_TIMEOUT", 10)
	cfg.Notify.QueueSize = getEnvInt("NOTIFY_QUEUE_SIZE", 256)
	cfg.Notify.DedupTTL = getEnvInt("NOTIFY_DEDUP_TTL", 3600)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
