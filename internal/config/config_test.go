package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "data/sms-web.db", cfg.Store.SnapshotPath)
	assert.Equal(t, 30, cfg.Store.SnapshotInterval)

	assert.Equal(t, 300, cfg.Sweeper.Interval)
	assert.Equal(t, 600, cfg.Sweeper.OfflineTimeout)

	assert.False(t, cfg.Crypto.Enabled)
	assert.Equal(t, "", cfg.Crypto.Key)
	assert.True(t, cfg.RawMessageLog)

	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "smsweb/+/event", cfg.MQTT.Topic)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, "", cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.Notify.Timeout)
	assert.Equal(t, 256, cfg.Notify.QueueSize)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("SNAPSHOT_PATH", "/tmp/test.db")
	os.Setenv("SNAPSHOT_INTERVAL", "60")
	os.Setenv("OFFLINE_TIMEOUT", "120")
	os.Setenv("CRYPTO_ENABLED", "true")
	os.Setenv("CRYPTO_KEY", "0123456789abcdef")
	os.Setenv("RAW_MESSAGE_LOG", "false")
	os.Setenv("MQTT_ENABLED", "true")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "/tmp/test.db", cfg.Store.SnapshotPath)
	assert.Equal(t, 60, cfg.Store.SnapshotInterval)
	assert.Equal(t, 120, cfg.Sweeper.OfflineTimeout)
	assert.True(t, cfg.Crypto.Enabled)
	assert.Equal(t, "0123456789abcdef", cfg.Crypto.Key)
	assert.False(t, cfg.RawMessageLog)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	os.Clearenv()
	os.Setenv("SNAPSHOT_INTERVAL", "not-a-number")
	os.Setenv("NOTIFY_TIMEOUT", "")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Store.SnapshotInterval)
	assert.Equal(t, 10, cfg.Notify.Timeout)
}
