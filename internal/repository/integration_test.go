package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/store"
)

// 真库集成测试：仓库跑在单连接内存 SQLite 上，校验 SQL 与 schema 的契合

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), time.Hour, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDeviceRepository_EnsureIdempotent(t *testing.T) {
	s := openTestStore(t)
	repo := NewDeviceRepository(s, zap.NewNop())

	require.NoError(t, repo.Ensure("GW-100"))
	require.NoError(t, repo.Ensure("GW-100"))
	require.NoError(t, repo.Ensure("GW-100"))

	var count int
	err := s.QueryRow("SELECT COUNT(*) FROM devices WHERE dev_id = ?", "GW-100").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	d, err := repo.GetByDevID("GW-100")
	require.NoError(t, err)
	assert.Equal(t, "GW-100", d.Name)
	assert.Equal(t, models.DeviceStatusOnline, d.Status)
}

func TestDeviceRepository_NetworkStateMerge(t *testing.T) {
	s := openTestStore(t)
	repo := NewDeviceRepository(s, zap.NewNop())

	require.NoError(t, repo.UpdateNetworkState("GW-100", "10.0.0.2", "lab", "v1.0", 18))
	// 后续事件缺 ssid 与信号：已知值不被冲掉
	require.NoError(t, repo.UpdateNetworkState("GW-100", "10.0.0.9", "", "", -1))

	d, err := repo.GetByDevID("GW-100")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", d.LastIP)
	assert.Equal(t, "lab", d.LastSSID)
	assert.Equal(t, "v1.0", d.HwVer)
	assert.Equal(t, 18, d.LastSignalLevel)
}

func TestDeviceRepository_MarkOfflineSweep(t *testing.T) {
	s := openTestStore(t)
	repo := NewDeviceRepository(s, zap.NewNop())

	require.NoError(t, repo.Ensure("GW-old"))
	require.NoError(t, repo.Ensure("GW-fresh"))
	_, err := s.Exec("UPDATE devices SET last_seen_at = ? WHERE dev_id = ?",
		"2020-01-01 00:00:00", "GW-old")
	require.NoError(t, err)

	n, err := repo.MarkOffline("2025-01-01 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	old, err := repo.GetByDevID("GW-old")
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOffline, old.Status)

	fresh, err := repo.GetByDevID("GW-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOnline, fresh.Status)

	// 已离线设备不再重复计数
	n, err = repo.MarkOffline("2025-01-01 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSimCardRepository_MergeAcrossEvents(t *testing.T) {
	s := openTestStore(t)
	repo := NewSimCardRepository(s, zap.NewNop())

	// 第一条事件只带 iccid
	require.NoError(t, repo.MergeUpsert(&models.SimCard{
		DevID: "GW-100", Slot: 1, ICCID: "8986001", SignalLevel: -1,
		Status: models.SimStatusRegistering,
	}))
	// 第二条只带 imsi 和信号
	require.NoError(t, repo.MergeUpsert(&models.SimCard{
		DevID: "GW-100", Slot: 1, IMSI: "460001234", SignalLevel: 25,
		Status: models.SimStatusReady,
	}))

	c, err := repo.GetBySlot("GW-100", 1)
	require.NoError(t, err)
	assert.Equal(t, "8986001", c.ICCID)
	assert.Equal(t, "460001234", c.IMSI)
	assert.Equal(t, 25, c.SignalLevel)
	assert.Equal(t, models.SimStatusReady, c.Status)

	var count int
	require.NoError(t, s.QueryRow("SELECT COUNT(*) FROM sim_cards").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSimCardRepository_TimezonePrecedence(t *testing.T) {
	s := openTestStore(t)
	repo := NewSimCardRepository(s, zap.NewNop())

	require.NoError(t, repo.MergeUpsert(&models.SimCard{DevID: "GW-100", Slot: 1, IMSI: "460001"}))
	require.NoError(t, repo.MergeUpsert(&models.SimCard{DevID: "GW-100", Slot: 2, IMSI: "460002"}))

	// 未配置任何时区：默认 0
	assert.Equal(t, 0, repo.LookupTimezoneOffset("GW-100", 1, "460001"))

	// 仅 slot 2 配了 -5：slot 1 查询走设备兜底，slot 2 精确命中
	west := -5
	require.NoError(t, repo.SetTimezoneOffset("GW-100", 2, &west))
	assert.Equal(t, -5, repo.LookupTimezoneOffset("GW-100", 2, ""))
	assert.Equal(t, -5, repo.LookupTimezoneOffset("GW-100", 1, ""))

	// slot 1 配了 8 后精确命中优先
	east := 8
	require.NoError(t, repo.SetTimezoneOffset("GW-100", 1, &east))
	assert.Equal(t, 8, repo.LookupTimezoneOffset("GW-100", 1, ""))

	// imsi 命中优先于设备兜底
	assert.Equal(t, -5, repo.LookupTimezoneOffset("GW-100", 9, "460002"))

	// 清除后回落
	require.NoError(t, repo.SetTimezoneOffset("GW-100", 1, nil))
	assert.Equal(t, -5, repo.LookupTimezoneOffset("GW-100", 1, "460002"))
}

func TestRecordRepositories_AppendAndCount(t *testing.T) {
	s := openTestStore(t)
	msgs := NewMessageRepository(s, zap.NewNop())
	sms := NewSmsRecordRepository(s, zap.NewNop())
	calls := NewCallRecordRepository(s, zap.NewNop())

	require.NoError(t, msgs.Append(&models.Message{
		DevID: "GW-100", Type: 501, TypeName: "sms received", Payload: `{"type":501}`,
	}))
	require.NoError(t, msgs.Append(&models.Message{
		DevID: "GW-100", Type: 998, TypeName: "heartbeat", Payload: `{"type":998}`,
	}))

	n, err := msgs.CountByDevID("GW-100")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, sms.Append(&models.SmsRecord{
		DevID: "GW-100", Slot: 1, PhoneNum: "10086", Content: "hi",
		SmsTime: "2023-11-15 06:13:20", Direction: models.SmsDirectionIn,
	}))
	require.NoError(t, calls.Append(&models.CallRecord{
		DevID: "GW-100", Slot: 1, PhoneNum: "10086", MsgType: 603,
		CallType: "remote hangup", StartTime: "2023-11-15 06:13:20", DurationSeconds: 42,
	}))

	var got string
	require.NoError(t, s.QueryRow("SELECT direction FROM sms_records WHERE dev_id = ?", "GW-100").Scan(&got))
	assert.Equal(t, models.SmsDirectionIn, got)
}

func TestChannelRepository_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	repo := NewChannelRepository(s, zap.NewNop())

	// 建库时三个已知渠道已占位，默认关闭
	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, len(models.KnownChannels))

	enabled, err := repo.ListEnabledFor(models.NotifySms)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, repo.Save(&models.ChannelConfig{
		Name:    models.ChannelWeCom,
		Enabled: true,
		Config:  map[string]string{"webhook": "https://example.com/hook"},
		Events:  []string{models.NotifySms, models.NotifyCall},
	}))

	got, err := repo.Get(models.ChannelWeCom)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, "https://example.com/hook", got.Config["webhook"])

	enabled, err = repo.ListEnabledFor(models.NotifySms)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, models.ChannelWeCom, enabled[0].Name)

	// 未订阅事件依旧不投递
	enabled, err = repo.ListEnabledFor(models.NotifyDeviceStatus)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	// upsert 覆盖且名字仍唯一
	require.NoError(t, repo.Save(&models.ChannelConfig{Name: models.ChannelWeCom, Enabled: false}))
	var count int
	require.NoError(t, s.QueryRow("SELECT COUNT(*) FROM notify_channels WHERE name = ?", models.ChannelWeCom).Scan(&count))
	assert.Equal(t, 1, count)
}
