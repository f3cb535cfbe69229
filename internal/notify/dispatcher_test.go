package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/store"
)

type fakeLister struct {
	cfgs []*models.ChannelConfig
}

func (f *fakeLister) ListEnabledFor(event string) ([]*models.ChannelConfig, error) {
	var out []*models.ChannelConfig
	for _, c := range f.cfgs {
		if c.Enabled && c.Subscribes(event) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeSender struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, _ *models.ChannelConfig, _, _ string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.err
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func twoChannelLister() *fakeLister {
	return &fakeLister{cfgs: []*models.ChannelConfig{
		{Name: models.ChannelWeCom, Enabled: true, Events: []string{models.NotifySms}},
		{Name: models.ChannelFeishu, Enabled: true, Events: []string{models.NotifySms}},
	}}
}

func newTestDispatcher(lister ChannelLister, senders ...Sender) *Dispatcher {
	return NewDispatcher(lister, store.NewMemoryKV(), 16,
		time.Second, time.Minute, zap.NewNop(), senders...)
}

func TestDispatch_FanOutToAllSubscribers(t *testing.T) {
	wecom := &fakeSender{name: models.ChannelWeCom}
	feishu := &fakeSender{name: models.ChannelFeishu}

	d := newTestDispatcher(twoChannelLister(), wecom, feishu)
	d.Start()

	d.Dispatch(models.NotifySms, map[string]any{"devId": "GW-001", "phone": "10086"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, 1, wecom.callCount())
	assert.Equal(t, 1, feishu.callCount())
}

func TestDispatch_ChannelFailureIsIsolated(t *testing.T) {
	wecom := &fakeSender{name: models.ChannelWeCom, err: errors.New("webhook down")}
	feishu := &fakeSender{name: models.ChannelFeishu}

	d := newTestDispatcher(twoChannelLister(), wecom, feishu)
	d.Start()

	// 一个渠道失败不影响另一个，也不会 panic
	d.Dispatch(models.NotifySms, map[string]any{"devId": "GW-001"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, 1, wecom.callCount())
	assert.Equal(t, 1, feishu.callCount())
}

func TestDispatch_UnsubscribedEventReachesNobody(t *testing.T) {
	wecom := &fakeSender{name: models.ChannelWeCom}

	d := newTestDispatcher(twoChannelLister(), wecom)
	d.Start()

	d.Dispatch(models.NotifyCall, map[string]any{"devId": "GW-001"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, 0, wecom.callCount())
}

func TestDeliver_DedupGuardIsAtMostOnce(t *testing.T) {
	wecom := &fakeSender{name: models.ChannelWeCom}

	d := newTestDispatcher(twoChannelLister(), wecom)

	n := &models.Notification{ID: "fixed-id", Event: models.NotifySms, Data: map[string]any{}}
	d.deliver(n)
	d.deliver(n)

	assert.Equal(t, 1, wecom.callCount())
}

func TestDispatch_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	d := NewDispatcher(twoChannelLister(), store.NewMemoryKV(), 1,
		time.Second, time.Minute, zap.NewNop())

	// worker 未启动，第二条只能被丢弃；调用必须立即返回
	done := make(chan struct{})
	go func() {
		d.Dispatch(models.NotifySms, nil)
		d.Dispatch(models.NotifySms, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on full queue")
	}
}

func TestFormatMessage(t *testing.T) {
	title, body := formatMessage(&models.Notification{
		Event: models.NotifySms,
		Data:  map[string]any{"devId": "GW-001", "phone": "10086", "content": "hello"},
	})

	assert.Equal(t, "New SMS [GW-001]", title)
	assert.Contains(t, body, "phone: 10086")
	assert.Contains(t, body, "content: hello")
}
