package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
	"github.com/Miraitowa2001/sms-web/internal/store"
)

// Sender 单个渠道的投递实现
type Sender interface {
	Name() string
	Send(ctx context.Context, cfg *models.ChannelConfig, title, body string) error
}

// ChannelLister 渠道配置读取口（由 repository.ChannelRepository 提供）
type ChannelLister interface {
	ListEnabledFor(event string) ([]*models.ChannelConfig, error)
}

// Dispatcher 通知分发器
// 上报链路把领域事件投进有界队列就返回，后台 worker 消费队列并发扇出到各渠道；
// 单渠道失败只记日志，不影响其他渠道，更不会传回上报调用方
type Dispatcher struct {
	channels ChannelLister
	senders  map[string]Sender
	dedup    store.KV
	dedupTTL time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	queue chan *models.Notification
	wg    sync.WaitGroup
	once  sync.Once
}

// NewDispatcher 创建分发器；senders 按渠道名注册
func NewDispatcher(
	channels ChannelLister,
	dedup store.KV,
	queueSize int,
	timeout time.Duration,
	dedupTTL time.Duration,
	logger *zap.Logger,
	senders ...Sender,
) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	byName := make(map[string]Sender, len(senders))
	for _, s := range senders {
		byName[s.Name()] = s
	}
	return &Dispatcher{
		channels: channels,
		senders:  byName,
		dedup:    dedup,
		dedupTTL: dedupTTL,
		timeout:  timeout,
		logger:   logger,
		queue:    make(chan *models.Notification, queueSize),
	}
}

// Start 启动消费 worker
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for n := range d.queue {
			d.deliver(n)
		}
	}()
}

// Dispatch 非阻塞入队
// 队列满时丢弃该条通知并告警：通知是尽力而为的，不能反压上报链路
func (d *Dispatcher) Dispatch(event string, data map[string]any) {
	n := &models.Notification{ID: uuid.NewString(), Event: event, Data: data}
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("Notification queue full, dropping event",
			zap.String("event", event),
		)
	}
}

// Stop 关闭队列并等待存量通知投递完成
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.once.Do(func() { close(d.queue) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver 对一条通知做全渠道扇出：并发投递、全部等完、逐渠道收集结果
func (d *Dispatcher) deliver(n *models.Notification) {
	cfgs, err := d.channels.ListEnabledFor(n.Event)
	if err != nil {
		d.logger.Error("Failed to list channels for event",
			zap.String("event", n.Event),
			zap.Error(err),
		)
		return
	}
	if len(cfgs) == 0 {
		return
	}

	title, body := formatMessage(n)

	var wg sync.WaitGroup
	for _, cfg := range cfgs {
		sender, ok := d.senders[cfg.Name]
		if !ok {
			d.logger.Warn("No sender registered for channel", zap.String("channel", cfg.Name))
			continue
		}

		// 至多一次：投递前打去重标记，重复进入的同一条通知直接跳过
		dedupKey := fmt.Sprintf("notify:sent:%s:%s", n.ID, cfg.Name)
		if _, err := d.dedup.Get(context.Background(), dedupKey); err == nil {
			continue
		}
		if err := d.dedup.Set(context.Background(), dedupKey, "1", d.dedupTTL); err != nil {
			d.logger.Warn("Dedup mark failed", zap.Error(err))
		}

		wg.Add(1)
		go func(sender Sender, cfg *models.ChannelConfig) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := sender.Send(ctx, cfg, title, body); err != nil {
				d.logger.Error("Channel delivery failed",
					zap.String("channel", cfg.Name),
					zap.String("event", n.Event),
					zap.Error(err),
				)
				return
			}
			d.logger.Info("Notification delivered",
				zap.String("channel", cfg.Name),
				zap.String("event", n.Event),
			)
		}(sender, cfg)
	}
	wg.Wait()
}

// formatMessage 渠道无关的标题/正文，渠道内再套各自的标记格式
func formatMessage(n *models.Notification) (string, string) {
	devID, _ := n.Data["devId"].(string)

	var title string
	switch n.Event {
	case models.NotifyDeviceStatus:
		title = "Device status changed"
	case models.NotifySimStatus:
		title = "SIM card status changed"
	case models.NotifySms:
		title = "New SMS"
	case models.NotifyCall:
		title = "Call event"
	case models.NotifySystem:
		title = "System event"
	default:
		title = "Gateway event"
	}
	if devID != "" {
		title = title + " [" + devID + "]"
	}

	keys := make([]string, 0, len(n.Data))
	for k := range n.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, n.Data[k])
	}
	return title, strings.TrimRight(b.String(), "\n")
}
