package models

// 已知通知渠道名
const (
	ChannelWeCom  = "wecom"
	ChannelFeishu = "feishu"
	ChannelSMTP   = "smtp"
)

// KnownChannels 启动时为每个渠道预置一行零配置记录
var KnownChannels = []string{ChannelWeCom, ChannelFeishu, ChannelSMTP}

// 通知事件名（渠道通过 events 字段订阅）
const (
	NotifyDeviceStatus = "device_status"
	NotifySimStatus    = "sim_status"
	NotifySms          = "sms"
	NotifyCall         = "call"
	NotifySystem       = "system"
)

// ChannelConfig 通知渠道配置（每个渠道名恰好一行，保存时 upsert）
type ChannelConfig struct {
	Name      string
	Enabled   bool
	Config    map[string]string
	Events    []string
	UpdatedAt string
}

// Subscribes 渠道是否订阅了该事件
func (c *ChannelConfig) Subscribes(event string) bool {
	for _, e := range c.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Notification 待分发的领域事件
type Notification struct {
	ID    string
	Event string
	Data  map[string]any
}
