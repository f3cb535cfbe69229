package models

// 设备状态
const (
	DeviceStatusOnline  = "online"
	DeviceStatusOffline = "offline"
)

// Device 网关设备（一台物理设备一行）
// dev_id 全局唯一，是所有子表的关联键；首个上报事件自动建档
type Device struct {
	ID              int64
	DevID           string
	Name            string
	HwVer           string
	LastIP          string
	LastSSID        string
	LastSignalLevel int
	Status          string
	LastSeenAt      string
	CreatedAt       string
	UpdatedAt       string
}
