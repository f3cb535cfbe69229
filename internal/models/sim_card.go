package models

// SIM 卡状态
const (
	SimStatusUnknown     = "unknown"
	SimStatusRegistering = "registering"
	SimStatusReady       = "ready"
	SimStatusRemoved     = "removed"
	SimStatusError       = "error"
)

// SimCard SIM 卡（按设备+卡槽唯一）
// 字段随多次事件逐步补全，非空字段不会被空值覆盖
type SimCard struct {
	ID                  int64
	DevID               string
	Slot                int
	ICCID               string
	IMSI                string
	MSISDN              string
	OperatorPLMN        string
	SignalLevel         int
	Status              string
	TimezoneOffsetHours *int
	UpdatedAt           string
}
