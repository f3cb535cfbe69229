package models

// 短信方向
const (
	SmsDirectionIn  = "in"
	SmsDirectionOut = "out"
)

// Message 原始事件审计日志（仅追加）
type Message struct {
	ID        int64
	DevID     string
	Type      int
	TypeName  string
	Payload   string
	CreatedAt string
}

// SmsRecord 短信记录（仅追加）
type SmsRecord struct {
	ID        int64
	DevID     string
	Slot      int
	PhoneNum  string
	Content   string
	SmsTime   string
	Direction string
	CreatedAt string
}

// CallRecord 通话记录（仅追加）
type CallRecord struct {
	ID              int64
	DevID           string
	Slot            int
	PhoneNum        string
	MsgType         int
	CallType        string
	StartTime       string
	DurationSeconds int
	CreatedAt       string
}
