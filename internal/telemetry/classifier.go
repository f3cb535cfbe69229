package telemetry

import "fmt"

// Category 事件大类，由数字类型码的区段推导
type Category string

const (
	CategoryNetwork Category = "network"
	CategorySim     Category = "sim"
	CategoryModule  Category = "module"
	CategoryCommand Category = "command"
	CategorySms     Category = "sms"
	CategoryCall    Category = "call"
	CategorySystem  Category = "system"
	CategoryUnknown Category = "unknown"
)

// EventType 分类结果
type EventType struct {
	Category Category
	Label    string
}

// 类型码静态表
// 区段约定：network 100-102, sim 202-209, module 301, command-ack 401-402,
// sms 501-502, call 601-689（642 以后为扩展呼叫控制码）, system 998
var eventTable = map[int]EventType{
	100: {CategoryNetwork, "network ready"},
	101: {CategoryNetwork, "network roaming"},
	102: {CategoryNetwork, "network lost"},

	202: {CategorySim, "sim registering"},
	203: {CategorySim, "sim ready"},
	204: {CategorySim, "sim registered"},
	205: {CategorySim, "sim removed"},
	209: {CategorySim, "sim error"},

	301: {CategoryModule, "module restart"},

	401: {CategoryCommand, "command accepted"},
	402: {CategoryCommand, "command rejected"},

	501: {CategorySms, "sms received"},
	502: {CategorySms, "sms sent"},

	601: {CategoryCall, "incoming ring"},
	602: {CategoryCall, "call answered"},
	603: {CategoryCall, "remote hangup"},
	604: {CategoryCall, "local hangup"},
	611: {CategoryCall, "dialing"},
	612: {CategoryCall, "call connected"},
	621: {CategoryCall, "dtmf"},
	622: {CategoryCall, "line busy"},
	623: {CategoryCall, "no carrier"},
	641: {CategoryCall, "call control start"},
	642: {CategoryCall, "call control stop"},

	998: {CategorySystem, "heartbeat"},
}

// Classify 类型码 → 大类 + 可读标签，任何输入都不会失败
func Classify(code int) EventType {
	if t, ok := eventTable[code]; ok {
		return t
	}
	// 不在静态表里但落在已知区段内的码，按区段归类
	switch {
	case code >= 100 && code <= 102:
		return EventType{CategoryNetwork, fmt.Sprintf("network event(%d)", code)}
	case code >= 202 && code <= 209:
		return EventType{CategorySim, fmt.Sprintf("sim event(%d)", code)}
	case code >= 401 && code <= 402:
		return EventType{CategoryCommand, fmt.Sprintf("command ack(%d)", code)}
	case code >= 501 && code <= 502:
		return EventType{CategorySms, fmt.Sprintf("sms event(%d)", code)}
	case code >= 601 && code <= 689:
		return EventType{CategoryCall, fmt.Sprintf("call control(%d)", code)}
	}
	return EventType{CategoryUnknown, fmt.Sprintf("unknown message(%d)", code)}
}
