package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event 解码（必要时已解密）后的网关事件记录
// 扁平 key/value，必含 devId 和整型 type 两个字段
type Event map[string]any

// 字段别名表：不同固件版本对同一逻辑字段使用不同的 key，
// 按顺序取第一个存在的值
var (
	AliasPhone     = []string{"phNum", "phoneNum", "msIsdn", "phone"}
	AliasContent   = []string{"smsContent", "content", "message", "text"}
	AliasSlot      = []string{"slot", "simSlot", "sim"}
	AliasSignal    = []string{"csq", "signal", "signalLevel", "rssi"}
	AliasIP        = []string{"ip", "lastIp", "localIp"}
	AliasSSID      = []string{"ssid", "wifiSsid"}
	AliasHwVer     = []string{"hwVer", "version", "fwVer"}
	AliasOperator  = []string{"plmn", "operator", "operatorPlmn"}
	AliasICCID     = []string{"iccid", "ccid"}
	AliasIMSI      = []string{"imsi"}
	AliasMSISDN    = []string{"msisdn", "phoneNum"}
	AliasSmsTime   = []string{"smsTime", "time", "timestamp"}
	AliasStartTime = []string{"startTime", "time", "timestamp"}
	AliasEndTime   = []string{"endTime"}
	AliasName      = []string{"name", "devName"}
)

// DevID 设备标识，缺失时返回空串
func (e Event) DevID() string {
	return e.GetString("devId", "devid", "deviceId")
}

// Type 事件类型码，非数字或缺失时返回 -1
func (e Event) Type() int {
	if v, ok := e.GetInt("type"); ok {
		return v
	}
	return -1
}

// GetString 按别名顺序取第一个存在的字段，转为字符串
func (e Event) GetString(keys ...string) string {
	for _, k := range keys {
		v, ok := e[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if strings.TrimSpace(s) != "" {
				return s
			}
		case float64:
			// JSON 数字统一是 float64
			if s == float64(int64(s)) {
				return strconv.FormatInt(int64(s), 10)
			}
			return strconv.FormatFloat(s, 'f', -1, 64)
		case int:
			return strconv.Itoa(s)
		case int64:
			return strconv.FormatInt(s, 10)
		default:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

// GetInt 按别名顺序取第一个可解析为整数的字段
func (e Event) GetInt(keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := e[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n), true
		case int:
			return n, true
		case int64:
			return int(n), true
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}

// GetIntDefault GetInt 的带默认值版本
func (e Event) GetIntDefault(def int, keys ...string) int {
	if v, ok := e.GetInt(keys...); ok {
		return v
	}
	return def
}

// First 按别名顺序取第一个存在的原始值（时间归一需要区分数值与字符串）
func (e Event) First(keys ...string) any {
	for _, k := range keys {
		if v, ok := e[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// Raw 序列化为 JSON，用于审计日志；失败时退化为 fmt 格式
func (e Event) Raw() string {
	b, err := json.Marshal(map[string]any(e))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(e))
	}
	return string(b)
}
