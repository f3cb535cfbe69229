package telemetry

import (
	"strconv"
	"strings"
	"time"
)

// 所有时间字段统一存成固定东八区的挂钟字符串
const (
	CanonicalLayout   = "2006-01-02 15:04:05"
	TargetOffsetHours = 8
)

// epoch 值小于该阈值按秒解释，否则按毫秒
const epochMillisThreshold = 10_000_000_000

// 固件常见的几种日期字符串写法
var parseLayouts = []string{
	CanonicalLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02 15:04:05",
	"20060102150405",
}

// NormalizeTime 把来源时间归一成规范时间串
// raw 可以缺失（取当前时刻）、epoch 数值（秒/毫秒启发式）、或日期字符串；
// 换算公式 canonical = raw − srcOffset·3600s + 8·3600s，
// 对负的来源时区同样成立（raw 被视为来源时区的挂钟读数）。
// 解析失败一律回退为当前时刻，绝不向上抛错。
func NormalizeTime(raw any, srcOffsetHours int) string {
	switch v := raw.(type) {
	case nil:
		return CanonicalNow()
	case float64:
		return fromEpoch(int64(v), srcOffsetHours)
	case int:
		return fromEpoch(int64(v), srcOffsetHours)
	case int64:
		return fromEpoch(v, srcOffsetHours)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return CanonicalNow()
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromEpoch(n, srcOffsetHours)
		}
		for _, layout := range parseLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return shift(t, srcOffsetHours)
			}
		}
		return CanonicalNow()
	}
	return CanonicalNow()
}

// Canonical 绝对时刻 → 规范时间串
func Canonical(t time.Time) string {
	return shift(t, 0)
}

// CanonicalNow 当前时刻的规范时间串
func CanonicalNow() string {
	return shift(time.Now(), 0)
}

func fromEpoch(n int64, srcOffsetHours int) string {
	var t time.Time
	if n < epochMillisThreshold {
		t = time.Unix(n, 0)
	} else {
		t = time.UnixMilli(n)
	}
	return shift(t, srcOffsetHours)
}

func shift(t time.Time, srcOffsetHours int) string {
	offset := time.Duration(TargetOffsetHours-srcOffsetHours) * time.Hour
	return t.UTC().Add(offset).Format(CanonicalLayout)
}
