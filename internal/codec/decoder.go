package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/models"
)

// 传输层错误分类：仅这三类会拒绝本次上报，其余错误全部就地吸收
var (
	ErrDecode     = errors.New("malformed payload")
	ErrDecrypt    = errors.New("decrypt failed")
	ErrValidation = errors.New("invalid event record")
)

// Decoder 传输解码器
// 把 JSON body、表单、GET query 三种入站形态归一成一条事件记录，
// 启用加密时负责整包或逐字段解密
type Decoder struct {
	cipher *Cipher // nil 表示未启用解密
	logger *zap.Logger
}

// NewDecoder 创建解码器；enabled 为 false 时载荷原样透传
func NewDecoder(enabled bool, keyText, ivText string, logger *zap.Logger) (*Decoder, error) {
	d := &Decoder{logger: logger}
	if enabled {
		c, err := NewCipher(keyText, ivText)
		if err != nil {
			return nil, fmt.Errorf("crypto config: %w", err)
		}
		d.cipher = c
	}
	return d, nil
}

// DecodeJSON 解析 JSON 请求体
func (d *Decoder) DecodeJSON(body []byte) (models.Event, error) {
	var rec map[string]any
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return d.finish(models.Event(rec))
}

// DecodeValues 解析表单或 query 键值对，同名多值只取第一个
func (d *Decoder) DecodeValues(values url.Values) (models.Event, error) {
	rec := models.Event{}
	for k := range values {
		rec[k] = values.Get(k)
	}
	return d.finish(rec)
}

// DecodeEvent 解码已经拆成扁平 map 的载荷（MQTT 等旁路传输先行注入 devId 用）
func (d *Decoder) DecodeEvent(rec models.Event) (models.Event, error) {
	return d.finish(rec)
}

// finish 解密（如启用）并校验必填字段
func (d *Decoder) finish(rec models.Event) (models.Event, error) {
	rec, err := d.decrypt(rec)
	if err != nil {
		return nil, err
	}

	if rec.DevID() == "" {
		return nil, fmt.Errorf("%w: missing devId", ErrValidation)
	}
	if _, ok := rec.GetInt("type"); !ok {
		return nil, fmt.Errorf("%w: missing or non-numeric type", ErrValidation)
	}
	return rec, nil
}

// decrypt 两种密文形态：
//  1. 整包模式：单字段 p 持有一个 Base64 密文，解出来的 JSON 即事件，失败则整个请求失败
//  2. 逐字段模式：每个字符串字段独立解密，解不开的字段保留原值（可能本来就是明文）
func (d *Decoder) decrypt(rec models.Event) (models.Event, error) {
	if d.cipher == nil {
		return rec, nil
	}

	if p, ok := rec["p"].(string); ok {
		plain, err := d.cipher.Decrypt(p)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(plain), &out); err != nil {
			return nil, fmt.Errorf("%w: decrypted payload is not JSON: %v", ErrDecrypt, err)
		}
		return models.Event(out), nil
	}

	for k, v := range rec {
		s, ok := v.(string)
		if !ok {
			continue
		}
		plain, err := d.cipher.Decrypt(s)
		if err != nil {
			// 字段级失败只降级，不拒绝请求
			continue
		}
		if isAllDigits(plain) {
			if n, err := strconv.ParseInt(plain, 10, 64); err == nil {
				rec[k] = int(n)
				continue
			}
		}
		rec[k] = plain
	}
	return rec, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
