package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Cipher AES-128-CBC + PKCS#7，密文按 URL 安全 Base64 传输
// 网关固件两种加密形态都经由它解开：整包模式（p 字段）与逐字段模式
type Cipher struct {
	key []byte
	iv  []byte
}

// NewCipher 创建解密器
// key/iv 文本支持三种写法：16 字符 ASCII、十进制数组 "49,50,..."、十六进制数组 "0x31,0x32,..."
func NewCipher(keyText, ivText string) (*Cipher, error) {
	key, err := parseKeyText(keyText)
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	iv, err := parseKeyText(ivText)
	if err != nil {
		return nil, fmt.Errorf("invalid iv: %w", err)
	}
	return &Cipher{key: key, iv: iv}, nil
}

// parseKeyText 解析密钥文本，结果必须恰好 16 字节
func parseKeyText(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty key text")
	}

	var out []byte
	if strings.Contains(s, ",") {
		for _, item := range strings.Split(s, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			var (
				n   uint64
				err error
			)
			if strings.HasPrefix(item, "0x") || strings.HasPrefix(item, "0X") {
				n, err = strconv.ParseUint(item[2:], 16, 8)
			} else {
				n, err = strconv.ParseUint(item, 10, 8)
			}
			if err != nil {
				return nil, fmt.Errorf("bad byte %q: %w", item, err)
			}
			out = append(out, byte(n))
		}
	} else {
		out = []byte(s)
	}

	if len(out) != 16 {
		return nil, fmt.Errorf("key must be 16 bytes, got %d", len(out))
	}
	return out, nil
}

// Decrypt 解密一段 URL 安全 Base64 密文，返回明文字符串
func (c *Cipher) Decrypt(text string) (string, error) {
	raw, err := decodeBase64URL(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d not a block multiple", ErrDecrypt, len(raw))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(plain, raw)

	plain, err = pkcs7Unpad(plain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}

// Encrypt Decrypt 的逆操作，输出 URL 安全 Base64
func (c *Cipher) Encrypt(text string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	raw := pkcs7Pad([]byte(text))
	out := make([]byte, len(raw))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, raw)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// decodeBase64URL 兼容 -/_ 与 +//，自动补齐到 4 的倍数
func decodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.StdEncoding.DecodeString(s)
}

func pkcs7Pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("bad padding length %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
