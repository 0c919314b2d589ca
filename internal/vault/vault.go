package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/scrypt"
)

// 固定盐仅用于从应用 secret 派生密钥，密文本身每次使用随机 IV
const keySalt = "pixeloria-vault"

const maskPrefix = "••••••••••••"

// Vault 负责第三方 API 密钥的落盘加密。密钥只在发往提供商的瞬间以明文存在，
// 其余路径（存储、日志、接口响应）一律只接触密文或掩码。
type Vault struct {
	key    []byte
	logger *logrus.Logger
}

// New 从应用 secret 派生 32 字节 AES 密钥（scrypt，进程内只派生一次）
func New(secret string, logger *logrus.Logger) (*Vault, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if secret == "" {
		return nil, fmt.Errorf("vault: secret must not be empty")
	}

	key, err := scrypt.Key([]byte(secret), []byte(keySalt), 16384, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}

	return &Vault{key: key, logger: logger}, nil
}

// Encrypt AES-256-CBC 加密，返回 iv_hex:ciphertext_hex
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("vault: init cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("vault: generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt 解密 iv_hex:ciphertext_hex。任何解析或解密失败都返回空串而不是报错，
// 调用方必须把空串当作“密钥不可用”处理；损坏的历史密文不应拖垮读路径。
func (v *Vault) Decrypt(blob string) string {
	idx := strings.Index(blob, ":")
	if idx < 0 {
		v.logger.Warn("vault: ciphertext missing iv separator")
		return ""
	}

	iv, err := hex.DecodeString(blob[:idx])
	if err != nil || len(iv) != aes.BlockSize {
		v.logger.Warn("vault: invalid iv")
		return ""
	}

	ciphertext, err := hex.DecodeString(blob[idx+1:])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		v.logger.Warn("vault: invalid ciphertext")
		return ""
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		v.logger.Warnf("vault: init cipher: %v", err)
		return ""
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		v.logger.Warn("vault: decryption produced invalid padding")
		return ""
	}

	return string(unpadded)
}

// MaskKey 返回用于展示的掩码：固定 12 个圆点加明文最后 4 位
func MaskKey(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	if len(plaintext) <= 4 {
		return maskPrefix + plaintext
	}
	return maskPrefix + plaintext[len(plaintext)-4:]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
