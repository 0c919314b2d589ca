package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New("test-secret", nil)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v
}

func TestVault_EncryptDecryptRoundTrip(t *testing.T) {
	v := newTestVault(t)

	for _, plaintext := range []string{
		"sk-abc123",
		"a",
		"exactly-sixteen!", // 整块长度也要能往返
		strings.Repeat("k", 200),
		"unicode 密钥 🔑",
	} {
		blob, err := v.Encrypt(plaintext)
		assert.NoError(t, err)
		assert.Contains(t, blob, ":")
		assert.NotContains(t, blob, plaintext)

		assert.Equal(t, plaintext, v.Decrypt(blob))
	}
}

func TestVault_EncryptUsesFreshIV(t *testing.T) {
	v := newTestVault(t)

	a, err := v.Encrypt("same-key")
	assert.NoError(t, err)
	b, err := v.Encrypt("same-key")
	assert.NoError(t, err)

	// 相同明文两次加密必须产生不同密文
	assert.NotEqual(t, a, b)
}

func TestVault_DecryptMalformedReturnsEmpty(t *testing.T) {
	v := newTestVault(t)

	valid, err := v.Encrypt("sk-real-key")
	assert.NoError(t, err)
	parts := strings.SplitN(valid, ":", 2)

	cases := map[string]string{
		"empty":             "",
		"no separator":      "deadbeef",
		"bad iv hex":        "zzzz:" + parts[1],
		"short iv":          "abcd:" + parts[1],
		"bad ciphertext":    parts[0] + ":nothex",
		"truncated":         parts[0] + ":" + parts[1][:8],
		"empty ciphertext":  parts[0] + ":",
		"only separator":    ":",
	}

	for name, blob := range cases {
		assert.Equal(t, "", v.Decrypt(blob), name)
	}
}

func TestVault_DecryptWrongSecretReturnsEmpty(t *testing.T) {
	v := newTestVault(t)
	other, err := New("different-secret", nil)
	assert.NoError(t, err)

	blob, err := v.Encrypt("sk-secret-key")
	assert.NoError(t, err)

	// 错误密钥下 CBC 解密几乎必然产生非法填充
	assert.Equal(t, "", other.Decrypt(blob))
}

func TestVault_NewRejectsEmptySecret(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", MaskKey(""))
	assert.Equal(t, maskPrefix+"ab", MaskKey("ab"))
	assert.Equal(t, maskPrefix+"6789", MaskKey("sk-123456789"))

	// 掩码不得泄露超过末 4 位的明文
	key := "sk-verysecretkey9999"
	masked := MaskKey(key)
	assert.True(t, strings.HasSuffix(masked, key[len(key)-4:]))
	for i := 0; i+5 <= len(key); i++ {
		assert.NotContains(t, masked, key[i:i+5])
	}
}
