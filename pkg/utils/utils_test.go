package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSessionID(t *testing.T) {
	id := GenerateSessionID()
	assert.True(t, strings.HasPrefix(id, "session_"))

	parts := strings.Split(id, "_")
	assert.Len(t, parts, 3)
	assert.Len(t, parts[2], 12)

	// 连续生成不得重复
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		next := GenerateSessionID()
		assert.False(t, seen[next], "duplicate session id: %s", next)
		seen[next] = true
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, "2025-03-14 09:26:53", FormatTime(ts))
}

func TestValidateMessage(t *testing.T) {
	assert.True(t, ValidateMessage("hello"))
	assert.False(t, ValidateMessage(""))
	assert.True(t, ValidateMessage(strings.Repeat("a", 4096)))
	assert.False(t, ValidateMessage(strings.Repeat("a", 4097)))
}
