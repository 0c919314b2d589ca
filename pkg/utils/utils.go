package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateSessionID 生成不透明的会话标识
func GenerateSessionID() string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), token[:12])
}

// FormatTime 时间格式化
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// ValidateMessage 校验消息内容长度
func ValidateMessage(content string) bool {
	if len(content) == 0 || len(content) > 4096 {
		return false
	}
	return true
}
