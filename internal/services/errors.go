package services

import "errors"

// 与调用方约定的错误分类。校验与未找到错误原样上抛并映射为 4xx，
// 提供商调用失败是系统中唯一被就地吸收的错误（见 router.go）。
var (
	// ErrValidation 请求缺少必填字段或字段取值非法
	ErrValidation = errors.New("validation failed")

	// ErrSessionNotFound 未知的 session_id
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionTerminated 已终止会话拒绝新消息
	ErrSessionTerminated = errors.New("session has been terminated")

	// ErrNoModelSpecified AI 会话既没有请求级覆盖也没有会话级选定模型
	ErrNoModelSpecified = errors.New("no AI model specified")

	// ErrModelNotConfigured 模型缺失、被禁用、状态异常或密钥不可解
	ErrModelNotConfigured = errors.New("AI model not configured")

	// ErrProviderNotFound 操作指向目录之外的提供商
	ErrProviderNotFound = errors.New("provider not found")

	// ErrCredentialNotFound 更新/删除了不存在的凭证记录
	ErrCredentialNotFound = errors.New("credential not found")
)
