package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pixeloria/internal/models"
	"pixeloria/internal/providers"
)

// 系统提示词固定：要求简洁、Markdown 格式的回答
const systemPrompt = "You are Pixeloria's AI assistant on a web design agency website. " +
	"Answer concisely and format your responses in Markdown. " +
	"Keep answers short, friendly and helpful."

// 提供商故障时替访客看到的兜底回复。第三方 AI 是系统里最不可靠的依赖，
// 聊天界面必须总能收到点什么，而不是一个错误。
const apologyMessage = "I'm sorry, I'm having trouble responding right now. " +
	"Please try again in a moment, or switch to a live chat with our team."

// MessageRouter 决定入站消息的去向：人工会话只落库加广播，
// AI 会话再调用提供商生成回复。
type MessageRouter struct {
	chats       *ChatService
	credentials *CredentialService
	hub         *WebSocketHub
	client      *http.Client
	maxTokens   int
	temperature float64
	logger      *logrus.Logger
}

// NewMessageRouter 创建消息路由。chatTimeout 约束提供商调用
func NewMessageRouter(chats *ChatService, credentials *CredentialService, hub *WebSocketHub, chatTimeout time.Duration, maxTokens int, temperature float64, logger *logrus.Logger) *MessageRouter {
	if chatTimeout <= 0 {
		chatTimeout = 20 * time.Second
	}
	if maxTokens <= 0 {
		maxTokens = 500
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &MessageRouter{
		chats:       chats,
		credentials: credentials,
		hub:         hub,
		client: &http.Client{
			Timeout:   chatTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

// HandleUserMessage 处理访客消息。用户消息总是先落库再做任何下游调用；
// AI 会话的配置问题（没选模型、模型不可用）原样上抛，
// 提供商调用失败则以固定道歉消息兜底，绝不向调用方冒错。
func (r *MessageRouter) HandleUserMessage(ctx context.Context, sessionID, content, modelOverride string) (*models.ChatMessage, *models.ChatMessage, error) {
	session, err := r.chats.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	userMessage, err := r.chats.AppendMessage(ctx, sessionID, models.SenderUser, content, "")
	if err != nil {
		return nil, nil, err
	}
	r.broadcast(sessionID, "chat-message", userMessage)

	// 人工会话：不产生同步回复，管理员稍后走 HandleAdminReply
	if session.ChatType == models.ChatTypeAdmin {
		return userMessage, nil, nil
	}

	providerID := modelOverride
	if providerID == "" {
		providerID = session.AIModel
	}
	if providerID == "" {
		return userMessage, nil, ErrNoModelSpecified
	}

	credential, err := r.credentials.resolveUsable(ctx, providerID)
	if err != nil {
		return userMessage, nil, err
	}

	reply, err := r.callProvider(ctx, credential, content)
	if err != nil {
		// 唯一刻意吸收的错误：记录原因，回复替换为固定道歉
		r.logger.Errorf("Provider %s call failed for session %s: %v", providerID, sessionID, err)
		reply = apologyMessage
	}

	aiMessage, err := r.chats.AppendMessage(ctx, sessionID, models.SenderAI, reply, providerID)
	if err != nil {
		return userMessage, nil, err
	}
	r.broadcast(sessionID, "chat-message", aiMessage)

	return userMessage, aiMessage, nil
}

// HandleAdminReply 管理员通过同一条追加+广播路径回复，
// 已关闭的会话会因此重新回到 active
func (r *MessageRouter) HandleAdminReply(ctx context.Context, sessionID, content string) (*models.ChatMessage, error) {
	message, err := r.chats.AppendMessage(ctx, sessionID, models.SenderAdmin, content, "")
	if err != nil {
		return nil, err
	}
	r.broadcast(sessionID, "chat-message", message)
	return message, nil
}

// callProvider 调用第三方提供商并抽取回复文本
func (r *MessageRouter) callProvider(ctx context.Context, credential *usableCredential, content string) (string, error) {
	tracer := otel.Tracer("pixeloria/router")
	ctx, span := tracer.Start(ctx, "MessageRouter.callProvider")
	span.SetAttributes(
		attribute.String("provider", credential.Provider.ID),
		attribute.String("model", credential.Model),
	)
	defer span.End()

	messages := []providers.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: content},
	}

	req, err := credential.Provider.Adapter.BuildChatRequest(
		ctx, credential.Provider.BaseURL, credential.APIKey, credential.Model,
		messages, r.maxTokens, r.temperature,
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		return "", fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	reply, err := credential.Provider.Adapter.ExtractReply(body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return reply, nil
}

// broadcast 尽力而为的实时推送，失败只记日志
func (r *MessageRouter) broadcast(sessionID, messageType string, payload interface{}) {
	if r.hub == nil {
		return
	}
	r.hub.SendToSession(sessionID, WebSocketMessage{Type: messageType, Data: payload})
}
