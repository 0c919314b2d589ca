package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pixeloria/internal/models"
	"pixeloria/internal/providers"
	"pixeloria/internal/vault"
)

type routerFixture struct {
	router   *MessageRouter
	chats    *ChatService
	creds    *CredentialService
	registry *providers.Registry
	hub      *WebSocketHub
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	db := newTestDB(t)
	presence := NewPresenceTracker(db, nil)
	chats := NewChatService(db, presence, nil)

	v, err := vault.New("test-secret", nil)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	registry := providers.NewRegistry()
	creds := NewCredentialService(db, v, registry, stubTester{valid: true}, nil)

	hub := NewWebSocketHub()
	go hub.Run()

	router := NewMessageRouter(chats, creds, hub, 2*time.Second, 500, 0.7, nil)
	return &routerFixture{router: router, chats: chats, creds: creds, registry: registry, hub: hub}
}

func (f *routerFixture) newAISession(t *testing.T, model string) *models.ChatSession {
	t.Helper()
	session, err := f.chats.CreateSession(context.Background(), UserInfo{Name: "T", Email: "t@test.com"}, models.ChatTypeAI, model)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func (f *routerFixture) watch(sessionID string) chan WebSocketMessage {
	client := &WebSocketClient{ID: "test-" + sessionID, SessionID: sessionID, Send: make(chan WebSocketMessage, 8), Hub: f.hub}
	f.hub.register <- client
	time.Sleep(10 * time.Millisecond)
	return client.Send
}

func TestMessageRouter_AIReplyHappyPath(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"**Hi!** How can I help?"}}]}`))
	}))
	defer srv.Close()
	f.registry.SetBaseURL("openai", srv.URL)

	f.creds.Save(ctx, SaveCredentialRequest{ID: "openai", APIKey: "sk-live", IsEnabled: true})
	session := f.newAISession(t, "openai")
	events := f.watch(session.SessionID)

	userMsg, aiMsg, err := f.router.HandleUserMessage(ctx, session.SessionID, "hello", "")
	assert.NoError(t, err)
	assert.Equal(t, models.SenderUser, userMsg.Sender)
	if assert.NotNil(t, aiMsg) {
		assert.Equal(t, models.SenderAI, aiMsg.Sender)
		assert.Equal(t, "**Hi!** How can I help?", aiMsg.Content)
		assert.Equal(t, "openai", aiMsg.AIModel)
	}

	// 两条消息都应广播给会话订阅者
	for i := 0; i < 2; i++ {
		select {
		case out := <-events:
			assert.Equal(t, "chat-message", out.Type)
			assert.Equal(t, session.SessionID, out.SessionID)
		case <-time.After(time.Second):
			t.Fatal("missing broadcast")
		}
	}
}

func TestMessageRouter_ProviderFailureDegradesToApology(t *testing.T) {
	// 提供商 5xx 时不得向调用方冒错：返回固定道歉消息，sender=ai
	f := newRouterFixture(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	f.registry.SetBaseURL("openai", srv.URL)

	f.creds.Save(ctx, SaveCredentialRequest{ID: "openai", APIKey: "sk-live", IsEnabled: true})
	session := f.newAISession(t, "openai")

	_, aiMsg, err := f.router.HandleUserMessage(ctx, session.SessionID, "hello", "")
	assert.NoError(t, err)
	if assert.NotNil(t, aiMsg) {
		assert.Equal(t, models.SenderAI, aiMsg.Sender)
		assert.Equal(t, apologyMessage, aiMsg.Content)
	}
}

func TestMessageRouter_ProviderTimeoutDegradesToApology(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{"choices":[{"message":{"content":"too late"}}]}`))
	}))
	defer srv.Close()
	f.registry.SetBaseURL("openai", srv.URL)

	f.creds.Save(ctx, SaveCredentialRequest{ID: "openai", APIKey: "sk-live", IsEnabled: true})
	f.router.client.Timeout = 50 * time.Millisecond
	session := f.newAISession(t, "openai")

	_, aiMsg, err := f.router.HandleUserMessage(ctx, session.SessionID, "hello", "")
	assert.NoError(t, err)
	if assert.NotNil(t, aiMsg) {
		assert.Equal(t, apologyMessage, aiMsg.Content)
	}
}

func TestMessageRouter_DisabledModelRaisesConfigurationError(t *testing.T) {
	// 场景：配置的模型被禁用 → 上抛配置错误，且只追加了用户消息这一条
	f := newRouterFixture(t)
	ctx := context.Background()

	f.creds.Save(ctx, SaveCredentialRequest{ID: "openai", APIKey: "sk-live", IsEnabled: false})
	session := f.newAISession(t, "openai")

	userMsg, aiMsg, err := f.router.HandleUserMessage(ctx, session.SessionID, "hello", "")
	assert.ErrorIs(t, err, ErrModelNotConfigured)
	assert.NotNil(t, userMsg)
	assert.Nil(t, aiMsg)

	reloaded, _ := f.chats.GetHistory(ctx, session.SessionID)
	assert.Len(t, reloaded.Messages, 1)
	assert.Equal(t, models.SenderUser, reloaded.Messages[0].Sender)
}

func TestMessageRouter_NoModelSpecified(t *testing.T) {
	f := newRouterFixture(t)

	session := f.newAISession(t, "")
	_, _, err := f.router.HandleUserMessage(context.Background(), session.SessionID, "hello", "")
	assert.ErrorIs(t, err, ErrNoModelSpecified)
}

func TestMessageRouter_ModelOverrideWins(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"from groq"}}]}`))
	}))
	defer srv.Close()
	f.registry.SetBaseURL("groq", srv.URL)

	f.creds.Save(ctx, SaveCredentialRequest{ID: "groq", APIKey: "gsk-live", IsEnabled: true})
	session := f.newAISession(t, "openai") // 会话默认 openai，请求覆盖为 groq

	_, aiMsg, err := f.router.HandleUserMessage(ctx, session.SessionID, "hello", "groq")
	assert.NoError(t, err)
	if assert.NotNil(t, aiMsg) {
		assert.Equal(t, "groq", aiMsg.AIModel)
		assert.Equal(t, "from groq", aiMsg.Content)
	}
}

func TestMessageRouter_UnknownSession(t *testing.T) {
	f := newRouterFixture(t)

	_, _, err := f.router.HandleUserMessage(context.Background(), "session_missing", "hello", "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMessageRouter_AdminChatNoSyncReply(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	session, err := f.chats.CreateSession(ctx, UserInfo{Name: "U", Email: "u@test.com"}, models.ChatTypeAdmin, "")
	assert.NoError(t, err)

	userMsg, aiMsg, err := f.router.HandleUserMessage(ctx, session.SessionID, "I need a human", "")
	assert.NoError(t, err)
	assert.NotNil(t, userMsg)
	assert.Nil(t, aiMsg)
}

func TestMessageRouter_AdminReplyBroadcasts(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	session, _ := f.chats.CreateSession(ctx, UserInfo{Name: "V", Email: "v@test.com"}, models.ChatTypeAdmin, "")
	events := f.watch(session.SessionID)

	msg, err := f.router.HandleAdminReply(ctx, session.SessionID, "hello, admin here")
	assert.NoError(t, err)
	assert.Equal(t, models.SenderAdmin, msg.Sender)

	select {
	case out := <-events:
		assert.Equal(t, "chat-message", out.Type)
	case <-time.After(time.Second):
		t.Fatal("missing broadcast")
	}
}
