package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func registerTestClient(hub *WebSocketHub, id, sessionID string) *WebSocketClient {
	client := &WebSocketClient{ID: id, SessionID: sessionID, Send: make(chan WebSocketMessage, 8), Hub: hub}
	hub.register <- client
	return client
}

func TestWebSocketHub_SendToSessionRouting(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()

	a := registerTestClient(hub, "client-a", "session_1")
	b := registerTestClient(hub, "client-b", "session_2")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 2, hub.GetClientCount())

	hub.SendToSession("session_1", WebSocketMessage{Type: "chat-message", Data: "hello"})

	select {
	case msg := <-a.Send:
		assert.Equal(t, "chat-message", msg.Type)
		assert.Equal(t, "session_1", msg.SessionID)
		assert.False(t, msg.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("session_1 client did not receive broadcast")
	}

	select {
	case msg := <-b.Send:
		t.Fatalf("session_2 client should not receive message for session_1, got %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWebSocketHub_Unregister(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()

	client := registerTestClient(hub, "client-x", "session_9")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, hub.GetClientCount())

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, hub.GetClientCount())

	_, open := <-client.Send
	assert.False(t, open, "send channel should be closed on unregister")
}

func TestWebSocketHub_SendWithoutRunnerDoesNotBlock(t *testing.T) {
	hub := NewWebSocketHub()

	// 没有 Run 协程消费时，SendToSession 仍需立即返回
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.SendToSession("session_1", WebSocketMessage{Type: "chat-message"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SendToSession blocked without a running hub")
	}
}

func TestWebSocketHub_SlowClientEvicted(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()

	client := &WebSocketClient{ID: "slow", SessionID: "session_1", Send: make(chan WebSocketMessage), Hub: hub}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// 无人读取 Send，广播时应被踢出而不是卡死 hub
	hub.SendToSession("session_1", WebSocketMessage{Type: "chat-message"})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.GetClientCount())
}
