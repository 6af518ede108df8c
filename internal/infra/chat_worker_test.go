package infra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestChatWorker_RoundTrip(t *testing.T) {
	authHeader := make(chan string, 1)
	frames := make(chan ChatMessage, 4)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteJSON(ChatMessage{Type: "typing", ChatID: 7})
		conn.WriteJSON(ChatMessage{Type: "message", ChatID: 7, Text: "   "})
		conn.WriteJSON(ChatMessage{Type: "message", ChatID: 7, Text: "/buy AAPL qty 1"})

		for {
			var m ChatMessage
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			frames <- m
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Chat.WSURL = httpToWS(server.URL)
	cfg.Chat.Token = "secret"

	inbound := make(chan ChatMessage, 4)
	worker := NewChatWorker(cfg, func(ctx context.Context, msg ChatMessage) {
		inbound <- msg
	})
	worker.Start(context.Background())
	defer worker.Stop()

	select {
	case got := <-authHeader:
		if got != "Bearer secret" {
			t.Errorf("Authorization = %q, want Bearer secret", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gateway never saw a connection")
	}

	select {
	case m := <-frames:
		if m.Type != chatTypeHello {
			t.Errorf("first frame type = %q, want hello", m.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no hello frame")
	}

	select {
	case m := <-inbound:
		if m.ChatID != 7 || m.Text != "/buy AAPL qty 1" {
			t.Errorf("inbound = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command was not delivered")
	}
	select {
	case m := <-inbound:
		t.Errorf("unexpected extra inbound message %+v", m)
	case <-time.After(50 * time.Millisecond):
	}

	if err := worker.Send(7, "BUY AAPL -> FILLED"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case m := <-frames:
		if m.ChatID != 7 || m.Text != "BUY AAPL -> FILLED" || m.Type != chatTypeMessage {
			t.Errorf("reply frame = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply not received")
	}
}

func TestChatWorker_OnMessageIgnoresGarbage(t *testing.T) {
	called := false
	w := NewChatWorker(DefaultConfig(), func(ctx context.Context, msg ChatMessage) { called = true })

	w.OnMessage(context.Background(), []byte("not json"))
	if called {
		t.Error("garbage frame should not be delivered")
	}

	data, _ := json.Marshal(ChatMessage{ChatID: 1, Text: "/help"})
	w.OnMessage(context.Background(), data)
	if !called {
		t.Error("frame without type should be treated as a message")
	}
}

func TestChatWorker_HeaderWithoutToken(t *testing.T) {
	w := NewChatWorker(DefaultConfig(), func(context.Context, ChatMessage) {})
	if got := w.Header().Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want empty", got)
	}
}
