package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ChatMessage is the JSON frame exchanged with the chat gateway.
type ChatMessage struct {
	Type   string `json:"type,omitempty"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

const (
	chatTypeMessage = "message"
	chatTypeHello   = "hello"
)

// ChatWorker connects to a chat gateway over WebSocket, hands inbound
// messages to onMessage and sends replies back on the same socket.
type ChatWorker struct {
	*BaseWSWorker
	url       string
	token     string
	onMessage func(ctx context.Context, msg ChatMessage)
}

// NewChatWorker creates a worker for cfg.Chat.
func NewChatWorker(cfg *Config, onMessage func(ctx context.Context, msg ChatMessage)) *ChatWorker {
	w := &ChatWorker{
		url:       cfg.Chat.WSURL,
		token:     cfg.Chat.Token,
		onMessage: onMessage,
	}
	w.BaseWSWorker = NewBaseWSWorker(w)
	return w
}

func (w *ChatWorker) GetURL() string { return w.url }
func (w *ChatWorker) ID() string     { return "CHAT" }

func (w *ChatWorker) Header() http.Header {
	h := make(http.Header)
	if w.token != "" {
		h.Set("Authorization", "Bearer "+w.token)
	}
	return h
}

func (w *ChatWorker) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	readTimeout := w.ReadTimeout
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	hello, err := json.Marshal(ChatMessage{Type: chatTypeHello, Text: AppName})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, hello)
}

func (w *ChatWorker) OnMessage(ctx context.Context, msg []byte) {
	var m ChatMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		slog.Warn("Invalid chat frame", slog.Any("error", err))
		return
	}
	if m.Type != "" && m.Type != chatTypeMessage {
		return
	}
	if strings.TrimSpace(m.Text) == "" {
		return
	}
	w.onMessage(ctx, m)
}

// OnPing sends a control frame; WriteControl may run alongside Write.
func (w *ChatWorker) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// Send delivers a reply to chatID.
func (w *ChatWorker) Send(chatID int64, text string) error {
	data, err := json.Marshal(ChatMessage{Type: chatTypeMessage, ChatID: chatID, Text: text})
	if err != nil {
		return err
	}
	return w.Write(websocket.TextMessage, data)
}
