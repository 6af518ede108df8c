package infra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockHandler implements WebSocketHandler for testing
type mockHandler struct {
	url            string
	onConnectCalls int32
	onMessageCalls int32
	messages       [][]byte
}

func (m *mockHandler) GetURL() string      { return m.url }
func (m *mockHandler) ID() string          { return "MOCK" }
func (m *mockHandler) Header() http.Header { return nil }
func (m *mockHandler) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	atomic.AddInt32(&m.onConnectCalls, 1)
	return nil
}
func (m *mockHandler) OnMessage(ctx context.Context, msg []byte) {
	atomic.AddInt32(&m.onMessageCalls, 1)
	m.messages = append(m.messages, msg)
}
func (m *mockHandler) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return nil
}

// createMockWSServer creates a test WebSocket server
func createMockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

// httpToWS converts http:// URL to ws://
func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func TestBaseWSWorker_Connect(t *testing.T) {
	// Create mock server that sends one message
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"test"}`))
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	handler := &mockHandler{url: httpToWS(server.URL)}
	worker := NewBaseWSWorker(handler)
	worker.ReadTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	worker.Start(ctx)
	time.Sleep(200 * time.Millisecond) // Give time for connection and message

	worker.Stop()

	if atomic.LoadInt32(&handler.onConnectCalls) == 0 {
		t.Error("OnConnect was not called")
	}
	if atomic.LoadInt32(&handler.onMessageCalls) == 0 {
		t.Error("OnMessage was not called")
	}
}

func TestBaseWSWorker_GracefulShutdown(t *testing.T) {
	// Create mock server that stays open
	serverClosed := make(chan struct{})
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		<-serverClosed
	})
	defer server.Close()
	defer close(serverClosed)

	handler := &mockHandler{url: httpToWS(server.URL)}
	worker := NewBaseWSWorker(handler)

	ctx := context.Background()
	worker.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	// Stop should not hang
	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()

	select {
	case <-done:
		// Success - Stop returned
	case <-time.After(2 * time.Second):
		t.Error("Stop did not return within timeout")
	}
}

// handshakeHandler checks what the worker exposes while OnConnect runs.
type handshakeHandler struct {
	mockHandler
	worker    *BaseWSWorker
	published atomic.Bool
	writeErr  atomic.Value
}

func (h *handshakeHandler) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	h.published.Store(h.worker.Connected())
	if err := h.worker.Write(websocket.TextMessage, []byte("early")); err != nil {
		h.writeErr.Store(err)
	}
	return conn.WriteMessage(websocket.TextMessage, []byte("hello"))
}

func TestBaseWSWorker_OnConnectRunsBeforePublish(t *testing.T) {
	first := make(chan string, 1)
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err == nil {
			first <- string(msg)
		}
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	handler := &handshakeHandler{mockHandler: mockHandler{url: httpToWS(server.URL)}}
	worker := NewBaseWSWorker(handler)
	handler.worker = worker

	worker.Start(context.Background())
	defer worker.Stop()

	select {
	case msg := <-first:
		if msg != "hello" {
			t.Errorf("first frame = %q, want the handshake", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not receive the handshake")
	}

	if handler.published.Load() {
		t.Error("connection was visible to Write before OnConnect returned")
	}
	if err, _ := handler.writeErr.Load().(error); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write during OnConnect = %v, want ErrNotConnected", err)
	}
}

func TestBaseWSWorker_Write(t *testing.T) {
	receivedMsg := make(chan []byte, 1)

	server := createMockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err == nil {
			receivedMsg <- msg
		}
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	handler := &mockHandler{url: httpToWS(server.URL)}
	worker := NewBaseWSWorker(handler)

	ctx := context.Background()
	worker.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	// Write a message
	testMsg := []byte(`{"action":"subscribe"}`)
	err := worker.Write(websocket.TextMessage, testMsg)
	if err != nil {
		t.Errorf("Write failed: %v", err)
	}

	// Verify server received it
	select {
	case msg := <-receivedMsg:
		if string(msg) != string(testMsg) {
			t.Errorf("expected %s, got %s", testMsg, msg)
		}
	case <-time.After(1 * time.Second):
		t.Error("server did not receive message")
	}

	worker.Stop()
}

func TestBaseWSWorker_WriteWithoutConnection(t *testing.T) {
	worker := NewBaseWSWorker(&mockHandler{url: "ws://127.0.0.1:1"})
	if err := worker.Write(websocket.TextMessage, []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write() error = %v, want ErrNotConnected", err)
	}
	if worker.Connected() {
		t.Error("Connected() = true before Start")
	}
}

func TestBaseWSWorker_Reconnects(t *testing.T) {
	var accepted atomic.Int32
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		accepted.Add(1)
		// close immediately so the worker has to dial again
	})
	defer server.Close()

	handler := &mockHandler{url: httpToWS(server.URL)}
	worker := NewBaseWSWorker(handler)
	worker.Backoff = func(int) time.Duration { return 10 * time.Millisecond }

	worker.Start(context.Background())
	defer worker.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for accepted.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if accepted.Load() < 2 {
		t.Errorf("connections = %d, want at least 2", accepted.Load())
	}
}
