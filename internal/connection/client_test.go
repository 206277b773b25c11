package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server. The handler runs once per
// accepted connection.
func mockWSServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
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
		handler(conn, r)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.ConnectTimeout = 2 * time.Second
	cfg.WriteTimeout = time.Second
	return cfg
}

func TestClientConnectAndSend(t *testing.T) {
	var mu sync.Mutex
	var received []byte

	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
		}
	})
	defer server.Close()

	client := newWSClient(testClientConfig(wsURL(server)), discardLogger())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	testMsg := []byte(`{"type":"ping"}`)
	if err := client.Send(testMsg); err != nil {
		t.Errorf("Send failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if string(received) != string(testMsg) {
		t.Errorf("received %q, want %q", received, testMsg)
	}
}

func TestClientAuthTokenCookie(t *testing.T) {
	var mu sync.Mutex
	var cookie string

	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		mu.Lock()
		cookie = r.Header.Get("Cookie")
		mu.Unlock()
		conn.ReadMessage()
	})
	defer server.Close()

	cfg := testClientConfig(wsURL(server))
	cfg.AuthToken = "tok123"

	client := newWSClient(cfg, discardLogger())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if cookie != "auth_token=tok123" {
		t.Errorf("Cookie header = %q, want %q", cookie, "auth_token=tok123")
	}
}

func TestClientAnonymousConnectSendsNoCookie(t *testing.T) {
	var mu sync.Mutex
	cookie := "unset"

	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		mu.Lock()
		cookie = r.Header.Get("Cookie")
		mu.Unlock()
		conn.ReadMessage()
	})
	defer server.Close()

	client := newWSClient(testClientConfig(wsURL(server)), discardLogger())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if cookie != "" {
		t.Errorf("Cookie header = %q, want empty", cookie)
	}
}

func TestClientMessagesCarryTimestamps(t *testing.T) {
	frames := []string{
		`{"type":"pong"}`,
		`{"type":"trades","data":{}}`,
		`{"type":"book_update","data":{}}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		conn.ReadMessage()
	})
	defer server.Close()

	client := newWSClient(testClientConfig(wsURL(server)), discardLogger())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	var received []string
	timeout := time.After(time.Second)
	for i := 0; i < len(frames); i++ {
		select {
		case msg := <-client.Messages():
			received = append(received, string(msg.Data))
			if msg.ReceivedAt.IsZero() {
				t.Error("ReceivedAt should not be zero")
			}
		case <-timeout:
			t.Fatalf("timeout: received %d of %d frames", len(received), len(frames))
		}
	}

	for i, want := range frames {
		if received[i] != want {
			t.Errorf("frame %d: got %q, want %q", i, received[i], want)
		}
	}
}

func TestClientIgnoresBinaryFrames(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
		conn.ReadMessage()
	})
	defer server.Close()

	client := newWSClient(testClientConfig(wsURL(server)), discardLogger())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case msg := <-client.Messages():
		if string(msg.Data) != `{"type":"pong"}` {
			t.Errorf("got %q, want the text frame only", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for text frame")
	}
}

func TestClientSurfacesCloseCode(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limited")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})
	defer server.Close()

	client := newWSClient(testClientConfig(wsURL(server)), discardLogger())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	// The pump publishes the terminal error, then closes messages.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-client.Messages():
			if ok {
				continue
			}
			err := drainError(client)
			if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				t.Errorf("terminal error = %v, want close code %d", err, websocket.ClosePolicyViolation)
			}
			return
		case <-deadline:
			t.Fatal("timeout waiting for messages to close")
		}
	}
}

func TestClientSendBeforeConnect(t *testing.T) {
	client := newWSClient(testClientConfig("ws://localhost:1"), discardLogger())

	if err := client.Send([]byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestClientDoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.ReadMessage()
	})
	defer server.Close()

	client := newWSClient(testClientConfig(wsURL(server)), discardLogger())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestClientConnectRefused(t *testing.T) {
	client := newWSClient(testClientConfig("ws://127.0.0.1:1"), discardLogger())

	if err := client.Connect(context.Background()); err == nil {
		t.Error("Connect to a closed port should fail")
	}
}
