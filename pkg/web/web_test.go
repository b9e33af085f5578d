package web

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/medifox/go-medifox/pkg/agent"
	"github.com/medifox/go-medifox/pkg/gateway"
	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/memory"
	"github.com/medifox/go-medifox/pkg/stt"
	"github.com/medifox/go-medifox/pkg/tts"
)

func newTestAgent(t *testing.T, answer string) *agent.Agent {
	t.Helper()
	store, err := memory.NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	provider := inference.NewScriptedMock(&inference.ChatResponse{
		Message:      inference.NewAssistantMessage(answer),
		FinishReason: "stop",
	})
	a, err := agent.New(provider, nil, store)
	if err != nil {
		t.Fatalf("agent.New() error = %v", err)
	}
	return a
}

func TestHealthEndpoint(t *testing.T) {
	srv, err := NewServer(newTestAgent(t, "hi"))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	resp, err := srv.App().Test(httptestRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestChatEndpoint(t *testing.T) {
	srv, err := NewServer(newTestAgent(t, "Take it with food."))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	payload := []byte(`{"message": "how should I take metformin?", "session_id": "sess-1"}`)
	resp, err := srv.App().Test(httptestRequest("POST", "/api/chat", payload))
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Response != "Take it with food." {
		t.Errorf("response = %q", body.Response)
	}
	if body.SessionID != "sess-1" {
		t.Errorf("session_id = %q, want sess-1", body.SessionID)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	srv, err := NewServer(newTestAgent(t, "hi"))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	resp, err := srv.App().Test(httptestRequest("POST", "/api/chat", []byte(`{"message": "  "}`)))
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatGeneratesSessionID(t *testing.T) {
	srv, err := NewServer(newTestAgent(t, "hello"))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	resp, err := srv.App().Test(httptestRequest("POST", "/api/chat", []byte(`{"message": "hello"}`)))
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	defer resp.Body.Close()

	var body ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SessionID == "" {
		t.Error("expected a generated session_id")
	}
}

func TestVoiceSocket(t *testing.T) {
	srv, err := NewServer(newTestAgent(t, "Rest and stay hydrated."),
		WithVoice(stt.NewMock("I feel dizzy"), tts.NewMock()),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.App().Listener(ln)
	defer srv.Shutdown()

	url := "ws://" + ln.Addr().String() + "/ws/voice-chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, bytes.Repeat([]byte{0x01}, 200)); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	// The first frame only arrives after the inactivity window flushes
	// the buffered utterance, so reads need a generous deadline.
	var sawTranscript, sawAnswer, sawAudio bool
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) && !(sawTranscript && sawAnswer && sawAudio) {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		switch kind {
		case websocket.TextMessage:
			msg := string(data)
			if strings.HasPrefix(msg, gateway.TagTranscript) {
				sawTranscript = strings.Contains(msg, "I feel dizzy")
			}
			if strings.HasPrefix(msg, gateway.TagAI) {
				sawAnswer = strings.Contains(msg, "Rest and stay hydrated.")
			}
		case websocket.BinaryMessage:
			sawAudio = len(data) > 0
		}
	}

	if !sawTranscript {
		t.Error("never received the transcript frame")
	}
	if !sawAnswer {
		t.Error("never received the assistant answer frame")
	}
	if !sawAudio {
		t.Error("never received synthesized audio")
	}
}

func TestVoiceSocketRejectsPlainHTTP(t *testing.T) {
	srv, err := NewServer(newTestAgent(t, "hi"),
		WithVoice(stt.NewMock("x"), tts.NewMock()),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	resp, err := srv.App().Test(httptestRequest("GET", "/ws/voice-chat", nil))
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}

// httptestRequest builds a request for fiber's in-process test harness.
func httptestRequest(method, path string, body []byte) *http.Request {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
