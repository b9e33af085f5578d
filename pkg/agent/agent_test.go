package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/memory"
	"github.com/medifox/go-medifox/pkg/tool"
)

type okTool struct{}

func (okTool) Name() string                       { return "ping" }
func (okTool) Description() string                { return "Always succeeds" }
func (okTool) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }
func (okTool) Run(ctx context.Context, args map[string]interface{}, convCtx []inference.Message) (tool.Result, error) {
	return tool.Result{"ok": true}, nil
}

func newStore(t *testing.T) *memory.JSONStore {
	t.Helper()
	store, err := memory.NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}
	return store
}

func TestProcessInputNoTools(t *testing.T) {
	mock := inference.NewScriptedMock(&inference.ChatResponse{
		Message:      inference.NewAssistantMessage("Hello! How can I help you today?"),
		FinishReason: "stop",
		Model:        "gpt-4o",
	})
	store := newStore(t)

	a, err := New(mock, nil, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, meta, err := a.ProcessInput(context.Background(), "hello", "sess-1", "")
	if err != nil {
		t.Fatalf("ProcessInput failed: %v", err)
	}
	if answer != "Hello! How can I help you today?" {
		t.Errorf("unexpected answer: %q", answer)
	}
	if meta.FinishReason != "stop" {
		t.Errorf("expected finish reason stop, got %q", meta.FinishReason)
	}
	if mock.CallCount("Chat") != 1 {
		t.Errorf("expected a single model call, got %d", mock.CallCount("Chat"))
	}

	// Persisted context: persona, user input, final answer.
	saved := store.Load("sess-1")
	if len(saved) != 3 {
		t.Fatalf("expected 3 persisted messages, got %d", len(saved))
	}
	if saved[0].Role != inference.RoleSystem {
		t.Errorf("expected persona first, got role %q", saved[0].Role)
	}
	if saved[1].Role != inference.RoleUser || saved[1].Content != "hello" {
		t.Errorf("unexpected user message: %+v", saved[1])
	}
	if saved[2].Role != inference.RoleAssistant || saved[2].Content != answer {
		t.Errorf("unexpected assistant message: %+v", saved[2])
	}
}

func TestProcessInputToolRound(t *testing.T) {
	mock := inference.NewScriptedMock(
		&inference.ChatResponse{
			Message: inference.Message{
				Role: inference.RoleAssistant,
				ToolCalls: []inference.ToolCall{
					{ID: "call-1", Name: "ping", Arguments: "{}"},
				},
			},
			FinishReason: "tool_calls",
			Model:        "gpt-4o",
		},
		&inference.ChatResponse{
			Message:      inference.NewAssistantMessage("done"),
			FinishReason: "stop",
			Model:        "gpt-4o",
		},
	)
	store := newStore(t)
	reg := tool.NewRegistry()
	reg.Register(okTool{})

	a, err := New(mock, reg, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, meta, err := a.ProcessInput(context.Background(), "ping please", "sess-1", "")
	if err != nil {
		t.Fatalf("ProcessInput failed: %v", err)
	}
	if answer != "done" {
		t.Errorf("expected follow-up answer, got %q", answer)
	}
	if len(meta.ToolResults) != 1 {
		t.Fatalf("expected 1 tool result, got %d", len(meta.ToolResults))
	}
	if ok, _ := meta.ToolResults[0]["ok"].(bool); !ok {
		t.Errorf("expected ok:true result, got %v", meta.ToolResults[0])
	}

	reqs := mock.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(reqs))
	}
	if len(reqs[0].Tools) != 1 || reqs[0].ToolChoice != "auto" {
		t.Errorf("primary call should carry tool schemas, got %+v", reqs[0])
	}
	if len(reqs[1].Tools) != 0 {
		t.Error("follow-up call must not carry tools")
	}

	// Follow-up context: persona, user, then one assistant/tool pair.
	follow := reqs[1].Messages
	if len(follow) != 4 {
		t.Fatalf("expected 4 follow-up messages, got %d", len(follow))
	}
	asst := follow[2]
	if asst.Role != inference.RoleAssistant || len(asst.ToolCalls) != 1 || asst.Content != "" {
		t.Errorf("unexpected assistant tool-call message: %+v", asst)
	}
	toolMsg := follow[3]
	if toolMsg.Role != inference.RoleTool || toolMsg.ToolCallID != "call-1" {
		t.Errorf("unexpected tool message: %+v", toolMsg)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(toolMsg.Content), &decoded); err != nil {
		t.Fatalf("tool message content is not JSON: %v", err)
	}
	if decoded["tool_name"] != "ping" || decoded["tool_call_id"] != "call-1" {
		t.Errorf("expected annotated result, got %v", decoded)
	}

	// Tool round-trip messages are not persisted.
	saved := store.Load("sess-1")
	if len(saved) != 3 {
		t.Fatalf("expected 3 persisted messages, got %d", len(saved))
	}
	for _, msg := range saved {
		if msg.Role == inference.RoleTool || len(msg.ToolCalls) > 0 {
			t.Errorf("tool round-trip leaked into persisted context: %+v", msg)
		}
	}
}

func TestProcessInputModelError(t *testing.T) {
	mock := inference.WithError(&inference.APIError{
		StatusCode: 200,
		Message:    "The model is overloaded",
		Provider:   "client",
	})
	store := newStore(t)

	a, err := New(mock, nil, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, meta, err := a.ProcessInput(context.Background(), "hello", "sess-1", "")
	if err != nil {
		t.Fatalf("model error payload must not surface as an error: %v", err)
	}
	if answer != "Error: The model is overloaded" {
		t.Errorf("unexpected answer: %q", answer)
	}
	if meta.Err == nil || meta.Err.Message != "The model is overloaded" {
		t.Errorf("expected error metadata, got %+v", meta)
	}

	// The error answer is still committed to the conversation.
	saved := store.Load("sess-1")
	if len(saved) != 3 || saved[2].Content != answer {
		t.Errorf("expected error answer persisted, got %+v", saved)
	}
}

func TestProcessInputTransportError(t *testing.T) {
	mock := inference.WithError(inference.WrapError("client", inference.ErrProviderUnavailable))
	store := newStore(t)

	a, err := New(mock, nil, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, _, err := a.ProcessInput(context.Background(), "hello", "sess-1", ""); err == nil {
		t.Fatal("expected transport error to surface")
	}
	if saved := store.Load("sess-1"); len(saved) != 0 {
		t.Errorf("failed turn must not be persisted, got %d messages", len(saved))
	}
}

func TestProcessInputPatientContext(t *testing.T) {
	dataDir := t.TempDir()
	writeFile(t, dataDir, "patients/PT-1001.json", map[string]interface{}{
		"name":   "Sarah Chen",
		"age":    34,
		"gender": "female",
	})

	mock := inference.NewScriptedMock(
		&inference.ChatResponse{Message: inference.NewAssistantMessage("first"), FinishReason: "stop"},
		&inference.ChatResponse{Message: inference.NewAssistantMessage("second"), FinishReason: "stop"},
	)
	store := newStore(t)

	a, err := New(mock, nil, store, WithPatientData(memory.NewPatientData(dataDir)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	if _, _, err := a.ProcessInput(ctx, "hi", "sess-1", "PT-1001"); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if _, _, err := a.ProcessInput(ctx, "again", "sess-1", "PT-1001"); err != nil {
		t.Fatalf("second turn failed: %v", err)
	}

	summaries := 0
	for _, msg := range store.Load("sess-1") {
		if msg.Role == inference.RoleSystem && strings.Contains(msg.Content, "patient context summary") {
			summaries++
			if !strings.Contains(msg.Content, "Sarah Chen") {
				t.Errorf("summary missing patient name: %q", msg.Content)
			}
		}
	}
	if summaries != 1 {
		t.Errorf("expected exactly one patient summary, got %d", summaries)
	}
}

func writeFile(t *testing.T, dir, rel string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
