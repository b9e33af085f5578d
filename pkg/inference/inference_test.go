package inference

import (
	"context"
	"testing"
)

func TestNewTool(t *testing.T) {
	tool := NewTool("assess_symptoms", "Check symptoms", map[string]interface{}{
		"type": "object",
	})
	if tool.Type != "function" {
		t.Errorf("Expected type 'function', got %s", tool.Type)
	}
	if tool.Function.Name != "assess_symptoms" {
		t.Errorf("Unexpected name: %s", tool.Function.Name)
	}
}

func TestNewToolMessage(t *testing.T) {
	msg := NewToolMessage("call-7", `{"ok": true}`)
	if msg.Role != RoleTool {
		t.Errorf("Expected role tool, got %s", msg.Role)
	}
	if msg.ToolCallID != "call-7" {
		t.Errorf("Unexpected tool_call_id: %s", msg.ToolCallID)
	}
}

func TestScriptedMock(t *testing.T) {
	mock := NewScriptedMock(
		&ChatResponse{Message: NewAssistantMessage("first"), FinishReason: "tool_calls"},
		&ChatResponse{Message: NewAssistantMessage("second"), FinishReason: "stop"},
	)

	ctx := context.Background()
	req := &ChatRequest{Messages: []Message{NewUserMessage("hi")}}

	r1, err := mock.Chat(ctx, req)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if r1.Message.Content != "first" {
		t.Errorf("Expected 'first', got %s", r1.Message.Content)
	}

	r2, _ := mock.Chat(ctx, req)
	if r2.Message.Content != "second" {
		t.Errorf("Expected 'second', got %s", r2.Message.Content)
	}

	// Past the script end, the last response repeats
	r3, _ := mock.Chat(ctx, req)
	if r3.Message.Content != "second" {
		t.Errorf("Expected 'second' replay, got %s", r3.Message.Content)
	}

	if mock.CallCount("Chat") != 3 {
		t.Errorf("Expected 3 recorded calls, got %d", mock.CallCount("Chat"))
	}
	if len(mock.Requests()) != 3 {
		t.Errorf("Expected 3 recorded requests, got %d", len(mock.Requests()))
	}
}

func TestMockWithError(t *testing.T) {
	mock := WithError(ErrProviderUnavailable)
	if _, err := mock.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Fatal("Expected error from mock")
	}
}
