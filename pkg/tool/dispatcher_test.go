package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/medifox/go-medifox/pkg/inference"
)

// stubTool is a minimal Tool for dispatcher tests.
type stubTool struct {
	name   string
	runFn  func(args map[string]interface{}) (Result, error)
	params map[string]interface{}
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub tool" }
func (s *stubTool) Parameters() map[string]interface{} {
	if s.params != nil {
		return s.params
	}
	return map[string]interface{}{"type": "object"}
}
func (s *stubTool) Run(ctx context.Context, args map[string]interface{}, convCtx []inference.Message) (Result, error) {
	if s.runFn != nil {
		return s.runFn(args)
	}
	return Result{"ok": true}, nil
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "alpha"})
	reg.Register(&stubTool{name: "beta"})
	reg.Register(&stubTool{name: "alpha", runFn: func(map[string]interface{}) (Result, error) {
		return Result{"version": 2}, nil
	}})

	if reg.Len() != 2 {
		t.Fatalf("Expected 2 tools after overwrite, got %d", reg.Len())
	}

	names := reg.Names()
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("Registration order not preserved: %v", names)
	}

	got, _ := reg.Get("alpha")
	result, _ := got.Run(context.Background(), nil, nil)
	if result["version"] != 2 {
		t.Error("Expected overwriting registration to win")
	}
}

func TestRegistrySchemasOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "get_patient_info"})
	reg.Register(&stubTool{name: "assess_symptoms"})
	reg.Register(&stubTool{name: "manage_medications"})

	schemas := reg.Schemas()
	if len(schemas) != 3 {
		t.Fatalf("Expected 3 schemas, got %d", len(schemas))
	}
	want := []string{"get_patient_info", "assess_symptoms", "manage_medications"}
	for i, w := range want {
		if schemas[i].Function.Name != w {
			t.Errorf("Schema %d: expected %s, got %s", i, w, schemas[i].Function.Name)
		}
		if schemas[i].Type != "function" {
			t.Errorf("Schema %d: expected type function, got %s", i, schemas[i].Type)
		}
	}
}

func TestDispatcherUnknownTool(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil)

	result := d.Execute(context.Background(), "ghost_tool", map[string]interface{}{}, nil)
	if result["error"] != "Tool 'ghost_tool' not found" {
		t.Errorf("Unexpected error result: %v", result["error"])
	}
}

func TestDispatcherToolFault(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{
		name: "broken",
		runFn: func(map[string]interface{}) (Result, error) {
			return nil, errors.New("backend unreachable")
		},
	})
	d := NewDispatcher(reg, nil)

	args := map[string]interface{}{"patient_id": "PT-1001"}
	result := d.Execute(context.Background(), "broken", args, nil)

	if result["error"] != "Tool execution failed: backend unreachable" {
		t.Errorf("Unexpected error: %v", result["error"])
	}
	if result["tool"] != "broken" {
		t.Errorf("Expected tool name in result, got %v", result["tool"])
	}
	if got := result["args"].(map[string]interface{}); got["patient_id"] != "PT-1001" {
		t.Errorf("Expected original args in result, got %v", got)
	}
}

func TestDispatcherToolPanic(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{
		name: "panicky",
		runFn: func(map[string]interface{}) (Result, error) {
			panic("nil map write")
		},
	})
	d := NewDispatcher(reg, nil)

	result := d.Execute(context.Background(), "panicky", nil, nil)
	if result["error"] == nil {
		t.Fatal("Expected error result from panicking tool")
	}
}

func TestExecuteBatchOrderAndAnnotation(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "first", runFn: func(map[string]interface{}) (Result, error) {
		return Result{"n": 1}, nil
	}})
	reg.Register(&stubTool{name: "second", runFn: func(map[string]interface{}) (Result, error) {
		return Result{"n": 2}, nil
	}})
	d := NewDispatcher(reg, nil)

	calls := []inference.ToolCall{
		{ID: "call-a", Name: "first", Arguments: `{}`},
		{ID: "call-b", Name: "ghost_tool", Arguments: `{}`},
		{ID: "call-c", Name: "second", Arguments: `{}`},
	}

	results := d.ExecuteBatch(context.Background(), calls, nil)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	for i, call := range calls {
		if results[i]["tool_call_id"] != call.ID {
			t.Errorf("Result %d: expected tool_call_id %s, got %v", i, call.ID, results[i]["tool_call_id"])
		}
		if results[i]["tool_name"] != call.Name {
			t.Errorf("Result %d: expected tool_name %s, got %v", i, call.Name, results[i]["tool_name"])
		}
	}

	if results[0]["n"] != 1 {
		t.Errorf("Result 0: expected n=1, got %v", results[0]["n"])
	}
	if results[1]["error"] != "Tool 'ghost_tool' not found" {
		t.Errorf("Result 1: expected not-found error, got %v", results[1]["error"])
	}
	if results[2]["n"] != 2 {
		t.Errorf("Result 2: expected n=2, got %v", results[2]["n"])
	}
}

func TestExecuteBatchBadArguments(t *testing.T) {
	called := false
	reg := NewRegistry()
	reg.Register(&stubTool{name: "target", runFn: func(map[string]interface{}) (Result, error) {
		called = true
		return Result{"ok": true}, nil
	}})
	d := NewDispatcher(reg, nil)

	raw := `{"patient_id": PT-1001}` // unquoted value
	results := d.ExecuteBatch(context.Background(), []inference.ToolCall{
		{ID: "call-x", Name: "target", Arguments: raw},
	}, nil)

	if results[0]["error"] != "Failed to parse function arguments" {
		t.Errorf("Unexpected error: %v", results[0]["error"])
	}
	if results[0]["args_string"] != raw {
		t.Errorf("Expected raw args preserved, got %v", results[0]["args_string"])
	}
	if called {
		t.Error("Tool must not run when arguments fail to parse")
	}
}

func TestExecuteBatchEmptyArguments(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "noargs"})
	d := NewDispatcher(reg, nil)

	results := d.ExecuteBatch(context.Background(), []inference.ToolCall{
		{ID: "call-1", Name: "noargs", Arguments: ""},
	}, nil)

	if results[0]["error"] != nil {
		t.Errorf("Empty arguments should dispatch fine, got error %v", results[0]["error"])
	}
	if results[0]["ok"] != true {
		t.Errorf("Expected ok=true, got %v", results[0]["ok"])
	}
}
