package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/medifox/go-medifox/pkg/inference"
)

// Dispatcher executes tool invocation requests against a Registry.
// Every failure mode, unknown tool, unparsable arguments, tool fault,
// becomes a structured error result. The dispatcher never returns an
// error and never lets one tool's failure abort a batch.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger.With("component", "tool.dispatcher"),
	}
}

// Execute runs a single tool by name with already-parsed arguments.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]interface{}, convCtx []inference.Message) Result {
	t, ok := d.registry.Get(name)
	if !ok {
		return Err(fmt.Sprintf("Tool '%s' not found", name))
	}

	result, err := d.run(ctx, t, args, convCtx)
	if err != nil {
		d.logger.Error("tool execution failed", "tool", name, "error", err)
		return Result{
			"error": fmt.Sprintf("Tool execution failed: %v", err),
			"tool":  name,
			"args":  args,
		}
	}
	return result
}

// run invokes the tool, converting a panic into an error so a broken
// tool cannot unwind the batch.
func (d *Dispatcher) run(ctx context.Context, t Tool, args map[string]interface{}, convCtx []inference.Message) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(ctx, args, convCtx)
}

// ExecuteBatch runs every invocation request from one model turn,
// sequentially, in request order. Arguments arrive as serialized JSON
// and are parsed here; a parse failure produces an error result without
// invoking the tool. Each result is annotated with the originating
// tool_name and tool_call_id, and the returned slice is positionally
// aligned with the input requests.
func (d *Dispatcher) ExecuteBatch(ctx context.Context, calls []inference.ToolCall, convCtx []inference.Message) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		var result Result

		args, parseErr := parseArguments(call.Arguments)
		if parseErr != nil {
			d.logger.Warn("unparsable tool arguments", "tool", call.Name, "error", parseErr)
			result = Result{
				"error":       "Failed to parse function arguments",
				"tool":        call.Name,
				"args_string": call.Arguments,
			}
		} else {
			result = d.Execute(ctx, call.Name, args, convCtx)
		}

		result["tool_name"] = call.Name
		result["tool_call_id"] = call.ID
		results = append(results, result)
	}
	return results
}

// parseArguments decodes the model's argument string. An empty string
// means no arguments.
func parseArguments(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
