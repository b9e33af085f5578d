// Package tool defines the capability contract the assistant exposes to
// the language model: named, schema-described functions the model may
// request be invoked on its behalf. A Registry holds the closed set of
// tools and a Dispatcher executes the model's invocation requests,
// converting every failure into a structured result the model can read.
package tool

import (
	"context"

	"github.com/medifox/go-medifox/pkg/inference"
)

// Tool is one capability the model may invoke.
type Tool interface {
	// Name returns the unique function name registered with the model.
	Name() string

	// Description returns the human-readable description shown to the
	// model during tool selection.
	Description() string

	// Parameters returns a JSON-Schema-like object describing the
	// accepted arguments (types, enums, required keys).
	Parameters() map[string]interface{}

	// Run executes the tool. convCtx is the conversation so far, for
	// tools that condition on prior turns. Run returns an error for
	// internal faults; the dispatcher converts it to an error result.
	Run(ctx context.Context, args map[string]interface{}, convCtx []inference.Message) (Result, error)
}

// Result is a structured tool outcome. The dispatcher annotates every
// result with "tool_name" and "tool_call_id" before it is folded back
// into the conversation.
type Result map[string]interface{}

// Err builds an error result.
func Err(msg string) Result {
	return Result{"error": msg}
}
