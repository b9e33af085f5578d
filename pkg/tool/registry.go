package tool

import (
	"github.com/medifox/go-medifox/pkg/inference"
)

// Registry holds the set of available tools keyed by name.
// Registration order is preserved so the schema list sent to the model
// is stable across turns.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool, overwriting any prior tool with the same name.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Schemas returns the function schemas for all registered tools in
// registration order. The list is rebuilt on every call so it never
// goes stale after re-registration.
func (r *Registry) Schemas() []inference.Tool {
	schemas := make([]inference.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		schemas = append(schemas, inference.NewTool(t.Name(), t.Description(), t.Parameters()))
	}
	return schemas
}
