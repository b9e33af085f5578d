package inference

// Role defines message roles in a conversation.
type Role string

const (
	// RoleSystem is for system instructions.
	RoleSystem Role = "system"

	// RoleUser is for user messages.
	RoleUser Role = "user"

	// RoleAssistant is for assistant responses.
	RoleAssistant Role = "assistant"

	// RoleTool is for tool/function results.
	RoleTool Role = "tool"
)

// Message represents a chat message in a conversation.
// The JSON encoding matches both the wire format and the persisted
// conversation format.
type Message struct {
	// Role identifies the message sender.
	Role Role `json:"role"`

	// Content is the text content of the message. It is serialized as null
	// when the message carries tool calls instead of text.
	Content string `json:"content"`

	// Name is optional, used for tool messages.
	Name string `json:"name,omitempty"`

	// ToolCalls are function calls requested by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID identifies which tool call this message responds to.
	// Present only on tool-role messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall represents a function call request from the model.
type ToolCall struct {
	// ID uniquely identifies this tool call within one model turn.
	ID string `json:"id"`

	// Name of the function to call.
	Name string `json:"name"`

	// Arguments as a JSON string. Parsing is the dispatcher's job.
	Arguments string `json:"arguments"`
}

// Tool defines a callable function for the model.
type Tool struct {
	// Type is always "function" for now.
	Type string `json:"type"`

	// Function describes the callable function.
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a function the model can call.
type ToolFunction struct {
	// Name of the function.
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description"`

	// Parameters as JSON Schema.
	Parameters map[string]interface{} `json:"parameters"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates a tool result message.
func NewToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Content: content}
}

// NewTool creates a function tool definition.
func NewTool(name, description string, parameters map[string]interface{}) Tool {
	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}
