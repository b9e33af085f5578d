// Package agent implements the conversational orchestration loop: it
// assembles the session context, calls the model with the registered
// tool schemas, dispatches any requested tool calls, and makes one
// follow-up model call to produce the final answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/memory"
	"github.com/medifox/go-medifox/pkg/tool"
)

// SystemPrompt is the assistant persona prepended to every new
// conversation.
const SystemPrompt = `You are MediFox, an advanced healthcare virtual assistant designed to help bridge communication between healthcare providers and patients.

Your primary responsibilities include:
1. Gathering and maintaining accurate patient information
2. Conducting preliminary health assessments
3. Managing medication information and providing reminders
4. Handling appointment scheduling and follow-ups
5. Providing reliable health information from trusted medical sources
6. Summarizing patient data for healthcare providers

IMPORTANT GUIDELINES:
- Always maintain a professional, compassionate, and helpful tone
- Prioritize patient safety and well-being above all else
- Never provide definitive medical diagnoses; instead, suggest possibilities and refer to healthcare providers
- Handle patient data with strict confidentiality and respect for privacy
- Clearly distinguish between evidence-based medical information and general advice
- For urgent medical situations, immediately advise seeking emergency care
- If you don't know something or are uncertain, acknowledge limitations and avoid speculation
- Ask for any missing patient information that would be important for assessment
- When information is incomplete, make this clear and note what additional data would be helpful

You have access to various tools to help you perform these functions effectively. Use them as needed to provide the best assistance possible.

Remember that your role is to support healthcare decisions, not replace the judgment of licensed medical professionals.
`

// patientContextMarker identifies the patient-summary system message so
// it is injected at most once per conversation.
const patientContextMarker = "patient context summary"

// Metadata describes what happened during one turn.
type Metadata struct {
	// FinishReason is the primary call's stop reason.
	FinishReason string

	// Model is the model that produced the answer.
	Model string

	// ToolCalls are the raw invocation requests from the primary call.
	ToolCalls []inference.ToolCall

	// ToolResults are the dispatcher's results, ordered like ToolCalls.
	ToolResults []tool.Result

	// Err is set when the model answered with an error payload. The
	// answer text carries the rendered message in that case.
	Err *inference.APIError
}

// Agent runs the two-call tool protocol over a provider, a tool
// registry, and a conversation store.
type Agent struct {
	provider   inference.Provider
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	store      memory.ConversationStore
	patients   *memory.PatientData
	logger     *slog.Logger
	persona    string
}

// Option configures an Agent.
type Option func(*Agent)

// WithPatientData enables patient-context summaries from local records.
func WithPatientData(pd *memory.PatientData) Option {
	return func(a *Agent) { a.patients = pd }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithPersona overrides the default system prompt.
func WithPersona(persona string) Option {
	return func(a *Agent) { a.persona = persona }
}

// New creates an agent. The provider and store are required; a nil
// registry means the model is called without tools.
func New(provider inference.Provider, registry *tool.Registry, store memory.ConversationStore, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	if store == nil {
		return nil, fmt.Errorf("agent: conversation store is required")
	}
	if registry == nil {
		registry = tool.NewRegistry()
	}

	a := &Agent{
		provider: provider,
		registry: registry,
		store:    store,
		logger:   slog.Default(),
		persona:  SystemPrompt,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "agent")
	a.dispatcher = tool.NewDispatcher(registry, a.logger)
	return a, nil
}

// ProcessInput runs one conversational turn. The returned answer is
// always user-presentable: a model-side error payload is rendered as
// the answer text rather than returned as an error. Only transport
// failures surface as errors.
func (a *Agent) ProcessInput(ctx context.Context, input, sessionID, patientID string) (string, *Metadata, error) {
	convCtx := a.store.Load(sessionID)
	if len(convCtx) == 0 {
		convCtx = append(convCtx, inference.NewSystemMessage(a.persona))
	}

	if patientID != "" && a.patients != nil && !hasPatientContext(convCtx) {
		if summary := a.patients.Summarize(patientID); summary != "" {
			convCtx = append(convCtx, inference.NewSystemMessage(
				"Current patient context summary:\n"+summary))
		}
	}

	convCtx = append(convCtx, inference.NewUserMessage(input))

	answer, meta, err := a.respond(ctx, convCtx)
	if err != nil {
		return "", nil, err
	}

	convCtx = append(convCtx, inference.NewAssistantMessage(answer))
	if err := a.store.Save(sessionID, convCtx); err != nil {
		a.logger.Warn("failed to persist conversation", "session_id", sessionID, "error", err)
	}

	return answer, meta, nil
}

// respond performs the primary model call and, when tools are
// requested, the dispatch round and follow-up call. The tool round-trip
// messages live only in the follow-up request; callers persist just the
// user input and the final answer.
func (a *Agent) respond(ctx context.Context, convCtx []inference.Message) (string, *Metadata, error) {
	resp, err := a.provider.Chat(ctx, &inference.ChatRequest{
		Messages:   convCtx,
		Tools:      a.registry.Schemas(),
		ToolChoice: "auto",
	})
	if err != nil {
		if apiErr := asAPIError(err); apiErr != nil {
			return "Error: " + apiErr.Message, &Metadata{Err: apiErr}, nil
		}
		return "", nil, err
	}

	meta := &Metadata{
		FinishReason: resp.FinishReason,
		Model:        resp.Model,
	}
	answer := resp.Message.Content

	calls := resp.Message.ToolCalls
	if len(calls) == 0 {
		return answer, meta, nil
	}

	a.logger.Info("dispatching tool calls", "count", len(calls))
	results := a.dispatcher.ExecuteBatch(ctx, calls, convCtx)
	meta.ToolCalls = calls
	meta.ToolResults = results

	// One assistant/tool pair per call so the follow-up model can
	// resolve each result against its originating request.
	followCtx := make([]inference.Message, len(convCtx), len(convCtx)+2*len(calls))
	copy(followCtx, convCtx)
	for i, call := range calls {
		followCtx = append(followCtx, inference.Message{
			Role:      inference.RoleAssistant,
			ToolCalls: []inference.ToolCall{call},
		})
		followCtx = append(followCtx, inference.NewToolMessage(call.ID, encodeResult(results[i])))
	}

	follow, err := a.provider.Chat(ctx, &inference.ChatRequest{Messages: followCtx})
	if err != nil {
		if apiErr := asAPIError(err); apiErr != nil {
			meta.Err = apiErr
			return "Error: " + apiErr.Message, meta, nil
		}
		return "", nil, err
	}
	if follow.Message.Content != "" {
		answer = follow.Message.Content
	}
	if follow.Model != "" {
		meta.Model = follow.Model
	}
	return answer, meta, nil
}

// Registry exposes the tool set for introspection.
func (a *Agent) Registry() *tool.Registry { return a.registry }

func hasPatientContext(convCtx []inference.Message) bool {
	for _, msg := range convCtx {
		if strings.Contains(msg.Content, patientContextMarker) {
			return true
		}
	}
	return false
}

func encodeResult(r tool.Result) string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

func asAPIError(err error) *inference.APIError {
	var apiErr *inference.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
