package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danhoughton/fanout/llm"
)

var ErrToolExists = errors.New("tool is already registered")

// ToolHandler executes one tool call. The returned string becomes the tool
// message content; a returned error (or a panic) becomes an error payload.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (string, error)

// Outcome is the tagged result of a dispatch: exactly one of Value or Err is set
type Outcome struct {
	Value string
	Err   string
}

// Failed reports whether the dispatch produced an error payload
func (o Outcome) Failed() bool {
	return o.Err != ""
}

// Payload renders the content placed into the tool response message.
// Errors are delivered as a structured payload, never as a Go error, so a
// broken tool can't abort the agent loop that called it.
func (o Outcome) Payload() string {
	if o.Failed() {
		data, err := json.Marshal(map[string]string{"error": o.Err})
		if err != nil {
			return `{"error": "tool failed"}`
		}
		return string(data)
	}
	return o.Value
}

type registeredTool struct {
	def     llm.Function
	handler ToolHandler
}

// Registry maps tool names to handlers with their declared parameter schemas
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds a tool under a unique name. Parameters follow the JSON Schema
// object convention ("type"/"properties"/"required") used by the providers.
func (r *Registry) Register(name, description string, parameters map[string]interface{}, handler ToolHandler) error {
	if name == "" {
		return errors.New("tool name cannot be empty")
	}
	if handler == nil {
		return errors.New("tool handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, name)
	}

	if parameters == nil {
		parameters = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	r.tools[name] = registeredTool{
		def: llm.Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
		handler: handler,
	}
	return nil
}

// Has reports whether a tool is registered under the given name
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Schemas returns the declared tools in a stable order for LLM requests
func (r *Registry) Schemas() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.tools) == 0 {
		return nil
	}

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]llm.Tool, len(names))
	for i, name := range names {
		def := r.tools[name].def
		tools[i] = llm.Tool{Type: "function", Function: &def}
	}
	return tools
}

// Dispatch looks up a tool by name, validates its arguments, and runs it.
// It never returns a Go error and never panics across its boundary: unknown
// names, malformed arguments, handler errors, and handler panics all come
// back as error Outcomes.
func (r *Registry) Dispatch(ctx context.Context, name, rawArguments string) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = Outcome{Err: fmt.Sprintf("tool %s panicked: %v", name, rec)}
		}
	}()

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Outcome{Err: fmt.Sprintf("tool %s not found", name)}
	}

	args := make(map[string]interface{})
	if rawArguments != "" {
		if err := json.Unmarshal([]byte(rawArguments), &args); err != nil {
			return Outcome{Err: fmt.Sprintf("invalid arguments for tool %s: %v", name, err)}
		}
	}

	if missing := missingRequired(tool.def.Parameters, args); len(missing) > 0 {
		return Outcome{Err: fmt.Sprintf("tool %s missing required arguments: %v", name, missing)}
	}

	value, err := tool.handler(ctx, args)
	if err != nil {
		return Outcome{Err: err.Error()}
	}
	return Outcome{Value: value}
}

// missingRequired checks the schema's "required" list against the parsed arguments
func missingRequired(parameters, args map[string]interface{}) []string {
	required, ok := parameters["required"].([]interface{})
	if !ok {
		return nil
	}

	var missing []string
	for _, entry := range required {
		name, ok := entry.(string)
		if !ok {
			continue
		}
		if _, present := args[name]; !present {
			missing = append(missing, name)
		}
	}
	return missing
}
