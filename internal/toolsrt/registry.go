package toolsrt

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry is a thread-safe name -> Tool map, grounded on the
// teacher's internal/agent/tool_registry.go ToolRegistry shape.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool, compiling its parameter schema eagerly so a
// malformed schema fails at startup rather than on first call.
func (r *Registry) Register(t Tool) error {
	compiled, err := compileSchema(t.Name(), t.Parameters())
	if err != nil {
		return fmt.Errorf("register tool %s: %w", t.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.schemas[t.Name()] = compiled
	return nil
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// AsLLMTools renders the registry contents as the wire shape Providers
// expect for toolSpecs.
func (r *Registry) AsLLMTools() []LLMTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LLMTool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, LLMTool{
			Type: "function",
			Function: LLMFunction{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

// ExecuteResult is the outcome of a single registry-mediated tool
// invocation, distinguishing "unknown tool" from a validation failure
// from a normal (possibly tool-internal-error) result; callers decide
// what to persist from it, but none of these branches ever returns a
// Go error across this boundary per §7.
type ExecuteResult struct {
	Content string
	Unknown bool
}

// Execute runs the named tool with the given arguments, validating
// them against the tool's declared schema first. An unknown tool
// yields Unknown=true with a descriptive Content string rather than an
// error (spec.md §7: unknown_tool is absorbed into the tool result,
// never propagated).
func (r *Registry) Execute(ctx context.Context, name string, arguments map[string]any) ExecuteResult {
	r.mu.RLock()
	tool, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		return ExecuteResult{Content: fmt.Sprintf("Unknown tool: %s", name), Unknown: true}
	}

	if schema != nil {
		if err := schema.Validate(toAnyMap(arguments)); err != nil {
			return ExecuteResult{Content: fmt.Sprintf("ERROR: invalid arguments for %s: %v", name, err)}
		}
	}

	result, err := tool.Execute(ctx, arguments)
	if err != nil {
		return ExecuteResult{Content: fmt.Sprintf("ERROR: %s failed: %v", name, err)}
	}
	return ExecuteResult{Content: result}
}

// toAnyMap satisfies jsonschema.Validate's interface{} expectation
// without re-marshaling through JSON.
func toAnyMap(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func compileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	url := name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}
