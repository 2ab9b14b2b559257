package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"chatkit/internal/provider"
)

// Registry maps tool names to implementations. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[Name]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[Name]Tool)}
}

// Register adds a tool. Unknown names and duplicates are rejected.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return NewInvalidArgsError("registry", "tool cannot be nil", nil)
	}
	name := tool.Name()
	if !name.Valid() {
		return NewInvalidArgsError("registry", fmt.Sprintf("unknown tool name %q", name), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyExists, name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister registers tool and panics on error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get looks up a tool by the name the model used.
func (r *Registry) Get(name string) (Tool, bool) {
	n, ok := ParseName(name)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[n]
	return tool, ok
}

// List returns the registered tools ordered by declaration order of Name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, n := range allNames {
		if t, ok := r.tools[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Names returns the registered names in declaration order.
func (r *Registry) Names() []Name {
	list := r.List()
	out := make([]Name, len(list))
	for i, t := range list {
		out[i] = t.Name()
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, NewToolNotFoundError(name)
	}
	return tool.Execute(ctx, args)
}

// CheckComplete verifies the registry holds exactly the declared tools.
func (r *Registry) CheckComplete(declared []Name) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var e IncompleteRegistryError
	for _, n := range declared {
		if _, ok := r.tools[n]; !ok {
			e.Missing = append(e.Missing, n)
		}
	}
	for _, n := range allNames {
		if _, ok := r.tools[n]; ok && !slices.Contains(declared, n) {
			e.Undeclared = append(e.Undeclared, n)
		}
	}
	if len(e.Missing) > 0 || len(e.Undeclared) > 0 {
		return &e
	}
	return nil
}

// ToProviderTools converts the registered tools to wire definitions.
func (r *Registry) ToProviderTools() ([]provider.Tool, error) {
	list := r.List()
	out := make([]provider.Tool, 0, len(list))
	for _, tool := range list {
		params, err := json.Marshal(tool.Parameters())
		if err != nil {
			return nil, NewInvalidArgsError(tool.Name().String(), "failed to marshal parameters", err)
		}
		out = append(out, provider.Tool{
			Type: "function",
			Function: provider.ToolFunction{
				Name:        tool.Name().String(),
				Description: tool.Description(),
				Parameters:  params,
			},
		})
	}
	return out, nil
}
