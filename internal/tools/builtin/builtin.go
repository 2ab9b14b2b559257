// Package builtin provides the demo tools: arithmetic, unit conversion and
// the mock travel-planning generators.
package builtin

import (
	"chatkit/internal/tools"
)

// All returns a fresh instance of every built-in tool.
func All() []tools.Tool {
	return []tools.Tool{
		NewCalculator(),
		NewUnitConverter(),
		NewWeather(),
		NewTrafficTime(),
		NewTravelAdvice(),
		NewPackingList(),
		NewTodoPlanner(),
	}
}

// Declared lists the tool definitions advertised to the model.
func Declared() []tools.Name {
	return tools.AllNames()
}

// RegisterBuiltins registers all built-in tools to the given registry.
func RegisterBuiltins(r *tools.Registry) error {
	for _, tool := range All() {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistryWithBuiltins creates a registry holding every built-in tool and
// verifies it against the declared definitions.
func NewRegistryWithBuiltins() (*tools.Registry, error) {
	r := tools.NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		return nil, err
	}
	if err := r.CheckComplete(Declared()); err != nil {
		return nil, err
	}
	return r, nil
}
