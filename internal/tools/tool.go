// Package tools defines the Tool interface, the closed set of tool names and
// the registry the dispatch loop executes against.
package tools

import (
	"context"
	"slices"
)

// Name identifies a tool. The set is closed; see AllNames.
type Name string

const (
	NameCalculator    Name = "calculator"
	NameUnitConverter Name = "unitConverter"
	NameWeather       Name = "weatherTool"
	NameTrafficTime   Name = "trafficTimeTool"
	NameTravelAdvice  Name = "travelAdviceTool"
	NamePackingList   Name = "packingListTool"
	NameTodoPlanner   Name = "todoPlannerTool"
)

var allNames = []Name{
	NameCalculator,
	NameUnitConverter,
	NameWeather,
	NameTrafficTime,
	NameTravelAdvice,
	NamePackingList,
	NameTodoPlanner,
}

// AllNames returns every known tool name in declaration order.
func AllNames() []Name {
	return slices.Clone(allNames)
}

// ParseName maps a model-supplied string onto a known Name.
func ParseName(s string) (Name, bool) {
	n := Name(s)
	return n, slices.Contains(allNames, n)
}

// Valid reports whether n is one of the known names.
func (n Name) Valid() bool {
	return slices.Contains(allNames, n)
}

func (n Name) String() string {
	return string(n)
}

// Tool is a capability the model can invoke by name.
type Tool interface {
	// Name returns the tool's identifier.
	Name() Name

	// Description is sent to the model alongside the parameter schema.
	Description() string

	// Parameters returns the JSON Schema for the argument object.
	Parameters() map[string]any

	// Execute runs the tool. The returned value is serialized to JSON for
	// the tool message; an error's text is sent instead on failure.
	Execute(ctx context.Context, args map[string]any) (any, error)
}
