// Package workflow runs declarative multi-step plans against a registry of
// step functions, in dependency order, with optional model-assisted
// parameter recovery when a step fails.
package workflow

import (
	"context"
	"slices"

	"chatkit/internal/tools"
)

// PhasePlanning marks a model answer as a workflow plan.
const PhasePlanning = "planning"

// Status is a step's lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Category groups steps by what they produce.
type Category string

const (
	CategoryWeather Category = "weather"
	CategoryTraffic Category = "traffic"
	CategoryTravel  Category = "travel"
	CategoryPacking Category = "packing"
	CategoryFinal   Category = "final"
)

// Params are the trip parameters shared by every step.
type Params struct {
	Destination              string  `json:"destination"`
	Date                     string  `json:"date"`
	StayDays                 float64 `json:"stay_days"`
	TransportationPreference string  `json:"transportation_preference"`
}

// Step is one unit of a plan. A step without a tool is a marker that
// completes immediately.
type Step struct {
	ID        int        `json:"id"`
	Action    string     `json:"action"`
	Category  Category   `json:"category"`
	Tool      tools.Name `json:"tool,omitempty"`
	DependsOn []int      `json:"depends_on,omitempty"`
	Status    Status     `json:"status"`
	Output    any        `json:"output,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// IsMarker reports whether the step has no tool.
func (s *Step) IsMarker() bool {
	return s.Tool == ""
}

func (s *Step) clone() *Step {
	c := *s
	c.DependsOn = slices.Clone(s.DependsOn)
	return &c
}

// Plan is a parameter record plus ordered steps.
type Plan struct {
	Phase  string  `json:"phase"`
	Params Params  `json:"params"`
	Steps  []*Step `json:"steps"`
}

// Step returns the step with id, or nil.
func (p *Plan) Step(id int) *Step {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Context is the state shared by the steps of one run. Params is replaced
// wholesale when recovery supplies corrected parameters.
type Context struct {
	Params      Params
	StepResults map[int]any
}

// StepFunc executes one step. It may read wc.Params and earlier step
// results; its return value is recorded under the step id.
type StepFunc func(ctx context.Context, wc *Context, step *Step) (any, error)

// Registry maps tool names to step functions.
type Registry map[tools.Name]StepFunc

// RecoveryFunc is consulted when a step fails. Returning non-nil params
// retries the step with them; returning nil (or an error) gives up and the
// step's original error propagates.
type RecoveryFunc func(ctx context.Context, step *Step, stepErr error, wc *Context) (*Params, error)

// Hooks observe a run. They never alter control flow.
type Hooks struct {
	OnStepStart       func(step *Step)
	OnStepSuccess     func(step *Step, result any)
	OnStepError       func(step *Step, err error)
	OnRecoveryAttempt func(step *Step, err error)
}
