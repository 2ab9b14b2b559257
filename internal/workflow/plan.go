package workflow

import (
	"encoding/json"

	"chatkit/internal/extract"
)

// ParsePlan recognizes a model answer that is a workflow plan: a JSON
// object with phase "planning", a params object and a steps array.
// Steps without a status start as pending.
func ParsePlan(content string) (*Plan, bool) {
	var doc struct {
		Phase  string          `json:"phase"`
		Params *Params         `json:"params"`
		Steps  json.RawMessage `json:"steps"`
	}
	if err := extract.Unmarshal(content, &doc); err != nil {
		return nil, false
	}
	if doc.Phase != PhasePlanning || doc.Params == nil || len(doc.Steps) == 0 || doc.Steps[0] != '[' {
		return nil, false
	}

	var steps []*Step
	if err := json.Unmarshal(doc.Steps, &steps); err != nil {
		return nil, false
	}
	out := make([]*Step, 0, len(steps))
	for _, s := range steps {
		if s == nil {
			continue
		}
		if s.Status == "" {
			s.Status = StatusPending
		}
		out = append(out, s)
	}
	return &Plan{Phase: doc.Phase, Params: *doc.Params, Steps: out}, true
}

// StepResult is the per-step view sent back to the model after a run.
type StepResult struct {
	ID     int    `json:"id"`
	Action string `json:"action"`
	Status Status `json:"status"`
	Output any    `json:"output"`
}

// Results lists every step's outcome in plan order.
func (p *Plan) Results() []StepResult {
	out := make([]StepResult, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = StepResult{ID: s.ID, Action: s.Action, Status: s.Status, Output: s.Output}
	}
	return out
}

// Done counts steps in StatusDone.
func (p *Plan) Done() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status == StatusDone {
			n++
		}
	}
	return n
}
