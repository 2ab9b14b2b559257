package runner

// PlanningStage is one of the three user-visible phases of a request.
type PlanningStage string

const (
	StageIntent PlanningStage = "intent"
	StageTool   PlanningStage = "tool"
	StageAnswer PlanningStage = "answer"
)

// PlanningStatus is the state of a planning stage.
type PlanningStatus string

const (
	StatusPending   PlanningStatus = "pending"
	StatusRunning   PlanningStatus = "running"
	StatusCompleted PlanningStatus = "completed"
	StatusError     PlanningStatus = "error"
)

// PlanningUpdate reports a stage transition.
type PlanningUpdate struct {
	Stage  PlanningStage  `json:"stage"`
	Status PlanningStatus `json:"status"`
	Detail string         `json:"detail,omitempty"`
}

// ToolEventType distinguishes the tool lifecycle notifications.
type ToolEventType string

const (
	ToolEventStart   ToolEventType = "start"
	ToolEventSuccess ToolEventType = "success"
	ToolEventError   ToolEventType = "error"
)

// ToolEvent reports one tool invocation (or one workflow step).
type ToolEvent struct {
	Type     ToolEventType  `json:"type"`
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args,omitempty"`
	Result   any            `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Hooks are observation points. None of them affects control flow; any of
// them may be nil.
type Hooks struct {
	// OnPartial receives live answer text as it is decoded.
	OnPartial func(text string)

	// OnToolEvent receives tool start/success/error notifications.
	OnToolEvent func(ev ToolEvent)

	// OnPlanning receives stage transitions.
	OnPlanning func(u PlanningUpdate)
}

func (h Hooks) partial(text string) {
	if h.OnPartial != nil && text != "" {
		h.OnPartial(text)
	}
}

func (h Hooks) tool(ev ToolEvent) {
	if h.OnToolEvent != nil {
		h.OnToolEvent(ev)
	}
}

func (h Hooks) planning(stage PlanningStage, status PlanningStatus, detail string) {
	if h.OnPlanning != nil {
		h.OnPlanning(PlanningUpdate{Stage: stage, Status: status, Detail: detail})
	}
}

// silent returns a copy without the partial callback.
func (h Hooks) silent() Hooks {
	h.OnPartial = nil
	return h
}
