package workflow

import (
	"errors"
	"fmt"
)

// Workflow errors.
var (
	// ErrUnsatisfiableDependencies means pending steps remain but none has
	// all of its dependencies done (a cycle or a dangling id).
	ErrUnsatisfiableDependencies = errors.New("存在无法执行的 pending 步骤（依赖未满足）")

	// ErrDuplicateStep means two steps share an id.
	ErrDuplicateStep = errors.New("duplicate step id")

	// ErrStepToolMissing means a step names a tool with no step function.
	ErrStepToolMissing = errors.New("未找到工具实现")

	// ErrUnknownStepTool means a step names a tool outside the known set.
	ErrUnknownStepTool = errors.New("未知工具")

	// ErrNotPlan means a text is not a workflow plan.
	ErrNotPlan = errors.New("not a workflow plan")

	// ErrInvalidCorrection means the model's corrected parameters failed
	// validation.
	ErrInvalidCorrection = errors.New("invalid corrected params")
)

// StepError is the error a run aborts with. Its message is the failing
// step's own error text; Summary adds which step failed.
type StepError struct {
	StepID int
	Action string
	Err    error
}

func (e *StepError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the step's original error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Summary names the failing step along with its error.
func (e *StepError) Summary() string {
	return fmt.Sprintf("步骤 %d（%s）执行失败: %v", e.StepID, e.Action, e.Err)
}
