package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"chatkit/internal/tools"
	"chatkit/pkg/logger"
)

// DefaultMaxRecoveries is how many recovery-driven retries one step gets.
const DefaultMaxRecoveries = 1

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRecovery sets the recovery strategy.
func WithRecovery(fn RecoveryFunc) ExecutorOption {
	return func(e *Executor) { e.recover = fn }
}

// WithMaxRecoveries bounds retries per step. Negative values are treated as 0.
func WithMaxRecoveries(n int) ExecutorOption {
	return func(e *Executor) {
		if n < 0 {
			n = 0
		}
		e.maxRecoveries = n
	}
}

// WithHooks sets observation hooks.
func WithHooks(h Hooks) ExecutorOption {
	return func(e *Executor) { e.hooks = h }
}

// Executor runs plans one step at a time.
type Executor struct {
	registry      Registry
	recover       RecoveryFunc
	maxRecoveries int
	hooks         Hooks
	log           zerolog.Logger
}

// NewExecutor creates an Executor over registry.
func NewExecutor(registry Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:      registry,
		maxRecoveries: DefaultMaxRecoveries,
		log:           logger.Component("workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes plan and returns the executed copy together with the final
// context. The input plan is not modified.
//
// At each iteration the first pending step whose dependencies are all done
// runs. A failing step is handed to the recovery strategy; corrected
// parameters replace the context's and the step is retried. Otherwise the
// run aborts with a *StepError wrapping the step's original error. Steps
// already done are left as they are.
func (e *Executor) Run(ctx context.Context, plan *Plan) (*Plan, *Context, error) {
	if err := Validate(plan, e.registry); err != nil {
		return nil, nil, err
	}

	out := &Plan{Phase: plan.Phase, Params: plan.Params, Steps: make([]*Step, len(plan.Steps))}
	for i, s := range plan.Steps {
		out.Steps[i] = s.clone()
	}
	wc := &Context{Params: plan.Params, StepResults: make(map[int]any)}
	recoveries := make(map[int]int)

	for {
		step, remaining := e.next(out)
		if !remaining {
			return out, wc, nil
		}
		if step == nil {
			return out, wc, ErrUnsatisfiableDependencies
		}

		step.Status = StatusRunning
		e.log.Debug().Int("step", step.ID).Str("action", step.Action).Str("tool", step.Tool.String()).Msg("Step running")
		if e.hooks.OnStepStart != nil {
			e.hooks.OnStepStart(step)
		}

		if step.IsMarker() {
			step.Status = StatusDone
			if e.hooks.OnStepSuccess != nil {
				e.hooks.OnStepSuccess(step, nil)
			}
			continue
		}

		result, err := e.registry[step.Tool](ctx, wc, step)
		if err == nil {
			step.Status = StatusDone
			step.Output = result
			wc.StepResults[step.ID] = result
			e.log.Debug().Int("step", step.ID).Msg("Step done")
			if e.hooks.OnStepSuccess != nil {
				e.hooks.OnStepSuccess(step, result)
			}
			continue
		}

		step.Status = StatusError
		step.Error = err.Error()
		e.log.Warn().Err(err).Int("step", step.ID).Str("action", step.Action).Msg("Step failed")
		if e.hooks.OnStepError != nil {
			e.hooks.OnStepError(step, err)
		}

		if e.tryRecover(ctx, step, err, wc, recoveries) {
			continue
		}
		return out, wc, &StepError{StepID: step.ID, Action: step.Action, Err: err}
	}
}

// next returns the first runnable pending step. remaining is false when no
// pending steps are left.
func (e *Executor) next(p *Plan) (step *Step, remaining bool) {
	status := make(map[int]Status, len(p.Steps))
	for _, s := range p.Steps {
		status[s.ID] = s.Status
	}
	for _, s := range p.Steps {
		if s.Status != StatusPending {
			continue
		}
		remaining = true
		ready := true
		for _, dep := range s.DependsOn {
			if status[dep] != StatusDone {
				ready = false
				break
			}
		}
		if ready {
			return s, true
		}
	}
	return nil, remaining
}

// tryRecover consults the recovery strategy and, on success, resets step
// for a retry with the corrected parameters.
func (e *Executor) tryRecover(ctx context.Context, step *Step, stepErr error, wc *Context, recoveries map[int]int) bool {
	if e.recover == nil || recoveries[step.ID] >= e.maxRecoveries {
		return false
	}
	recoveries[step.ID]++

	if e.hooks.OnRecoveryAttempt != nil {
		e.hooks.OnRecoveryAttempt(step, stepErr)
	}
	params, err := e.recover(ctx, step, stepErr, wc)
	if err != nil {
		e.log.Warn().Err(err).Int("step", step.ID).Msg("Recovery failed")
		return false
	}
	if params == nil {
		e.log.Info().Int("step", step.ID).Msg("Recovery declined")
		return false
	}

	e.log.Info().Int("step", step.ID).Interface("params", params).Msg("Retrying step with corrected params")
	wc.Params = *params
	step.Status = StatusPending
	step.Error = ""
	return true
}

// Validate checks a plan before it runs: a non-nil plan with unique step
// ids, where every tool step names a known tool that registry implements.
// A bad tool is reported as a *StepError so no step runs before it is found.
func Validate(plan *Plan, registry Registry) error {
	if plan == nil {
		return ErrNotPlan
	}
	seen := make(map[int]bool, len(plan.Steps))
	for _, s := range plan.Steps {
		if s == nil {
			return fmt.Errorf("%w: nil step", ErrNotPlan)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateStep, s.ID)
		}
		seen[s.ID] = true
	}
	for _, s := range plan.Steps {
		if s.IsMarker() {
			continue
		}
		var err error
		if _, ok := tools.ParseName(s.Tool.String()); !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownStepTool, s.Tool)
		} else if registry[s.Tool] == nil {
			err = fmt.Errorf("%w: %s", ErrStepToolMissing, s.Tool)
		}
		if err != nil {
			return &StepError{StepID: s.ID, Action: s.Action, Err: err}
		}
	}
	return nil
}
