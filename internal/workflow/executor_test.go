package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatkit/internal/tools"
)

// recordingRegistry returns a registry whose tools record the step id in
// order and return "<action>-ok".
func recordingRegistry(order *[]int) Registry {
	fn := func(_ context.Context, _ *Context, step *Step) (any, error) {
		*order = append(*order, step.ID)
		return step.Action + "-ok", nil
	}
	return Registry{
		tools.NameWeather:     fn,
		tools.NameTrafficTime: fn,
		tools.NamePackingList: fn,
	}
}

func TestExecutor_DependencyOrder(t *testing.T) {
	var order []int
	plan := &Plan{
		Phase: PhasePlanning,
		Steps: []*Step{
			{ID: 2, Action: "B", Tool: tools.NameTrafficTime, DependsOn: []int{1}, Status: StatusPending},
			{ID: 3, Action: "C", Tool: tools.NamePackingList, DependsOn: []int{2}, Status: StatusPending},
			{ID: 1, Action: "A", Tool: tools.NameWeather, Status: StatusPending},
		},
	}

	out, wc, err := NewExecutor(recordingRegistry(&order)).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 3, out.Done())
	assert.Equal(t, "A-ok", wc.StepResults[1])
	assert.Equal(t, "C-ok", out.Step(3).Output)

	// input plan untouched
	for _, s := range plan.Steps {
		assert.Equal(t, StatusPending, s.Status)
	}
}

func TestExecutor_MarkerStep(t *testing.T) {
	var order []int
	var started []int
	plan := &Plan{Steps: []*Step{
		{ID: 1, Action: "weather", Tool: tools.NameWeather, Status: StatusPending},
		{ID: 2, Action: "summary", Category: CategoryFinal, DependsOn: []int{1}, Status: StatusPending},
	}}

	out, _, err := NewExecutor(recordingRegistry(&order), WithHooks(Hooks{
		OnStepStart: func(s *Step) { started = append(started, s.ID) },
	})).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, order)
	assert.Equal(t, []int{1, 2}, started)
	assert.Equal(t, 2, out.Done())
}

func TestExecutor_DoneStepsSkipped(t *testing.T) {
	var order []int
	plan := &Plan{Steps: []*Step{
		{ID: 1, Tool: tools.NameWeather, Status: StatusDone},
		{ID: 2, Tool: tools.NameTrafficTime, DependsOn: []int{1}, Status: StatusPending},
	}}

	_, _, err := NewExecutor(recordingRegistry(&order)).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, order)
}

func TestExecutor_UnsatisfiableDependencies(t *testing.T) {
	var order []int
	plan := &Plan{Steps: []*Step{
		{ID: 1, Tool: tools.NameWeather, Status: StatusPending},
		{ID: 2, Tool: tools.NameTrafficTime, DependsOn: []int{99}, Status: StatusPending},
	}}

	out, _, err := NewExecutor(recordingRegistry(&order)).Run(context.Background(), plan)
	require.ErrorIs(t, err, ErrUnsatisfiableDependencies)
	assert.Equal(t, []int{1}, order)
	assert.Equal(t, StatusPending, out.Step(2).Status)
}

func TestExecutor_Cycle(t *testing.T) {
	var order []int
	plan := &Plan{Steps: []*Step{
		{ID: 1, Tool: tools.NameWeather, DependsOn: []int{2}, Status: StatusPending},
		{ID: 2, Tool: tools.NameTrafficTime, DependsOn: []int{1}, Status: StatusPending},
	}}

	_, _, err := NewExecutor(recordingRegistry(&order)).Run(context.Background(), plan)
	require.ErrorIs(t, err, ErrUnsatisfiableDependencies)
	assert.Empty(t, order)
}

func TestExecutor_DuplicateStepIDs(t *testing.T) {
	plan := &Plan{Steps: []*Step{
		{ID: 1, Tool: tools.NameWeather, Status: StatusPending},
		{ID: 1, Tool: tools.NameTrafficTime, Status: StatusPending},
	}}

	_, _, err := NewExecutor(Registry{}).Run(context.Background(), plan)
	require.ErrorIs(t, err, ErrDuplicateStep)
}

func TestExecutor_NilPlan(t *testing.T) {
	_, _, err := NewExecutor(Registry{}).Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrNotPlan)
}

func TestExecutor_MissingTool(t *testing.T) {
	var order []int
	plan := &Plan{Steps: []*Step{
		{ID: 1, Action: "weather", Tool: tools.NameWeather, Status: StatusPending},
		{ID: 2, Action: "todo", Tool: tools.NameTodoPlanner, DependsOn: []int{1}, Status: StatusPending},
	}}

	out, _, err := NewExecutor(recordingRegistry(&order)).Run(context.Background(), plan)
	require.ErrorIs(t, err, ErrStepToolMissing)
	assert.Nil(t, out)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 2, stepErr.StepID)
	assert.Contains(t, err.Error(), "todoPlannerTool")
	// 校验在任何步骤执行前完成
	assert.Empty(t, order)
	assert.Equal(t, StatusPending, plan.Step(1).Status)
}

func TestExecutor_UnknownTool(t *testing.T) {
	var order []int
	plan := &Plan{Steps: []*Step{
		{ID: 1, Action: "weather", Tool: tools.NameWeather, Status: StatusPending},
		{ID: 2, Action: "订酒店", Tool: tools.Name("hotelTool"), DependsOn: []int{1}, Status: StatusPending},
	}}

	_, _, err := NewExecutor(recordingRegistry(&order)).Run(context.Background(), plan)
	require.ErrorIs(t, err, ErrUnknownStepTool)
	assert.NotErrorIs(t, err, ErrStepToolMissing)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "步骤 2（订酒店）执行失败: 未知工具: hotelTool", stepErr.Summary())
	assert.Empty(t, order)
}

func TestValidate_MarkerStepsNeedNoTool(t *testing.T) {
	plan := &Plan{Steps: []*Step{
		{ID: 1, Tool: tools.NameWeather},
		{ID: 2, Category: CategoryFinal},
	}}
	var order []int
	require.NoError(t, Validate(plan, recordingRegistry(&order)))
	require.ErrorIs(t, Validate(plan, nil), ErrStepToolMissing)
}

func TestExecutor_RecoveryRetriesOnce(t *testing.T) {
	calls := 0
	var seen []string
	registry := Registry{
		tools.NameWeather: func(_ context.Context, wc *Context, _ *Step) (any, error) {
			calls++
			seen = append(seen, wc.Params.Destination)
			if wc.Params.Destination == "" {
				return nil, errors.New("缺少 destination")
			}
			return "sunny", nil
		},
	}
	recoveries := 0
	recoverFn := func(_ context.Context, step *Step, stepErr error, wc *Context) (*Params, error) {
		recoveries++
		assert.Equal(t, 1, step.ID)
		assert.EqualError(t, stepErr, "缺少 destination")
		p := wc.Params
		p.Destination = "上海"
		return &p, nil
	}
	var attempted []int
	plan := &Plan{Params: Params{Date: "明天"}, Steps: []*Step{
		{ID: 1, Tool: tools.NameWeather, Status: StatusPending},
	}}

	out, wc, err := NewExecutor(registry, WithRecovery(recoverFn), WithHooks(Hooks{
		OnRecoveryAttempt: func(s *Step, _ error) { attempted = append(attempted, s.ID) },
	})).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, recoveries)
	assert.Equal(t, []string{"", "上海"}, seen)
	assert.Equal(t, []int{1}, attempted)
	assert.Equal(t, "上海", wc.Params.Destination)
	assert.Equal(t, "明天", wc.Params.Date)
	assert.Equal(t, len(out.Steps), out.Done())
	assert.Empty(t, out.Step(1).Error)
}

func TestExecutor_RecoveryBounded(t *testing.T) {
	calls := 0
	registry := Registry{
		tools.NameWeather: func(context.Context, *Context, *Step) (any, error) {
			calls++
			return nil, errors.New("still broken")
		},
	}
	recoveries := 0
	recoverFn := func(_ context.Context, _ *Step, _ error, wc *Context) (*Params, error) {
		recoveries++
		p := wc.Params
		return &p, nil
	}
	plan := &Plan{Steps: []*Step{{ID: 7, Action: "查询天气", Tool: tools.NameWeather, Status: StatusPending}}}

	_, _, err := NewExecutor(registry, WithRecovery(recoverFn)).Run(context.Background(), plan)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, recoveries)
	assert.EqualError(t, err, "still broken")
}

func TestExecutor_RecoveryDeclinedPropagatesOriginal(t *testing.T) {
	stepFailure := errors.New("packingListTool 需要 transportation_preference 参数")
	registry := Registry{
		tools.NamePackingList: func(context.Context, *Context, *Step) (any, error) {
			return nil, stepFailure
		},
	}
	recoverFn := func(context.Context, *Step, error, *Context) (*Params, error) {
		return nil, nil
	}
	plan := &Plan{Steps: []*Step{{ID: 4, Action: "打包清单", Tool: tools.NamePackingList, Status: StatusPending}}}

	out, _, err := NewExecutor(registry, WithRecovery(recoverFn)).Run(context.Background(), plan)
	require.Error(t, err)
	assert.Equal(t, stepFailure.Error(), err.Error())
	assert.ErrorIs(t, err, stepFailure)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 4, stepErr.StepID)
	assert.Equal(t, "步骤 4（打包清单）执行失败: "+stepFailure.Error(), stepErr.Summary())
	assert.Equal(t, StatusError, out.Step(4).Status)
	assert.Equal(t, stepFailure.Error(), out.Step(4).Error)
}

func TestExecutor_RecoveryErrorPropagatesOriginal(t *testing.T) {
	stepFailure := errors.New("boom")
	registry := Registry{
		tools.NameWeather: func(context.Context, *Context, *Step) (any, error) { return nil, stepFailure },
	}
	recoverFn := func(context.Context, *Step, error, *Context) (*Params, error) {
		return nil, errors.New("model unavailable")
	}
	plan := &Plan{Steps: []*Step{{ID: 1, Tool: tools.NameWeather, Status: StatusPending}}}

	_, _, err := NewExecutor(registry, WithRecovery(recoverFn)).Run(context.Background(), plan)
	require.ErrorIs(t, err, stepFailure)
	assert.EqualError(t, err, "boom")
}

func TestExecutor_ZeroRecoveries(t *testing.T) {
	recoveries := 0
	registry := Registry{
		tools.NameWeather: func(context.Context, *Context, *Step) (any, error) { return nil, errors.New("x") },
	}
	recoverFn := func(_ context.Context, _ *Step, _ error, wc *Context) (*Params, error) {
		recoveries++
		return &wc.Params, nil
	}
	plan := &Plan{Steps: []*Step{{ID: 1, Tool: tools.NameWeather, Status: StatusPending}}}

	_, _, err := NewExecutor(registry, WithRecovery(recoverFn), WithMaxRecoveries(-3)).Run(context.Background(), plan)
	require.Error(t, err)
	assert.Zero(t, recoveries)
}

func TestExecutor_HooksOrder(t *testing.T) {
	var events []string
	registry := Registry{
		tools.NameWeather: func(context.Context, *Context, *Step) (any, error) { return 1, nil },
		tools.NameTrafficTime: func(context.Context, *Context, *Step) (any, error) {
			return nil, errors.New("bad")
		},
	}
	plan := &Plan{Steps: []*Step{
		{ID: 1, Tool: tools.NameWeather, Status: StatusPending},
		{ID: 2, Tool: tools.NameTrafficTime, DependsOn: []int{1}, Status: StatusPending},
	}}

	_, _, err := NewExecutor(registry, WithHooks(Hooks{
		OnStepStart:   func(s *Step) { events = append(events, "start", s.Tool.String()) },
		OnStepSuccess: func(s *Step, _ any) { events = append(events, "ok", s.Tool.String()) },
		OnStepError:   func(s *Step, _ error) { events = append(events, "err", s.Tool.String()) },
	})).Run(context.Background(), plan)
	require.Error(t, err)
	assert.Equal(t, []string{
		"start", "weatherTool", "ok", "weatherTool",
		"start", "trafficTimeTool", "err", "trafficTimeTool",
	}, events)
}
