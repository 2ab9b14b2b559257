// Package runner drives model exchanges: streamed cycles with live field
// extraction, tool-call dispatch, and plan-first workflow orchestration.
package runner

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"chatkit/internal/prompt"
	"chatkit/internal/provider"
	"chatkit/internal/tools"
	"chatkit/internal/workflow"
	"chatkit/pkg/logger"
)

// Reply is the outcome of one user request.
type Reply struct {
	// Content is the final answer text.
	Content string `json:"content"`

	// Debug is the model's reasoning summary for the final answer.
	Debug string `json:"debug,omitempty"`

	// Messages is the conversation after the request: the input history
	// (with the system prompt if one was added) followed by every message
	// produced while answering.
	Messages []provider.Message `json:"-"`

	// Plan is the executed workflow plan when the request took the
	// workflow path.
	Plan *workflow.Plan `json:"plan,omitempty"`

	// Usage is token usage summed over every exchange of the request.
	Usage *provider.Usage `json:"usage,omitempty"`
}

// Runner answers user requests. It is safe for concurrent use; each
// request works on its own copy of the history.
type Runner struct {
	session      *Session
	dispatcher   *Dispatcher
	steps        workflow.Registry
	config       Config
	systemPrompt *prompt.SystemPromptBuilder
	log          zerolog.Logger
}

// NewRunner creates a Runner. registry may be nil, in which case no tool
// definitions are sent and tool calls fail with ErrNoTools. steps backs the
// workflow executor; nil disables the workflow path.
func NewRunner(prov provider.Provider, registry *tools.Registry, steps workflow.Registry, config Config) (*Runner, error) {
	config = config.Normalize()

	var defs []provider.Tool
	var executor ToolExecutor
	if registry != nil {
		var err error
		defs, err = registry.ToProviderTools()
		if err != nil {
			return nil, fmt.Errorf("build tool definitions: %w", err)
		}
		executor = registry
	}
	if steps == nil {
		config.Workflow = false
	}

	session := NewSession(prov, defs, config)
	return &Runner{
		session:    session,
		dispatcher: NewDispatcher(session, executor),
		steps:      steps,
		config:     config,
		log:        logger.Component("runner"),
	}, nil
}

// SetSystemPrompt sets a builder rendered fresh for every request. It takes
// precedence over Config.SystemPrompt.
func (r *Runner) SetSystemPrompt(sp *prompt.SystemPromptBuilder) {
	r.systemPrompt = sp
}

// Session returns the underlying session driver.
func (r *Runner) Session() *Session {
	return r.session
}

// Config returns the runner's normalized config.
func (r *Runner) Config() Config {
	return r.config
}

// Run answers a request asynchronously. The channel carries partial, tool
// and planning events, then exactly one done or error event, and is closed
// afterwards. A consumer that stops reading must cancel ctx; pending events
// are then dropped and the channel is closed.
func (r *Runner) Run(ctx context.Context, history []provider.Message) <-chan Event {
	events := make(chan Event, 100)
	go func() {
		defer close(events)
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Interface("panic", rec).Msg("PANIC in runner goroutine")
				sendEvent(ctx, events, NewErrorEvent(fmt.Errorf("internal error: %v", rec)))
			}
		}()

		reply, err := r.Respond(ctx, history, ChannelHooks(ctx, events))
		if err != nil {
			sendEvent(ctx, events, NewErrorEvent(err))
			return
		}
		sendEvent(ctx, events, NewDoneEvent(reply))
	}()
	return events
}

// Respond answers the last user message of history.
//
// With the workflow enabled, a first pass without tools lets the model
// either answer directly or reply with a workflow plan; a plan is executed
// step by step and the model then summarizes the results. Without the
// workflow, the first pass offers the tools and any requested calls are
// dispatched until the model answers.
func (r *Runner) Respond(ctx context.Context, history []provider.Message, hooks Hooks) (*Reply, error) {
	conv, err := r.prepare(history)
	if err != nil {
		return nil, err
	}

	hooks.planning(StageIntent, StatusRunning, "AI 正在分析你的问题")
	hooks.planning(StageTool, StatusPending, "")
	hooks.planning(StageAnswer, StatusPending, "")

	var first Options
	if r.config.Workflow {
		first = Options{ToolChoice: provider.ToolChoiceNone, Hooks: hooks.silent()}
	} else {
		first = Options{IncludeTools: true, Hooks: hooks}
	}

	res, err := r.session.Exchange(ctx, conv, first)
	if err != nil {
		hooks.planning(StageIntent, StatusError, ErrorMessage(err))
		return nil, err
	}
	hooks.planning(StageIntent, StatusCompleted, "完成需求理解")
	usage := addUsage(nil, res.Usage)

	if r.config.Workflow && !res.HasToolCalls() {
		if plan, ok := workflow.ParsePlan(res.Raw); ok {
			return r.runWorkflow(ctx, conv, res, plan, usage, hooks)
		}
		// the intent pass was not streamed
		hooks.partial(res.Content)
	}

	if res.HasToolCalls() {
		hooks.planning(StageTool, StatusRunning, "检测到模型需要调用工具")
		final, out, err := r.dispatcher.Resolve(ctx, conv, res.ToolCalls, Options{Hooks: hooks})
		if err != nil {
			hooks.planning(StageTool, StatusError, ErrorMessage(err))
			return nil, err
		}
		hooks.planning(StageTool, StatusCompleted, "工具链执行完成")
		hooks.planning(StageAnswer, StatusRunning, "整合工具结果")
		hooks.planning(StageAnswer, StatusCompleted, "回答生成完成")
		return &Reply{
			Content:  final.Content,
			Debug:    final.Debug,
			Messages: out,
			Usage:    addUsage(usage, final.Usage),
		}, nil
	}

	hooks.planning(StageAnswer, StatusRunning, "直接生成回答")
	hooks.planning(StageAnswer, StatusCompleted, "回答生成完成")
	return &Reply{
		Content:  res.Content,
		Debug:    res.Debug,
		Messages: append(conv, res.Message),
		Usage:    usage,
	}, nil
}

func (r *Runner) prepare(history []provider.Message) ([]provider.Message, error) {
	if len(history) == 0 {
		return nil, ErrNoMessages
	}
	system := r.config.SystemPrompt
	if r.systemPrompt != nil {
		built, err := r.systemPrompt.Build()
		if err != nil {
			return nil, err
		}
		system = built
	}
	return slices.Clone(withSystemPrompt(history, system)), nil
}

// runWorkflow executes plan and asks the model to turn the step results
// into the final answer.
func (r *Runner) runWorkflow(ctx context.Context, conv []provider.Message, planned *Result, plan *workflow.Plan, usage *provider.Usage, hooks Hooks) (*Reply, error) {
	r.log.Info().
		Str("destination", plan.Params.Destination).
		Int("steps", len(plan.Steps)).
		Msg("Model returned a workflow plan")

	conv = append(conv, provider.AssistantMessage(planned.Raw))
	hooks.planning(StageTool, StatusRunning, fmt.Sprintf("开始执行工作流，共 %d 个步骤", len(plan.Steps)))

	recovery := &workflow.ModelRecovery{
		Ask:     r.session.Ask,
		History: conv,
		OnAttempt: func(step *workflow.Step) {
			hooks.planning(StageTool, StatusRunning, fmt.Sprintf("步骤 %d 执行失败，正在尝试修复参数...", step.ID))
		},
		OnCorrected: func(step *workflow.Step, _ workflow.Params) {
			hooks.planning(StageTool, StatusRunning, fmt.Sprintf("参数已修正，正在重试步骤 %d...", step.ID))
		},
	}

	executor := workflow.NewExecutor(r.steps,
		workflow.WithRecovery(recovery.Recover),
		workflow.WithMaxRecoveries(r.config.MaxRecoveries),
		workflow.WithHooks(stepHooks(hooks)),
	)

	out, wc, err := executor.Run(ctx, plan)
	if err != nil {
		hooks.planning(StageTool, StatusError, "工作流执行失败: "+ErrorMessage(err))
		return nil, err
	}
	hooks.planning(StageTool, StatusCompleted, "工作流执行完成")

	summary, err := prompt.WorkflowResult(prompt.WorkflowResultData{
		Params:    wc.Params,
		Results:   out.Results(),
		ResultKey: r.config.ResultKey,
	})
	if err != nil {
		return nil, err
	}
	conv = append(conv, provider.UserMessage(summary))

	hooks.planning(StageAnswer, StatusRunning, "基于工作流结果生成最终答案")
	final, err := r.session.Exchange(ctx, conv, Options{ToolChoice: provider.ToolChoiceNone, Hooks: hooks})
	if err != nil {
		hooks.planning(StageAnswer, StatusError, ErrorMessage(err))
		return nil, err
	}
	hooks.planning(StageAnswer, StatusCompleted, "最终答案生成完成")

	return &Reply{
		Content:  final.Content,
		Debug:    final.Debug,
		Messages: append(conv, final.Message),
		Plan:     out,
		Usage:    addUsage(usage, final.Usage),
	}, nil
}

// stepHooks reports workflow steps as tool events.
func stepHooks(hooks Hooks) workflow.Hooks {
	name := func(s *workflow.Step) string {
		if s.IsMarker() {
			return "unknown"
		}
		return s.Tool.String()
	}
	args := func(s *workflow.Step) map[string]any {
		return map[string]any{"action": s.Action, "category": string(s.Category)}
	}
	return workflow.Hooks{
		OnStepStart: func(s *workflow.Step) {
			hooks.tool(ToolEvent{Type: ToolEventStart, ToolName: name(s), Args: args(s)})
		},
		OnStepSuccess: func(s *workflow.Step, result any) {
			hooks.tool(ToolEvent{Type: ToolEventSuccess, ToolName: name(s), Args: args(s), Result: result})
		},
		OnStepError: func(s *workflow.Step, err error) {
			hooks.tool(ToolEvent{Type: ToolEventError, ToolName: name(s), Args: args(s), Error: err.Error()})
		},
	}
}

func addUsage(total, u *provider.Usage) *provider.Usage {
	if u == nil {
		return total
	}
	if total == nil {
		total = &provider.Usage{}
	}
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
	return total
}
