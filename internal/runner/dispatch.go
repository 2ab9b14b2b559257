package runner

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"chatkit/internal/provider"
	"chatkit/internal/tools"
	"chatkit/pkg/logger"
)

// ToolExecutor runs a tool by the name the model used.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// Dispatcher executes requested tool calls and feeds their results back to
// the model until it answers without tools.
type Dispatcher struct {
	session *Session
	tools   ToolExecutor
	maxHops int
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher over session and the tool executor.
func NewDispatcher(session *Session, executor ToolExecutor) *Dispatcher {
	return &Dispatcher{
		session: session,
		tools:   executor,
		maxHops: session.Config().MaxToolHops,
		log:     logger.Component("dispatch"),
	}
}

// Resolve runs calls, appends the assistant call message and one tool
// message per call to history, and asks the model again with tools
// enabled. It repeats while the model keeps requesting tools, at most
// MaxToolHops rounds.
//
// The returned conversation is history plus every message produced,
// ending with the final assistant answer on success.
func (d *Dispatcher) Resolve(ctx context.Context, history []provider.Message, calls []provider.ToolCall, opts Options) (*Result, []provider.Message, error) {
	if d.tools == nil {
		return nil, history, ErrNoTools
	}

	conv := slices.Clone(history)
	opts.IncludeTools = true
	opts.ToolChoice = ""

	for hop := 1; ; hop++ {
		if hop > d.maxHops {
			d.log.Warn().Int("max_hops", d.maxHops).Msg("Model still requesting tools, giving up")
			return nil, conv, fmt.Errorf("%w (%d)", ErrMaxToolHops, d.maxHops)
		}

		conv = append(conv, d.runCalls(ctx, calls, opts.Hooks)...)

		res, err := d.session.Exchange(ctx, conv, opts)
		if err != nil {
			return nil, conv, err
		}
		if !res.HasToolCalls() {
			conv = append(conv, res.Message)
			return res, conv, nil
		}
		d.log.Info().Int("hop", hop).Int("tool_calls", len(res.ToolCalls)).Msg("Model requested more tools")
		calls = res.ToolCalls
	}
}

// runCalls executes calls strictly in order. A failing call never stops
// its siblings; its error text becomes the tool message content.
func (d *Dispatcher) runCalls(ctx context.Context, calls []provider.ToolCall, hooks Hooks) []provider.Message {
	hooks.planning(StageTool, StatusRunning, fmt.Sprintf("即将执行 %d 个工具", len(calls)))

	issued := make([]provider.ToolCall, len(calls))
	results := make([]provider.Message, 0, len(calls))
	for i, call := range calls {
		content, args := d.runCall(ctx, call, hooks)
		if args != nil {
			// Send back canonical JSON so repaired arguments stay valid.
			call.Arguments = tools.FormatResult(args)
		} else {
			// 参数无法解析时回传 {}, 否则整组调用会在下一轮请求前被清理掉,
			// 模型看不到错误
			call.Arguments = "{}"
		}
		issued[i] = call
		results = append(results, provider.ToolResultMessage(call.ID, call.Name, content))
	}

	hooks.planning(StageTool, StatusCompleted, "所有工具调用完成，准备生成回答")

	out := make([]provider.Message, 0, len(results)+1)
	out = append(out, provider.Message{Role: provider.RoleAssistant, ToolCalls: issued})
	return append(out, results...)
}

func (d *Dispatcher) runCall(ctx context.Context, call provider.ToolCall, hooks Hooks) (string, map[string]any) {
	args, err := tools.ParseArguments(call.Arguments)
	if err != nil {
		d.fail(call, nil, err, hooks)
		return err.Error(), nil
	}

	d.log.Info().Str("id", call.ID).Str("tool", call.Name).Interface("args", args).Msg("Executing tool")
	hooks.tool(ToolEvent{Type: ToolEventStart, ToolName: call.Name, Args: args})

	result, err := d.tools.Execute(ctx, call.Name, args)
	if err != nil {
		d.fail(call, args, err, hooks)
		return err.Error(), args
	}

	hooks.tool(ToolEvent{Type: ToolEventSuccess, ToolName: call.Name, Args: args, Result: result})
	return tools.FormatResult(result), args
}

func (d *Dispatcher) fail(call provider.ToolCall, args map[string]any, err error, hooks Hooks) {
	d.log.Warn().Err(err).Str("id", call.ID).Str("tool", call.Name).Msg("Tool call failed")
	hooks.tool(ToolEvent{Type: ToolEventError, ToolName: call.Name, Args: args, Error: err.Error()})
	hooks.planning(StageTool, StatusError, fmt.Sprintf("工具 %s 执行失败", call.Name))
}
