package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatkit/internal/provider"
	"chatkit/internal/tools/builtin"
)

type executorFunc func(ctx context.Context, name string, args map[string]any) (any, error)

func (f executorFunc) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	return f(ctx, name, args)
}

func TestDispatcher_Resolve(t *testing.T) {
	registry, err := builtin.NewRegistryWithBuiltins()
	require.NoError(t, err)

	p := &mockProvider{streams: [][]provider.ChatEvent{
		contentTurn(`{"result":"10 加 5 等于 15"}`),
	}}
	s := NewSession(p, testTools, DefaultConfig())
	d := NewDispatcher(s, registry)
	rec := &recorder{}

	history := question("10 加 5 等于几")
	calls := []provider.ToolCall{call("c1", "calculator", `{"num1":10,"num2":5,"operation":"add"}`)}

	res, conv, err := d.Resolve(context.Background(), history, calls, Options{Hooks: rec.hooks()})
	require.NoError(t, err)
	assert.Equal(t, "10 加 5 等于 15", res.Content)

	require.Len(t, conv, 5)
	assert.Len(t, history, 2)
	assert.Equal(t, provider.RoleAssistant, conv[2].Role)
	assert.Equal(t, "c1", conv[2].ToolCalls[0].ID)
	assert.Equal(t, provider.ToolResultMessage("c1", "calculator", "15"), conv[3])
	assert.Equal(t, provider.AssistantMessage("10 加 5 等于 15"), conv[4])

	require.Len(t, rec.tools, 2)
	assert.Equal(t, ToolEventStart, rec.tools[0].Type)
	assert.Equal(t, ToolEventSuccess, rec.tools[1].Type)
	assert.Equal(t, 15.0, rec.tools[1].Result)
	assert.Equal(t, []string{"即将执行 1 个工具", "所有工具调用完成，准备生成回答"}, rec.details())

	req := p.request(0)
	assert.Equal(t, provider.ToolChoiceAuto, req.ToolChoice)
	assert.NotEmpty(t, req.Tools)
}

func TestDispatcher_FailuresBecomeToolMessages(t *testing.T) {
	exec := executorFunc(func(_ context.Context, name string, _ map[string]any) (any, error) {
		if name == "broken" {
			return nil, errors.New("除数不能为零")
		}
		return "ok", nil
	})
	p := &mockProvider{streams: [][]provider.ChatEvent{contentTurn(`{"result":"done"}`)}}
	d := NewDispatcher(NewSession(p, testTools, DefaultConfig()), exec)
	rec := &recorder{}

	calls := []provider.ToolCall{
		call("c1", "broken", `{}`),
		call("c2", "calculator", `{"num1": 1,}`),
		call("c3", "fine", `not json at all`),
	}
	_, conv, err := d.Resolve(context.Background(), question("q"), calls, Options{Hooks: rec.hooks()})
	require.NoError(t, err)

	// system, user, assistant calls, 3 results, answer
	require.Len(t, conv, 7)
	assert.Equal(t, "除数不能为零", conv[3].Content)
	assert.Equal(t, `"ok"`, conv[4].Content)
	assert.Equal(t, `{"num1":1}`, conv[2].ToolCalls[1].Arguments, "repaired arguments are sent back canonical")
	assert.Equal(t, "c3", conv[5].ToolCallID)
	assert.Contains(t, conv[5].Content, "invalid")

	// 无法解析的参数以 {} 回传, 错误信息仍然送达模型
	assert.Equal(t, "{}", conv[2].ToolCalls[2].Arguments)
	sent := p.request(0).Messages
	require.Len(t, sent, 6)
	assert.Len(t, sent[2].ToolCalls, 3)
	assert.Equal(t, "c3", sent[5].ToolCallID)
	assert.Contains(t, sent[5].Content, "invalid")

	var errs int
	for _, ev := range rec.tools {
		if ev.Type == ToolEventError {
			errs++
		}
	}
	assert.Equal(t, 2, errs)
	assert.Contains(t, rec.details(), "工具 broken 执行失败")
}

func TestDispatcher_MaxHops(t *testing.T) {
	exec := executorFunc(func(context.Context, string, map[string]any) (any, error) { return 1, nil })
	again := callTurn(call("cx", "calculator", `{}`))
	p := &mockProvider{streams: [][]provider.ChatEvent{again, again}}
	s := NewSession(p, testTools, DefaultConfig().WithMaxToolHops(2))
	d := NewDispatcher(s, exec)

	_, conv, err := d.Resolve(context.Background(), question("q"), []provider.ToolCall{call("c0", "calculator", `{}`)}, Options{})
	require.ErrorIs(t, err, ErrMaxToolHops)
	assert.Equal(t, 2, p.requestCount())
	// two rounds of call + result were appended
	assert.Len(t, conv, 2+4)
}

func TestDispatcher_AccumulatesAcrossHops(t *testing.T) {
	exec := executorFunc(func(_ context.Context, name string, _ map[string]any) (any, error) { return name, nil })
	p := &mockProvider{streams: [][]provider.ChatEvent{
		callTurn(call("c2", "second", `{}`)),
		contentTurn(`{"result":"both"}`),
	}}
	d := NewDispatcher(NewSession(p, testTools, DefaultConfig()), exec)

	res, _, err := d.Resolve(context.Background(), question("q"), []provider.ToolCall{call("c1", "first", `{}`)}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "both", res.Content)

	// the second request still carries the first round's result
	var ids []string
	for _, m := range p.request(1).Messages {
		if m.Role == provider.RoleTool {
			ids = append(ids, m.ToolCallID)
		}
	}
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestDispatcher_NoTools(t *testing.T) {
	d := NewDispatcher(NewSession(&mockProvider{}, nil, DefaultConfig()), nil)
	_, _, err := d.Resolve(context.Background(), question("q"), nil, Options{})
	require.ErrorIs(t, err, ErrNoTools)
}
