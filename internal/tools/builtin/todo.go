package builtin

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"chatkit/internal/tools"
)

// TodoArgs are the todo planner's arguments.
type TodoArgs struct {
	StepsText string `json:"steps_text" jsonschema_description:"已经拆解好的子任务列表，用换行或逗号分隔，例如：'打包衣物\n整理重要文件\n联系搬家公司确认时间'"`
}

// TodoStep is one planned task.
type TodoStep struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Status string `json:"status"`
}

// TodoPlan is the planner's output.
type TodoPlan struct {
	Steps []TodoStep `json:"steps"`
}

var (
	todoSeparators = regexp.MustCompile(`[\n\r]+|[,，、；;]+`)
	todoPrefix     = regexp.MustCompile(`^\s*[\d\-•·①②③④⑤⑥⑦⑧⑨⑩.]+`)

	errStepsText = errors.New("steps_text must be a non-empty string")
	errNoSteps   = errors.New("无法从 steps_text 中提取可执行任务")
)

// PlanTodos splits free text into numbered pending steps, dropping list
// markers such as "1." or "①".
func PlanTodos(a TodoArgs) (TodoPlan, error) {
	if strings.TrimSpace(a.StepsText) == "" {
		return TodoPlan{}, errStepsText
	}

	var plan TodoPlan
	for _, item := range todoSeparators.Split(a.StepsText, -1) {
		title := strings.TrimSpace(todoPrefix.ReplaceAllString(item, ""))
		if title == "" {
			continue
		}
		plan.Steps = append(plan.Steps, TodoStep{ID: len(plan.Steps) + 1, Title: title, Status: "pending"})
	}
	if len(plan.Steps) == 0 {
		return TodoPlan{}, errNoSteps
	}
	return plan, nil
}

// NewTodoPlanner returns the todo planner tool.
func NewTodoPlanner() tools.Tool {
	return tools.MustTyped(tools.NameTodoPlanner,
		"将已经规划好的多条子任务（文本列表）转换为标准的待办步骤列表。先完成任务拆解，再把每条子任务用换行或逗号分隔后作为 steps_text 传入。",
		func(_ context.Context, a TodoArgs) (any, error) {
			return PlanTodos(a)
		})
}
