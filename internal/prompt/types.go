package prompt

import "chatkit/internal/tools"

// ToolLister is the part of the tool registry the builder reads.
type ToolLister interface {
	List() []tools.Tool
}

// PromptConfig holds configuration for the system prompt builder.
type PromptConfig struct {
	AgentName   string   `json:"agent_name"`
	Timezone    string   `json:"timezone"`
	ResultKey   string   `json:"result_key"`
	ExtraPrompt string   `json:"extra_prompt"`
	Constraints []string `json:"constraints"`
	// Workflow asks the model to answer travel requests with a plan.
	Workflow bool `json:"workflow"`
}

// DefaultPromptConfig returns a PromptConfig with default values.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		AgentName: "小智",
		Timezone:  "Asia/Shanghai",
		ResultKey: "result",
		Workflow:  true,
	}
}

// PromptData holds all data for system prompt rendering.
type PromptData struct {
	AgentName   string
	CurrentTime string
	Timezone    string
	ResultKey   string
	Tools       []ToolInfo
	Workflow    bool
	Constraints []string
	ExtraPrompt string
}

// ToolInfo holds information about a tool for prompt rendering.
type ToolInfo struct {
	Name        string
	Description string
}

// RecoveryData feeds the parameter-correction request. Step and Params
// are rendered as indented JSON.
type RecoveryData struct {
	Step   any
	Params any
	Error  string
}

// WorkflowResultData feeds the summary request sent after a workflow run.
type WorkflowResultData struct {
	Params    any
	Results   any
	ResultKey string
}

// Document QA defaults.
const (
	DefaultAnswerKey = "answer"
	DefaultNotFound  = "文档中没有找到相关信息"
)

// DocumentQAData feeds the document QA system prompt.
type DocumentQAData struct {
	AnswerKey string
	NotFound  string
}

// DocumentChunk is one numbered chunk shown to the model.
type DocumentChunk struct {
	Number int
	Text   string
}

// DocumentQuestionData feeds the document QA user turn.
type DocumentQuestionData struct {
	Question string
	Chunks   []DocumentChunk
}
