package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
)

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	},
}

var (
	systemTemplates = mustParseAll(
		baseIdentityTemplate,
		answerFormatTemplate,
		capabilitiesTemplate,
		workflowTemplate,
		constraintsTemplate,
	)
	recoveryTmpl         = template.Must(template.New("recovery").Funcs(funcs).Parse(recoveryTemplate))
	workflowResultTmpl   = template.Must(template.New("workflow_result").Funcs(funcs).Parse(workflowResultTemplate))
	documentQATmpl       = template.Must(template.New("document_qa").Parse(documentQATemplate))
	documentQuestionTmpl = template.Must(template.New("document_question").Parse(documentQuestionTemplate))
)

func mustParseAll(sources ...string) []*template.Template {
	out := make([]*template.Template, len(sources))
	for i, src := range sources {
		out[i] = template.Must(template.New(fmt.Sprintf("system_%d", i)).Funcs(funcs).Parse(src))
	}
	return out
}

// SystemPromptBuilder builds the system prompt from config and the tool registry.
type SystemPromptBuilder struct {
	config   PromptConfig
	registry ToolLister
	now      func() time.Time
}

// NewSystemPromptBuilder creates a new SystemPromptBuilder. registry may be nil.
func NewSystemPromptBuilder(config PromptConfig, registry ToolLister) *SystemPromptBuilder {
	def := DefaultPromptConfig()
	if config.AgentName == "" {
		config.AgentName = def.AgentName
	}
	if config.Timezone == "" {
		config.Timezone = def.Timezone
	}
	if config.ResultKey == "" {
		config.ResultKey = def.ResultKey
	}
	return &SystemPromptBuilder{
		config:   config,
		registry: registry,
		now:      time.Now,
	}
}

// GetConfig returns the prompt config.
func (b *SystemPromptBuilder) GetConfig() PromptConfig {
	return b.config
}

// Build renders the system prompt.
func (b *SystemPromptBuilder) Build() (string, error) {
	data := b.prepareData()

	var result bytes.Buffer
	for _, tmpl := range systemTemplates {
		if err := tmpl.Execute(&result, data); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrTemplateRender, tmpl.Name(), err)
		}
	}
	return strings.TrimSpace(result.String()), nil
}

// BuildStatic is Build that ignores the error.
func (b *SystemPromptBuilder) BuildStatic() string {
	result, _ := b.Build()
	return result
}

func (b *SystemPromptBuilder) prepareData() PromptData {
	loc, err := time.LoadLocation(b.config.Timezone)
	if err != nil {
		loc = time.FixedZone(b.config.Timezone, 8*3600)
	}
	data := PromptData{
		AgentName:   b.config.AgentName,
		CurrentTime: b.now().In(loc).Format("2006-01-02 15:04:05 Monday"),
		Timezone:    b.config.Timezone,
		ResultKey:   b.config.ResultKey,
		Workflow:    b.config.Workflow,
		Constraints: b.config.Constraints,
		ExtraPrompt: b.config.ExtraPrompt,
	}
	if b.registry != nil {
		for _, t := range b.registry.List() {
			data.Tools = append(data.Tools, ToolInfo{
				Name:        t.Name().String(),
				Description: t.Description(),
			})
		}
	}
	return data
}

// Recovery renders the parameter-correction request for a failed step.
func Recovery(data RecoveryData) (string, error) {
	return render(recoveryTmpl, data)
}

// WorkflowResult renders the summary request sent after a workflow run.
func WorkflowResult(data WorkflowResultData) (string, error) {
	if data.ResultKey == "" {
		data.ResultKey = DefaultPromptConfig().ResultKey
	}
	return render(workflowResultTmpl, data)
}

// DocumentQA renders the system prompt for answering from document chunks.
func DocumentQA(data DocumentQAData) (string, error) {
	if data.AnswerKey == "" {
		data.AnswerKey = DefaultAnswerKey
	}
	if data.NotFound == "" {
		data.NotFound = DefaultNotFound
	}
	return render(documentQATmpl, data)
}

// DocumentQuestion renders the user turn carrying the question and chunks.
func DocumentQuestion(data DocumentQuestionData) (string, error) {
	return render(documentQuestionTmpl, data)
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrTemplateRender, tmpl.Name(), err)
	}
	return buf.String(), nil
}
