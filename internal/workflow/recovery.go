package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"chatkit/internal/extract"
	"chatkit/internal/prompt"
	"chatkit/internal/provider"
	"chatkit/internal/tools"
	"chatkit/pkg/logger"
)

// AskFunc sends messages to the model without tools and returns its raw
// text answer.
type AskFunc func(ctx context.Context, messages []provider.Message) (string, error)

const correctionSchemaJSON = `{
  "type": "object",
  "required": ["corrected_params"],
  "properties": {
    "corrected_params": {
      "type": ["object", "null"],
      "required": ["destination", "date", "stay_days", "transportation_preference"],
      "properties": {
        "destination": {"type": "string", "minLength": 1},
        "date": {"type": "string"},
        "stay_days": {"type": "number"},
        "transportation_preference": {"type": "string"}
      }
    }
  }
}`

var correctionSchema = mustCompile("corrected_params.json", correctionSchemaJSON)

func mustCompile(id, doc string) *jsonschema.Schema {
	s, err := tools.CompileSchemaJSON(id, []byte(doc))
	if err != nil {
		panic(err)
	}
	return s
}

// ModelRecovery is a RecoveryFunc backed by the model: it describes the
// failing step and asks for corrected parameters.
type ModelRecovery struct {
	// Ask is the model capability. Required.
	Ask AskFunc

	// History is the conversation the plan came from; the correction
	// request is appended to it so the model can see the user's request.
	History []provider.Message

	// OnAttempt and OnCorrected are optional observers.
	OnAttempt   func(step *Step)
	OnCorrected func(step *Step, params Params)
}

// Recover implements RecoveryFunc.
func (m *ModelRecovery) Recover(ctx context.Context, step *Step, stepErr error, wc *Context) (*Params, error) {
	if m.OnAttempt != nil {
		m.OnAttempt(step)
	}

	content, err := prompt.Recovery(prompt.RecoveryData{
		Step: map[string]any{
			"id":       step.ID,
			"action":   step.Action,
			"category": step.Category,
			"tool":     step.Tool,
		},
		Params: wc.Params,
		Error:  stepErr.Error(),
	})
	if err != nil {
		return nil, err
	}

	messages := append(slices.Clone(m.History), provider.UserMessage(content))
	answer, err := m.Ask(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("ask for corrected params: %w", err)
	}

	params, err := ParseCorrection(answer)
	if err != nil {
		return nil, err
	}
	if params != nil {
		logger.Info().Int("step", step.ID).Str("destination", params.Destination).Msg("Model corrected workflow params")
		if m.OnCorrected != nil {
			m.OnCorrected(step, *params)
		}
	}
	return params, nil
}

// ParseCorrection validates the model's {"corrected_params": ...} answer.
// A null correction returns nil params and no error.
func ParseCorrection(answer string) (*Params, error) {
	doc, err := extract.DecodeObject(answer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCorrection, err)
	}
	if err := correctionSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCorrection, err)
	}
	raw, ok := doc["corrected_params"]
	if !ok || raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCorrection, err)
	}
	var params Params
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCorrection, err)
	}
	return &params, nil
}
