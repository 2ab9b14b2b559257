package runner

import (
	"errors"

	"chatkit/internal/provider"
	"chatkit/internal/workflow"
)

// Runner errors.
var (
	// ErrMaxToolHops indicates the model kept requesting tools past the hop limit.
	ErrMaxToolHops = errors.New("maximum tool hops reached")

	// ErrNoProvider indicates no provider is configured.
	ErrNoProvider = errors.New("no provider configured")

	// ErrNoMessages indicates the message list is empty.
	ErrNoMessages = errors.New("no messages to send")

	// ErrNoTools indicates tool calls arrived but no registry is attached.
	ErrNoTools = errors.New("no tool registry configured")
)

// ErrorMessage renders err for the end user. A workflow abort names the
// failing step; everything else goes through provider.HumanMessage.
func ErrorMessage(err error) string {
	var se *workflow.StepError
	if errors.As(err, &se) {
		return se.Summary()
	}
	return provider.HumanMessage(err)
}
