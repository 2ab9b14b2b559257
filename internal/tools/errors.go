package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the tools package.
var (
	// ErrToolNotFound is returned when a requested tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyExists is returned when a name is registered twice.
	ErrToolAlreadyExists = errors.New("tool already exists")

	// ErrInvalidArgs is returned when tool arguments are malformed or fail
	// schema validation.
	ErrInvalidArgs = errors.New("invalid tool arguments")

	// ErrIncompleteRegistry is returned by CheckComplete.
	ErrIncompleteRegistry = errors.New("tool registry incomplete")
)

// ToolNotFoundError names the missing tool.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// Is allows errors.Is to match against ErrToolNotFound.
func (e *ToolNotFoundError) Is(target error) bool {
	return target == ErrToolNotFound
}

// InvalidArgsError describes why a tool's arguments were rejected.
type InvalidArgsError struct {
	Tool    string
	Message string
	Cause   error
}

func (e *InvalidArgsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid arguments for tool %s: %s: %v", e.Tool, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, e.Message)
}

// Is allows errors.Is to match against ErrInvalidArgs.
func (e *InvalidArgsError) Is(target error) bool {
	return target == ErrInvalidArgs
}

// Unwrap returns the underlying cause, if any.
func (e *InvalidArgsError) Unwrap() error {
	return e.Cause
}

// IncompleteRegistryError lists declared tools without an implementation
// and registered tools that were never declared.
type IncompleteRegistryError struct {
	Missing    []Name
	Undeclared []Name
}

func (e *IncompleteRegistryError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing implementation: %v", e.Missing))
	}
	if len(e.Undeclared) > 0 {
		parts = append(parts, fmt.Sprintf("undeclared: %v", e.Undeclared))
	}
	return "tool registry incomplete: " + strings.Join(parts, "; ")
}

// Is allows errors.Is to match against ErrIncompleteRegistry.
func (e *IncompleteRegistryError) Is(target error) bool {
	return target == ErrIncompleteRegistry
}

// NewToolNotFoundError creates a ToolNotFoundError.
func NewToolNotFoundError(name string) error {
	return &ToolNotFoundError{Name: name}
}

// NewInvalidArgsError creates an InvalidArgsError.
func NewInvalidArgsError(tool, message string, cause error) error {
	return &InvalidArgsError{Tool: tool, Message: message, Cause: cause}
}
