// In file: internal/tools/executor.go
package tools

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownFunction is returned for a call to a name nobody registered.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrMissingArgument is returned when a required argument is absent or blank.
	ErrMissingArgument = errors.New("missing required argument")
)

// ToolExecutor is implemented by every tool the assistant can offer the model.
type ToolExecutor interface {
	// Definition is the schema sent to the model.
	Definition() Tool

	// Execute runs the tool with the model's JSON arguments. A failed
	// execution still returns a Result describing the failure, alongside
	// the error.
	Execute(ctx context.Context, arguments string) (*Result, error)
}

// Result is the outcome of one tool execution, as fed back to the model.
type Result struct {
	Success      bool      `json:"success"`
	Data         any       `json:"data,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Error        string    `json:"error,omitempty"`
	FunctionName string    `json:"function_name"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// Failure builds a failed Result for name.
func Failure(name string, err error) *Result {
	return &Result{
		Success:      false,
		Error:        err.Error(),
		FunctionName: name,
		ExecutedAt:   time.Now().UTC(),
	}
}
