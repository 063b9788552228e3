// In file: internal/tools/types.go

// Package tools defines the provider-agnostic function-calling types used by
// the assistant, plus the registry and the weather function itself. The LLM
// clients translate these into each wire format.
package tools

import (
	"encoding/json"
	"fmt"
)

// ToolTypeFunction is the standard type for function-based tools.
const ToolTypeFunction = "function"

// Tool defines the schema for a function that can be described to an LLM.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function defines the name, description, and parameters of a callable tool.
type Function struct {
	// Name is what the model sends back in a function call (e.g. "get_weather_data").
	Name string `json:"name"`
	// Description is what the model reads to decide when to call the tool.
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// JSONSchema is the subset of JSON Schema needed for tool parameters.
type JSONSchema struct {
	// Type is "object" for the top-level parameters node.
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Default     any                    `json:"default,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
}

// ToolCall is a request from the model to run a tool.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the function name and its JSON-encoded arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewToolCall builds a call from decoded arguments, as Gemini returns them.
func NewToolCall(id, name string, args map[string]any) (*ToolCall, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("could not encode arguments for %s: %w", name, err)
	}
	return &ToolCall{
		ID:   id,
		Type: ToolTypeFunction,
		Function: ToolCallFunction{
			Name:      name,
			Arguments: string(raw),
		},
	}, nil
}

// Args decodes the arguments into a map. Empty arguments give an empty map.
func (tc *ToolCall) Args() (map[string]any, error) {
	args := map[string]any{}
	if tc.Function.Arguments == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", tc.Function.Name, err)
	}
	return args, nil
}

// NewFunctionTool wraps a function definition in a Tool of type "function".
func NewFunctionTool(name, description string, parameters JSONSchema) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}
