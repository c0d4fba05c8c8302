// Package tools provides the tool definitions the agent can invoke.
// Each tool wraps one Data Commons read path and renders a report the
// model can quote back to the user.
//
// Architecture:
//
//	Registry.Register() -> Declarations() -> model picks a tool ->
//	Registry.Execute() -> report string
package tools

import (
	"context"
)

// Category classifies tools.
type Category string

const (
	// CategoryPlace covers place-name resolution.
	CategoryPlace Category = "/place"

	// CategoryStats covers statistical variable and observation lookups.
	CategoryStats Category = "/stats"

	// CategoryGeneral is for tools usable in any context.
	CategoryGeneral Category = "/general"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// Schema defines the JSON schema for tool arguments.
type Schema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines a callable tool exposed to the model.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does.
	// Sent to the model as part of the function declaration.
	Description string

	// Category classifies the tool.
	Category Category

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema Schema
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Result wraps the result of tool execution with metadata.
type Result struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Report is the string output from the tool.
	Report string

	// Error is set if the tool failed.
	Error error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *Result) IsSuccess() bool {
	return r.Error == nil
}
