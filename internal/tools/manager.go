// In file: internal/tools/manager.go
package tools

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// ToolManager holds a registry of all available tools. Registration happens
// at startup; after that the manager is only read.
type ToolManager struct {
	tools map[string]ToolExecutor
}

func NewToolManager() *ToolManager {
	return &ToolManager{
		tools: make(map[string]ToolExecutor),
	}
}

// Register adds a new tool to the manager's registry.
func (tm *ToolManager) Register(tool ToolExecutor) {
	name := tool.Definition().Function.Name
	tm.tools[name] = tool
}

// GetDefinitions returns every registered definition, sorted by name.
func (tm *ToolManager) GetDefinitions() []Tool {
	defs := make([]Tool, 0, len(tm.tools))
	for _, tool := range tm.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Function.Name < defs[j].Function.Name })
	return defs
}

// Execute runs the tool named in call. Unknown names fail with
// ErrUnknownFunction and never reach a tool.
func (tm *ToolManager) Execute(ctx context.Context, call *ToolCall) (*Result, error) {
	tool, ok := tm.tools[call.Function.Name]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownFunction, call.Function.Name)
		log.Printf("❌ Function call rejected: %v", err)
		return Failure(call.Function.Name, err), err
	}
	return tool.Execute(ctx, call.Function.Arguments)
}

// ToolCount returns the number of registered tools.
func (tm *ToolManager) ToolCount() int {
	return len(tm.tools)
}
