// Package tools hosts the tool registry and the built-in tools the
// assistant exposes to its generation backends.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zhafranr/nova-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Registry maps tool names to implementations and executes calls by name.
// It satisfies the orchestration layer's tool executor surface.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]llms.Tool
	order []string
}

func NewRegistry(tools ...llms.Tool) *Registry {
	registry := &Registry{tools: map[string]llms.Tool{}}
	registry.Register(tools...)
	return registry
}

// Register adds tools to the registry. Registering a name again replaces
// the earlier implementation.
func (r *Registry) Register(tools ...llms.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tool := range tools {
		if _, exists := r.tools[tool.Name]; !exists {
			r.order = append(r.order, tool.Name)
		}
		r.tools[tool.Name] = tool
	}
}

// Tools returns the registered tools in registration order, ready to be
// passed to a generation request.
func (r *Registry) Tools() []llms.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Execute runs the named tool against model-supplied arguments JSON.
func (r *Registry) Execute(ctx context.Context, name, arguments string) (string, error) {
	ctx, span := tracer.Start(ctx, "execute registered tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", name))

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("unknown tool: %q", name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	result, err := tool.Execute(ctx, arguments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	logger.InfoContext(ctx, "tool executed", "tool", name, "result", result)
	return result, nil
}
