package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpgate/internal/metrics"
	"github.com/BaSui01/mcpgate/types"
)

// Func executes a tool against already-decoded arguments.
type Func func(ctx context.Context, args map[string]any) (any, error)

// ToolDefinition describes one callable tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Handler     Func           `json:"-"`
}

// Required returns the argument names listed in inputSchema.required.
func (d ToolDefinition) Required() []string {
	switch req := d.InputSchema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// =============================================================================
// 🗂️ Registry
// =============================================================================

// Registry holds tool definitions in registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	tools   map[string]ToolDefinition
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewRegistry returns an empty registry. collector may be nil.
func NewRegistry(logger *zap.Logger, collector *metrics.Collector) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:   make(map[string]ToolDefinition),
		logger:  logger.With(zap.String("component", "tool_registry")),
		metrics: collector,
	}
}

// Register adds def. Names must be unique and a handler is required.
func (r *Registry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s has no handler", def.Name)
	}
	if def.InputSchema == nil {
		def.InputSchema = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.tools[def.Name] = def
	r.order = append(r.order, def.Name)

	r.logger.Info("tool registered", zap.String("name", def.Name))
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(defs ...ToolDefinition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns every definition in registration order.
func (r *Registry) List() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// Call validates required arguments and runs the tool synchronously.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, types.Errorf(types.ErrToolNotFound, "Unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	for _, field := range def.Required() {
		if _, present := args[field]; !present {
			return nil, types.Errorf(types.ErrToolValidation, "'arguments.%s' is required", field)
		}
	}

	start := time.Now()
	result, err := def.Handler(ctx, args)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		r.logger.Debug("tool call failed",
			zap.String("name", name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}
	r.metrics.RecordToolCall(name, status, duration)
	return result, err
}
