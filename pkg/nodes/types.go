package nodes

import (
	"context"
	"encoding/json"
	"fmt"
)

// NodeConfig contains everything a single node invocation needs: the node's
// identity, its static configuration, and the JSON input produced by the
// previous stage of the pipeline.
type NodeConfig struct {
	NodeID        string
	PluginType    string
	Configuration json.RawMessage
	Input         []byte
}

// NodeExecutor is implemented by every node plugin.
type NodeExecutor interface {
	// Execute runs the node and returns its JSON output.
	Execute(ctx context.Context, config NodeConfig) ([]byte, error)

	// PluginType returns the plugin type this executor handles.
	PluginType() string
}

// Registry maps plugin types to their executors.
type Registry struct {
	executors map[string]NodeExecutor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]NodeExecutor),
	}
}

// Register registers an executor under its plugin type, replacing any
// previous registration for that type.
func (r *Registry) Register(executor NodeExecutor) {
	r.executors[executor.PluginType()] = executor
}

// Execute dispatches a node to the executor registered for its plugin type.
func (r *Registry) Execute(ctx context.Context, config NodeConfig) ([]byte, error) {
	executor, ok := r.executors[config.PluginType]
	if !ok {
		return nil, fmt.Errorf("no executor registered for plugin type: %s", config.PluginType)
	}
	return executor.Execute(ctx, config)
}

// HasExecutor checks if an executor exists for a plugin type.
func (r *Registry) HasExecutor(pluginType string) bool {
	_, ok := r.executors[pluginType]
	return ok
}

// RegisteredTypes returns all registered plugin types.
func (r *Registry) RegisteredTypes() []string {
	types := make([]string, 0, len(r.executors))
	for pluginType := range r.executors {
		types = append(types, pluginType)
	}
	return types
}
