package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/tidwall/gjson"
	"github.com/wehubfusion/Talaria/pkg/iteration"
	"go.uber.org/zap"
)

// NodeSpec describes one stage of a pipeline.
type NodeSpec struct {
	NodeID         string          `json:"nodeId"`
	PluginType     string          `json:"pluginType"`
	Configuration  json.RawMessage `json:"configuration"`
	ExecutionOrder int             `json:"executionOrder"`

	// Iterate runs the node once per element when the stage input is a JSON
	// array, collecting the per-element outputs into an array.
	Iterate bool `json:"iterate,omitempty"`
}

// NodeResult records the outcome of one stage.
type NodeResult struct {
	NodeID         string          `json:"node_id"`
	PluginType     string          `json:"plugin_type"`
	Status         string          `json:"status"` // "success" or "failed"
	Output         json.RawMessage `json:"output,omitempty"`
	Error          string          `json:"error,omitempty"`
	ExecutionOrder int             `json:"execution_order"`
	DurationMs     int64           `json:"duration_ms"`
}

// Pipeline executes an ordered list of nodes, chaining each node's output
// into the next node's input. A stage failure is recorded and the chain
// continues with the previous output: a pipeline degrades, it does not abort.
type Pipeline struct {
	registry *Registry
	logger   *zap.Logger
}

// NewPipeline creates a pipeline over a registry. A nil logger disables
// logging.
func NewPipeline(registry *Registry, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		registry: registry,
		logger:   logger,
	}
}

// Run executes the specs in execution order, starting from input, and returns
// one result per stage along with the final chained output.
func (p *Pipeline) Run(ctx context.Context, specs []NodeSpec, input []byte) ([]NodeResult, []byte, error) {
	if len(specs) == 0 {
		return []NodeResult{}, input, nil
	}

	ordered := make([]NodeSpec, len(specs))
	copy(ordered, specs)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ExecutionOrder < ordered[j].ExecutionOrder
	})

	results := make([]NodeResult, 0, len(ordered))
	current := input

	for _, spec := range ordered {
		start := time.Now()

		var output []byte
		var err error
		if spec.Iterate && gjson.ParseBytes(current).IsArray() {
			output, err = p.runIterated(ctx, spec, current)
		} else {
			output, err = p.registry.Execute(ctx, NodeConfig{
				NodeID:        spec.NodeID,
				PluginType:    spec.PluginType,
				Configuration: spec.Configuration,
				Input:         current,
			})
		}
		duration := time.Since(start)

		if err != nil {
			p.logger.Warn("pipeline stage failed",
				zap.String("node_id", spec.NodeID),
				zap.String("plugin_type", spec.PluginType),
				zap.Error(err))
			results = append(results, NodeResult{
				NodeID:         spec.NodeID,
				PluginType:     spec.PluginType,
				Status:         "failed",
				Output:         WrapFailure(spec.NodeID, spec.PluginType, duration, "EXECUTION_FAILED", err),
				Error:          err.Error(),
				ExecutionOrder: spec.ExecutionOrder,
				DurationMs:     duration.Milliseconds(),
			})
			continue
		}

		p.logger.Debug("pipeline stage completed",
			zap.String("node_id", spec.NodeID),
			zap.String("plugin_type", spec.PluginType),
			zap.Duration("duration", duration))

		results = append(results, NodeResult{
			NodeID:         spec.NodeID,
			PluginType:     spec.PluginType,
			Status:         "success",
			Output:         WrapSuccess(spec.NodeID, spec.PluginType, duration, output),
			ExecutionOrder: spec.ExecutionOrder,
			DurationMs:     duration.Milliseconds(),
		})
		current = output
	}

	return results, current, nil
}

// runIterated executes a node once per element of the array-shaped input and
// aggregates the outputs into a JSON array.
func (p *Pipeline) runIterated(ctx context.Context, spec NodeSpec, input []byte) ([]byte, error) {
	var elements []interface{}
	if err := json.Unmarshal(input, &elements); err != nil {
		return nil, fmt.Errorf("iterate stage %s: input is not an array: %w", spec.NodeID, err)
	}

	it := iteration.New(iteration.Config{Strategy: iteration.StrategySequential})
	outputs, err := it.ForEach(ctx, elements, func(ctx context.Context, element interface{}, index int) (interface{}, error) {
		elementJSON, err := json.Marshal(element)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal element: %w", err)
		}

		output, err := p.registry.Execute(ctx, NodeConfig{
			NodeID:        spec.NodeID,
			PluginType:    spec.PluginType,
			Configuration: spec.Configuration,
			Input:         elementJSON,
		})
		if err != nil {
			return nil, err
		}

		var decoded interface{}
		if err := json.Unmarshal(output, &decoded); err != nil {
			return string(output), nil
		}
		return decoded, nil
	})
	if err != nil {
		return nil, err
	}

	return json.Marshal(outputs)
}
