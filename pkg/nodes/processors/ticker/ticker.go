// Package ticker exposes the named monotonic counter source as a pipeline
// node. Each invocation advances the counter by one; the emitted value feeds
// a sequencer's signal input so that downstream completion drives the next
// queue advance. The backing source is injected at construction.
package ticker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wehubfusion/Talaria/pkg/nodes"
	"github.com/wehubfusion/Talaria/pkg/signal"
)

// Executor implements NodeExecutor for counter ticks.
type Executor struct {
	source *signal.Source
}

// NewExecutor creates a ticker backed by the given counter source.
func NewExecutor(source *signal.Source) *Executor {
	return &Executor{source: source}
}

// Config holds the static node configuration.
type Config struct {
	// CounterID names the counter this node drives. Conventionally it
	// matches the queue_id of the sequencer it signals, but nothing requires
	// that.
	CounterID string `json:"counter_id"`
}

// Input is the envelope the node reads from the previous stage. Trigger is
// never inspected; it exists so the host can order this node after an
// arbitrary upstream output.
type Input struct {
	Reset   bool            `json:"reset"`
	Trigger json.RawMessage `json:"trigger"`
}

// Execute advances the configured counter and emits signal and is_first.
func (e *Executor) Execute(ctx context.Context, config nodes.NodeConfig) ([]byte, error) {
	var cfg Config
	if err := json.Unmarshal(config.Configuration, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse ticker configuration: %w", err)
	}
	if cfg.CounterID == "" {
		return nil, fmt.Errorf("ticker requires a non-empty counter_id")
	}

	var input Input
	if len(config.Input) > 0 {
		if err := json.Unmarshal(config.Input, &input); err != nil {
			return nil, fmt.Errorf("failed to parse input envelope: %w", err)
		}
	}

	value, first := e.source.TickWith(cfg.CounterID, input.Reset, input.Trigger)

	return json.Marshal(map[string]interface{}{
		"signal":   value,
		"is_first": first,
	})
}

// PluginType returns the plugin type this executor handles.
func (e *Executor) PluginType() string {
	return "plugin-ticker"
}
