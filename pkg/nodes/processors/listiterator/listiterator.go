// Package listiterator projects a single element out of a list-shaped value
// by index. Negative indices count from the end. Non-list input passes
// through unchanged at index 0; anything else degrades to a structured error
// map rather than a node failure.
package listiterator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wehubfusion/Talaria/pkg/nodes"
)

// Executor implements NodeExecutor for list element projection.
type Executor struct{}

// NewExecutor creates a new list iterator executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Config holds the static node configuration.
type Config struct {
	// Index selects the element to project. Negative values count from the
	// end of the list.
	Index int `json:"index"`
}

// Item selects the element at index from a decoded JSON value. Lists resolve
// the index (negative counts from the end) or report "Index out of range"
// with the list length. Non-list values pass through whole at index 0 and
// report "Not a list" for any other index.
func Item(value interface{}, index int) interface{} {
	list, ok := value.([]interface{})
	if !ok {
		if index == 0 {
			return value
		}
		return map[string]interface{}{
			"error":           "Not a list",
			"message":         fmt.Sprintf("cannot take index %d of a non-list value", index),
			"requested_index": index,
		}
	}

	idx := index
	if idx < 0 {
		idx += len(list)
	}
	if idx < 0 || idx >= len(list) {
		return map[string]interface{}{
			"error":           "Index out of range",
			"message":         fmt.Sprintf("index %d out of range for list of length %d", index, len(list)),
			"list_length":     len(list),
			"requested_index": index,
		}
	}

	return list[idx]
}

// Execute projects the configured index out of the stage input and emits the
// element together with the index that selected it.
func (e *Executor) Execute(ctx context.Context, config nodes.NodeConfig) ([]byte, error) {
	var cfg Config
	if len(config.Configuration) > 0 {
		if err := json.Unmarshal(config.Configuration, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse listiterator configuration: %w", err)
		}
	}

	var value interface{}
	if err := json.Unmarshal(config.Input, &value); err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}

	return json.Marshal(map[string]interface{}{
		"item":  Item(value, cfg.Index),
		"index": cfg.Index,
	})
}

// PluginType returns the plugin type this executor handles.
func (e *Executor) PluginType() string {
	return "plugin-list-iterator"
}
