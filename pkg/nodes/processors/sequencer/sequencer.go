// Package sequencer exposes the named FIFO queue engine as a pipeline node.
// Each invocation enqueues whatever arrived on its input and emits the
// queue's current in-flight item; a strictly increased signal value advances
// the queue by exactly one item. The backing store is injected at
// construction so the host decides its lifetime, and because the host graph
// re-invokes nodes on every tick, all sequencing state lives there rather
// than in the executor.
package sequencer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
	"github.com/wehubfusion/Talaria/pkg/nodes"
	"github.com/wehubfusion/Talaria/pkg/queue"
)

// Executor implements NodeExecutor for queue sequencing.
type Executor struct {
	store *queue.Store
}

// NewExecutor creates a sequencer backed by the given queue store.
func NewExecutor(store *queue.Store) *Executor {
	return &Executor{store: store}
}

// Config holds the static node configuration.
type Config struct {
	// QueueID names the queue this node drives. Distinct IDs are fully
	// isolated.
	QueueID string `json:"queue_id"`
}

// Input is the envelope the node reads from the previous stage. Item is kept
// raw so that an absent item (enqueue nothing) can be told apart from an
// explicit null. A missing signal is treated as 0.
type Input struct {
	Item   json.RawMessage `json:"item"`
	Signal *int            `json:"signal"`
	Reset  bool            `json:"reset"`
}

var nullLiteral = []byte("null")

// Execute runs one sequencing step and emits the queue's visible state:
// item, queue_length, has_more, and item_index.
func (e *Executor) Execute(ctx context.Context, config nodes.NodeConfig) ([]byte, error) {
	var cfg Config
	if err := json.Unmarshal(config.Configuration, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sequencer configuration: %w", err)
	}
	if cfg.QueueID == "" {
		return nil, fmt.Errorf("sequencer requires a non-empty queue_id")
	}

	var input Input
	if len(config.Input) > 0 {
		if err := json.Unmarshal(config.Input, &input); err != nil {
			return nil, fmt.Errorf("failed to parse input envelope: %w", err)
		}
	}

	var incoming interface{}
	if len(input.Item) > 0 && !bytes.Equal(input.Item, nullLiteral) {
		if err := json.Unmarshal(input.Item, &incoming); err != nil {
			return nil, fmt.Errorf("failed to parse item: %w", err)
		}
	}

	sig := 0
	if input.Signal != nil {
		sig = *input.Signal
	}

	res := e.store.Advance(cfg.QueueID, input.Reset, incoming, sig)

	// Build the envelope field by field so a nil item renders as an explicit
	// null.
	out := []byte(`{}`)
	var err error
	for _, set := range []struct {
		path  string
		value interface{}
	}{
		{"item", res.Item},
		{"queue_length", res.Remaining},
		{"has_more", res.HasMore},
		{"item_index", res.Index},
	} {
		if out, err = sjson.SetBytes(out, set.path, set.value); err != nil {
			return nil, fmt.Errorf("failed to build output: %w", err)
		}
	}
	return out, nil
}

// PluginType returns the plugin type this executor handles.
func (e *Executor) PluginType() string {
	return "plugin-sequencer"
}
