// Package processors wires the built-in node executors into a registry.
package processors

import (
	"github.com/wehubfusion/Talaria/pkg/nodes"
	"github.com/wehubfusion/Talaria/pkg/nodes/processors/keyextractor"
	"github.com/wehubfusion/Talaria/pkg/nodes/processors/listiterator"
	"github.com/wehubfusion/Talaria/pkg/nodes/processors/sequencer"
	"github.com/wehubfusion/Talaria/pkg/nodes/processors/texttojson"
	"github.com/wehubfusion/Talaria/pkg/nodes/processors/ticker"
	"github.com/wehubfusion/Talaria/pkg/queue"
	"github.com/wehubfusion/Talaria/pkg/signal"
)

// NewDefaultRegistry registers every built-in executor. The queue store and
// counter source are injected so the caller owns the lifetime of all shared
// sequencing state.
func NewDefaultRegistry(queues *queue.Store, counters *signal.Source) *nodes.Registry {
	registry := nodes.NewRegistry()
	registry.Register(texttojson.NewExecutor())
	registry.Register(keyextractor.NewExecutor())
	registry.Register(listiterator.NewExecutor())
	registry.Register(sequencer.NewExecutor(queues))
	registry.Register(ticker.NewExecutor(counters))
	return registry
}
