package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wehubfusion/Talaria/pkg/message"
	"go.uber.org/zap"
)

// MessageProcessor adapts a Pipeline to the runner's message interface: it
// decodes the pipeline definition carried by a message, runs it against the
// message payload, and packages the stage results into a reply.
type MessageProcessor struct {
	pipeline *Pipeline
}

// NewMessageProcessor creates a processor over a registry.
func NewMessageProcessor(registry *Registry, logger *zap.Logger) *MessageProcessor {
	return &MessageProcessor{
		pipeline: NewPipeline(registry, logger),
	}
}

// Process runs the message's pipeline and returns a result message carrying
// the final chained output and the per-stage results.
func (p *MessageProcessor) Process(ctx context.Context, msg *message.Message) (*message.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("message cannot be nil")
	}
	if len(msg.Pipeline) == 0 {
		return nil, fmt.Errorf("message carries no pipeline")
	}

	specs := make([]NodeSpec, len(msg.Pipeline))
	for i, node := range msg.Pipeline {
		specs[i] = NodeSpec{
			NodeID:         node.NodeID,
			PluginType:     node.PluginType,
			Configuration:  node.Configuration,
			ExecutionOrder: node.ExecutionOrder,
			Iterate:        node.Iterate,
		}
	}

	input := []byte(`{}`)
	if msg.Payload != nil && len(msg.Payload.Data) > 0 {
		input = msg.Payload.Data
	}

	results, final, err := p.pipeline.Run(ctx, specs, input)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]interface{}{
		"output": json.RawMessage(final),
		"stages": results,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pipeline results: %w", err)
	}

	reply := message.NewMessage().WithPayload("pipeline", data)
	reply.CorrelationID = msg.CorrelationID
	return reply, nil
}
