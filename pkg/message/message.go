// Package message defines the envelope exchanged over JetStream: a pipeline
// definition plus the payload it starts from, with acknowledgment bound to
// the underlying NATS message.
package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// PipelineNode describes one stage of the requested pipeline as it travels
// on the wire.
type PipelineNode struct {
	NodeID         string          `json:"nodeId"`
	PluginType     string          `json:"pluginType"`
	Configuration  json.RawMessage `json:"configuration"`
	ExecutionOrder int             `json:"executionOrder"`
	Iterate        bool            `json:"iterate,omitempty"`
}

// Payload carries the input the pipeline starts from.
type Payload struct {
	Source string          `json:"source,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Message is the unit of work pulled from and published to JetStream.
type Message struct {
	// CorrelationID tracks related messages across the system.
	CorrelationID string `json:"correlationId,omitempty"`

	// Pipeline lists the stages to execute, in execution order.
	Pipeline []PipelineNode `json:"pipeline,omitempty"`

	// Payload is the initial pipeline input.
	Payload *Payload `json:"payload,omitempty"`

	// Metadata holds additional key-value pairs for the message.
	Metadata map[string]string `json:"metadata,omitempty"`

	// CreatedAt is the timestamp when the message was created.
	CreatedAt string `json:"createdAt"`

	// UpdatedAt is the timestamp when the message was last updated.
	UpdatedAt string `json:"updatedAt"`

	// natsMsg holds the original NATS message for acknowledgment (not serialized)
	natsMsg *nats.Msg
}

// NewMessage creates a message with a fresh correlation id and timestamps.
func NewMessage() *Message {
	now := time.Now().UTC().Format(time.RFC3339)
	return &Message{
		CorrelationID: uuid.NewString(),
		Metadata:      make(map[string]string),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// WithPayload sets the initial pipeline input.
func (m *Message) WithPayload(source string, data json.RawMessage) *Message {
	m.Payload = &Payload{Source: source, Data: data}
	m.touch()
	return m
}

// WithPipeline sets the stages to execute.
func (m *Message) WithPipeline(pipeline []PipelineNode) *Message {
	m.Pipeline = pipeline
	m.touch()
	return m
}

// WithMetadata adds a metadata key-value pair.
func (m *Message) WithMetadata(key, value string) *Message {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
	m.touch()
	return m
}

func (m *Message) touch() {
	m.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// ToJSON serializes the message.
func (m *Message) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a message.
func FromJSON(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &m, nil
}

// SetNATSMsg binds the originating NATS message so the consumer can
// acknowledge it.
func (m *Message) SetNATSMsg(msg *nats.Msg) {
	m.natsMsg = msg
}

// GetNATSMsg returns the originating NATS message, if any.
func (m *Message) GetNATSMsg() *nats.Msg {
	return m.natsMsg
}

// Ack acknowledges the underlying NATS message. A message with no binding
// acks as a no-op so in-process callers can share the code path.
func (m *Message) Ack() error {
	if m.natsMsg == nil {
		return nil
	}
	return m.natsMsg.Ack()
}

// Nak negatively acknowledges the underlying NATS message, requesting
// redelivery.
func (m *Message) Nak() error {
	if m.natsMsg == nil {
		return nil
	}
	return m.natsMsg.Nak()
}
