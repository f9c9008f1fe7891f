package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageHasIdentity(t *testing.T) {
	msg := NewMessage()

	assert.NotEmpty(t, msg.CorrelationID)
	assert.NotEmpty(t, msg.CreatedAt)
	assert.Equal(t, msg.CreatedAt, msg.UpdatedAt)
	assert.NotNil(t, msg.Metadata)
}

func TestBuilders(t *testing.T) {
	msg := NewMessage().
		WithPayload("editor", []byte(`{"text": "hi"}`)).
		WithPipeline([]PipelineNode{{NodeID: "n1", PluginType: "plugin-text-to-json", ExecutionOrder: 1}}).
		WithMetadata("tenant", "acme")

	require.NotNil(t, msg.Payload)
	assert.Equal(t, "editor", msg.Payload.Source)
	assert.Len(t, msg.Pipeline, 1)
	assert.Equal(t, "acme", msg.Metadata["tenant"])
}

func TestJSONRoundTrip(t *testing.T) {
	msg := NewMessage().
		WithPayload("editor", json.RawMessage(`{"text": "hi"}`)).
		WithPipeline([]PipelineNode{
			{NodeID: "n1", PluginType: "plugin-sequencer", Configuration: []byte(`{"queue_id": "q"}`), ExecutionOrder: 1, Iterate: true},
		})

	data, err := msg.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, msg.CorrelationID, decoded.CorrelationID)
	require.Len(t, decoded.Pipeline, 1)
	assert.Equal(t, "plugin-sequencer", decoded.Pipeline[0].PluginType)
	assert.True(t, decoded.Pipeline[0].Iterate)
	assert.JSONEq(t, `{"queue_id": "q"}`, string(decoded.Pipeline[0].Configuration))
	assert.JSONEq(t, `{"text": "hi"}`, string(decoded.Payload.Data))
}

func TestFromJSONRejectsMalformed(t *testing.T) {
	_, err := FromJSON([]byte(`{not json`))
	assert.Error(t, err)
}

func TestAckWithoutBindingIsNoOp(t *testing.T) {
	msg := NewMessage()

	assert.NoError(t, msg.Ack())
	assert.NoError(t, msg.Nak())
	assert.Nil(t, msg.GetNATSMsg())
}
