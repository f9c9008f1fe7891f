package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upperExecutor uppercases the "text" field of its input.
type upperExecutor struct{}

func (e *upperExecutor) Execute(ctx context.Context, config NodeConfig) ([]byte, error) {
	var input struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(config.Input, &input); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{"text": strings.ToUpper(input.Text)})
}

func (e *upperExecutor) PluginType() string { return "test-upper" }

// suffixExecutor appends a configured suffix to the "text" field.
type suffixExecutor struct{}

func (e *suffixExecutor) Execute(ctx context.Context, config NodeConfig) ([]byte, error) {
	var cfg struct {
		Suffix string `json:"suffix"`
	}
	if err := json.Unmarshal(config.Configuration, &cfg); err != nil {
		return nil, err
	}
	var input struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(config.Input, &input); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{"text": input.Text + cfg.Suffix})
}

func (e *suffixExecutor) PluginType() string { return "test-suffix" }

// failingExecutor always errors.
type failingExecutor struct{}

func (e *failingExecutor) Execute(ctx context.Context, config NodeConfig) ([]byte, error) {
	return nil, errors.New("deliberate failure")
}

func (e *failingExecutor) PluginType() string { return "test-fail" }

func newTestRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(&upperExecutor{})
	registry.Register(&suffixExecutor{})
	registry.Register(&failingExecutor{})
	return registry
}

func TestRegistryDispatch(t *testing.T) {
	registry := newTestRegistry()

	assert.True(t, registry.HasExecutor("test-upper"))
	assert.False(t, registry.HasExecutor("unknown"))
	assert.Len(t, registry.RegisteredTypes(), 3)

	output, err := registry.Execute(context.Background(), NodeConfig{
		PluginType: "test-upper",
		Input:      []byte(`{"text": "hello"}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text": "HELLO"}`, string(output))
}

func TestRegistryUnknownPluginType(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Execute(context.Background(), NodeConfig{PluginType: "unknown"})
	assert.Error(t, err)
}

func TestPipelineChainsInExecutionOrder(t *testing.T) {
	pipeline := NewPipeline(newTestRegistry(), nil)

	// Specs deliberately out of order.
	specs := []NodeSpec{
		{NodeID: "n2", PluginType: "test-suffix", Configuration: []byte(`{"suffix": "!"}`), ExecutionOrder: 2},
		{NodeID: "n1", PluginType: "test-upper", ExecutionOrder: 1},
	}

	results, final, err := pipeline.Run(context.Background(), specs, []byte(`{"text": "hello"}`))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "n1", results[0].NodeID)
	assert.Equal(t, "n2", results[1].NodeID)
	assert.JSONEq(t, `{"text": "HELLO!"}`, string(final))
}

func TestPipelineEmptySpecs(t *testing.T) {
	pipeline := NewPipeline(newTestRegistry(), nil)

	results, final, err := pipeline.Run(context.Background(), nil, []byte(`{"text": "x"}`))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, `{"text": "x"}`, string(final))
}

func TestPipelineFailedStageContinuesWithPreviousOutput(t *testing.T) {
	pipeline := NewPipeline(newTestRegistry(), nil)

	specs := []NodeSpec{
		{NodeID: "n1", PluginType: "test-upper", ExecutionOrder: 1},
		{NodeID: "n2", PluginType: "test-fail", ExecutionOrder: 2},
		{NodeID: "n3", PluginType: "test-suffix", Configuration: []byte(`{"suffix": "?"}`), ExecutionOrder: 3},
	}

	results, final, err := pipeline.Run(context.Background(), specs, []byte(`{"text": "hello"}`))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "success", results[0].Status)
	assert.Equal(t, "failed", results[1].Status)
	assert.Contains(t, results[1].Error, "deliberate failure")
	assert.Equal(t, "success", results[2].Status)

	// The failed stage is skipped over: n3 sees n1's output.
	assert.JSONEq(t, `{"text": "HELLO?"}`, string(final))
}

func TestPipelineResultEnvelopes(t *testing.T) {
	pipeline := NewPipeline(newTestRegistry(), nil)

	specs := []NodeSpec{
		{NodeID: "good", PluginType: "test-upper", ExecutionOrder: 1},
		{NodeID: "bad", PluginType: "test-fail", ExecutionOrder: 2},
	}

	results, _, err := pipeline.Run(context.Background(), specs, []byte(`{"text": "hi"}`))
	require.NoError(t, err)

	var success StandardOutput
	require.NoError(t, json.Unmarshal(results[0].Output, &success))
	assert.Equal(t, "success", success.Meta.Status)
	assert.Equal(t, "good", success.Meta.NodeID)
	assert.Nil(t, success.Error)
	assert.Equal(t, map[string]interface{}{"text": "HI"}, success.Result)

	var failure StandardOutput
	require.NoError(t, json.Unmarshal(results[1].Output, &failure))
	assert.Equal(t, "failed", failure.Meta.Status)
	require.NotNil(t, failure.Error)
	assert.Equal(t, "EXECUTION_FAILED", failure.Error.Code)
	assert.Nil(t, failure.Result)
}

func TestPipelineIterateFansOutOverArray(t *testing.T) {
	pipeline := NewPipeline(newTestRegistry(), nil)

	specs := []NodeSpec{
		{NodeID: "n1", PluginType: "test-upper", ExecutionOrder: 1, Iterate: true},
	}

	input := []byte(`[{"text": "a"}, {"text": "b"}, {"text": "c"}]`)
	_, final, err := pipeline.Run(context.Background(), specs, input)
	require.NoError(t, err)

	var outputs []map[string]string
	require.NoError(t, json.Unmarshal(final, &outputs))
	require.Len(t, outputs, 3)
	assert.Equal(t, "A", outputs[0]["text"])
	assert.Equal(t, "B", outputs[1]["text"])
	assert.Equal(t, "C", outputs[2]["text"])
}

func TestPipelineIterateOnNonArrayRunsOnce(t *testing.T) {
	pipeline := NewPipeline(newTestRegistry(), nil)

	specs := []NodeSpec{
		{NodeID: "n1", PluginType: "test-upper", ExecutionOrder: 1, Iterate: true},
	}

	_, final, err := pipeline.Run(context.Background(), specs, []byte(`{"text": "solo"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"text": "SOLO"}`, string(final))
}

func TestWrapSuccessPreservesRawOutput(t *testing.T) {
	wrapped := WrapSuccess("n1", "test-upper", 5*time.Millisecond, []byte(`{"nested": {"deep": true}}`))

	var out StandardOutput
	require.NoError(t, json.Unmarshal(wrapped, &out))
	assert.Equal(t, "success", out.Meta.Status)
	assert.Equal(t, int64(5), out.Meta.DurationMs)

	result := out.Result.(map[string]interface{})
	assert.Equal(t, true, result["nested"].(map[string]interface{})["deep"])
}

func TestWrapSuccessNonJSONOutputBecomesString(t *testing.T) {
	wrapped := WrapSuccess("n1", "test-upper", 0, []byte(`plain text`))

	var out StandardOutput
	require.NoError(t, json.Unmarshal(wrapped, &out))
	assert.Equal(t, "plain text", out.Result)
}

func TestWrapFailure(t *testing.T) {
	wrapped := WrapFailure("n1", "test-fail", 0, "EXECUTION_FAILED", errors.New("boom"))

	var out StandardOutput
	require.NoError(t, json.Unmarshal(wrapped, &out))
	assert.Equal(t, "failed", out.Meta.Status)
	require.NotNil(t, out.Error)
	assert.Equal(t, "boom", out.Error.Message)
}
