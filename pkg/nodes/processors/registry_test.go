package processors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/wehubfusion/Talaria/pkg/nodes"
	"github.com/wehubfusion/Talaria/pkg/queue"
	"github.com/wehubfusion/Talaria/pkg/signal"
)

func TestDefaultRegistryRegistersAllBuiltins(t *testing.T) {
	registry := NewDefaultRegistry(queue.NewStore(nil), signal.NewSource(nil))

	for _, pluginType := range []string{
		"plugin-text-to-json",
		"plugin-key-extractor",
		"plugin-list-iterator",
		"plugin-sequencer",
		"plugin-ticker",
	} {
		assert.True(t, registry.HasExecutor(pluginType), pluginType)
	}
	assert.Len(t, registry.RegisteredTypes(), 5)
}

func TestParseExtractProjectPipeline(t *testing.T) {
	registry := NewDefaultRegistry(queue.NewStore(nil), signal.NewSource(nil))
	pipeline := nodes.NewPipeline(registry, nil)

	raw := `{"text": "{\"scenes\": [{\"scene_number\": 1}, {\"scene_number\": 2}]}"}`
	specs := []nodes.NodeSpec{
		{NodeID: "parse", PluginType: "plugin-text-to-json", ExecutionOrder: 1},
		{NodeID: "extract", PluginType: "plugin-key-extractor",
			Configuration: []byte(`{"path": "value.scenes"}`), ExecutionOrder: 2},
		{NodeID: "project", PluginType: "plugin-list-iterator",
			Configuration: []byte(`{"index": 1}`), ExecutionOrder: 3},
	}

	results, final, err := pipeline.Run(context.Background(), specs, []byte(raw))
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, result := range results {
		assert.Equal(t, "success", result.Status, result.NodeID)
	}

	parsed := gjson.ParseBytes(final)
	assert.Equal(t, int64(2), parsed.Get("item.scene_number").Int())
	assert.Equal(t, int64(1), parsed.Get("index").Int())
}

// A ticker feeding a sequencer drains a queue one item per tick: the shape of
// the loop a visual editor builds around these nodes.
func TestTickerDrivenSequencerDrain(t *testing.T) {
	queues := queue.NewStore(nil)
	counters := signal.NewSource(nil)
	registry := NewDefaultRegistry(queues, counters)
	ctx := context.Background()

	seqConfig := []byte(`{"queue_id": "work"}`)
	tickConfig := []byte(`{"counter_id": "work"}`)

	// Load three items; the first emits immediately.
	output, err := registry.Execute(ctx, nodes.NodeConfig{
		PluginType:    "plugin-sequencer",
		Configuration: seqConfig,
		Input:         []byte(`{"item": ["A", "B", "C"], "signal": 0}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "A", gjson.GetBytes(output, "item").String())
	assert.True(t, gjson.GetBytes(output, "has_more").Bool())

	// Each completed item ticks the counter, and the new count advances the
	// queue by exactly one.
	for _, want := range []string{"B", "C"} {
		tickOut, err := registry.Execute(ctx, nodes.NodeConfig{
			PluginType:    "plugin-ticker",
			Configuration: tickConfig,
			Input:         []byte(`{}`),
		})
		require.NoError(t, err)
		sig := gjson.GetBytes(tickOut, "signal").Int()

		output, err = registry.Execute(ctx, nodes.NodeConfig{
			PluginType:    "plugin-sequencer",
			Configuration: seqConfig,
			Input:         []byte(fmt.Sprintf(`{"signal": %d}`, sig)),
		})
		require.NoError(t, err)
		assert.Equal(t, want, gjson.GetBytes(output, "item").String())
	}

	assert.False(t, gjson.GetBytes(output, "has_more").Bool())
	assert.Equal(t, int64(2), gjson.GetBytes(output, "item_index").Int())

	// A repeated tick value is stale: the queue holds its last item.
	output, err = registry.Execute(ctx, nodes.NodeConfig{
		PluginType:    "plugin-sequencer",
		Configuration: seqConfig,
		Input:         []byte(`{"signal": 2}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "C", gjson.GetBytes(output, "item").String())
}
