package nodes

import (
	"encoding/json"
	"time"

	"github.com/tidwall/sjson"
)

// Meta describes how a node execution went.
type Meta struct {
	Status     string    `json:"status"` // "success" or "failed"
	NodeID     string    `json:"node_id"`
	PluginType string    `json:"plugin_type"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorInfo carries failure details inside an output envelope.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StandardOutput is the envelope every pipeline stage emits. Result holds the
// node's own output; Error is set only on failure.
type StandardOutput struct {
	Meta   Meta        `json:"_meta"`
	Error  *ErrorInfo  `json:"_error,omitempty"`
	Result interface{} `json:"result"`
}

// WrapSuccess wraps a node's raw JSON output in the standard envelope. The
// output bytes are spliced in as-is so the value survives a round trip
// untouched; output that is not valid JSON is kept as a raw string.
func WrapSuccess(nodeID, pluginType string, duration time.Duration, output []byte) []byte {
	base, _ := json.Marshal(StandardOutput{
		Meta: Meta{
			Status:     "success",
			NodeID:     nodeID,
			PluginType: pluginType,
			DurationMs: duration.Milliseconds(),
			Timestamp:  time.Now(),
		},
	})

	var wrapped []byte
	var err error
	if json.Valid(output) {
		wrapped, err = sjson.SetRawBytes(base, "result", output)
	} else {
		wrapped, err = sjson.SetBytes(base, "result", string(output))
	}
	if err != nil {
		return base
	}
	return wrapped
}

// WrapFailure wraps a node failure in the standard envelope with a nil result.
func WrapFailure(nodeID, pluginType string, duration time.Duration, code string, execErr error) []byte {
	data, _ := json.Marshal(StandardOutput{
		Meta: Meta{
			Status:     "failed",
			NodeID:     nodeID,
			PluginType: pluginType,
			DurationMs: duration.Milliseconds(),
			Timestamp:  time.Now(),
		},
		Error: &ErrorInfo{
			Code:    code,
			Message: execErr.Error(),
		},
	})
	return data
}
