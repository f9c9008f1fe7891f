// Package texttojson parses free text into a JSON value. Malformed input is
// never a node failure: one bounded repair is attempted (wrapping bare
// "key": value content in braces) and if that also fails, a structured error
// map flows downstream as ordinary data.
package texttojson

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wehubfusion/Talaria/pkg/nodes"
)

// Executor implements NodeExecutor for text to JSON conversion.
type Executor struct{}

// NewExecutor creates a new text to JSON executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Input is the envelope the node reads from the previous stage.
type Input struct {
	Text string `json:"text"`
}

// Parse converts free text into a JSON value. Empty or blank text yields an
// empty object. When the text is not valid JSON and does not already start
// with a brace or bracket, it is wrapped in braces once and re-parsed; this
// recovers bare "key": value content pasted without its outer object. If
// that also fails, a map carrying an error tag, the parser message, and the
// original text is returned instead.
func Parse(text string) interface{} {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return map[string]interface{}{}
	}

	var value interface{}
	err := json.Unmarshal([]byte(trimmed), &value)
	if err == nil {
		return value
	}

	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		if json.Unmarshal([]byte("{"+trimmed+"}"), &value) == nil {
			return value
		}
	}

	return map[string]interface{}{
		"error":         "Invalid JSON input",
		"message":       err.Error(),
		"original_text": text,
	}
}

// Render pretty-prints a parsed value as indented JSON.
func Render(value interface{}) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render value: %w", err)
	}
	return string(data), nil
}

// Execute reads the text field of the input envelope and emits the parsed
// value along with its pretty-printed rendering.
func (e *Executor) Execute(ctx context.Context, config nodes.NodeConfig) ([]byte, error) {
	var input Input
	if err := json.Unmarshal(config.Input, &input); err != nil {
		return nil, fmt.Errorf("failed to parse input envelope: %w", err)
	}

	value := Parse(input.Text)
	rendered, err := Render(value)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]interface{}{
		"json":  rendered,
		"value": value,
	})
}

// PluginType returns the plugin type this executor handles.
func (e *Executor) PluginType() string {
	return "plugin-text-to-json"
}
