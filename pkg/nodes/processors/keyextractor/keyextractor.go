// Package keyextractor navigates into a nested JSON structure by key-path.
// Paths use dot-separated field names and bracketed integer indices, e.g.
// "scenes[0].scene_number". Navigation failures are not node failures: they
// surface as structured error maps carrying the attempted path and a bounded
// preview of what was actually available at the point of failure.
package keyextractor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/wehubfusion/Talaria/pkg/nodes"
)

// keyPreviewLimit bounds how many available keys an error map reports.
const keyPreviewLimit = 8

// Executor implements NodeExecutor for key-path extraction.
type Executor struct{}

// NewExecutor creates a new key extractor executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Config holds the static node configuration.
type Config struct {
	// Path is the key-path to extract. Empty returns the input unchanged.
	Path string `json:"path"`
}

// Extract walks the key-path through the JSON input and returns the value
// found there. An empty path returns the whole decoded input. On any miss —
// unknown key, index out of range, or a step applied to the wrong kind of
// value — a structured error map is returned instead; Extract itself never
// fails.
func Extract(input []byte, path string) interface{} {
	steps, err := ParsePath(path)
	if err != nil {
		return errorMap("Invalid key path", err.Error(), path, nil)
	}

	current := gjson.ParseBytes(input)
	for i, step := range steps {
		if step.IsIndex {
			if !current.IsArray() {
				return errorMap("Key path not found",
					fmt.Sprintf("cannot index into non-list value at %q", walked(steps, i)),
					path, nil)
			}
			elements := current.Array()
			idx := step.Index
			if idx < 0 {
				idx += len(elements)
			}
			if idx < 0 || idx >= len(elements) {
				m := errorMap("Key path not found",
					fmt.Sprintf("index %d out of range at %q", step.Index, walked(steps, i)),
					path, nil)
				m["list_length"] = len(elements)
				return m
			}
			current = elements[idx]
			continue
		}

		if !current.IsObject() {
			return errorMap("Key path not found",
				fmt.Sprintf("cannot read key %q from non-map value at %q", step.Key, walked(steps, i)),
				path, nil)
		}
		next, ok := current.Map()[step.Key]
		if !ok {
			return errorMap("Key path not found",
				fmt.Sprintf("key %q not found at %q", step.Key, walked(steps, i)),
				path, availableKeys(current))
		}
		current = next
	}

	return current.Value()
}

// walked renders the portion of the path that resolved successfully.
func walked(steps []Step, upto int) string {
	out := ""
	for _, step := range steps[:upto] {
		if step.IsIndex {
			out += step.String()
		} else {
			if out != "" {
				out += "."
			}
			out += step.Key
		}
	}
	if out == "" {
		return "(root)"
	}
	return out
}

// availableKeys lists up to keyPreviewLimit keys of an object, sorted.
func availableKeys(value gjson.Result) []string {
	keys := make([]string, 0, keyPreviewLimit)
	for key := range value.Map() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > keyPreviewLimit {
		keys = keys[:keyPreviewLimit]
	}
	return keys
}

func errorMap(tag, message, path string, keys []string) map[string]interface{} {
	m := map[string]interface{}{
		"error":   tag,
		"message": message,
		"path":    path,
	}
	if len(keys) > 0 {
		m["available_keys"] = keys
	}
	return m
}

// Execute extracts the configured key-path from the stage input.
func (e *Executor) Execute(ctx context.Context, config nodes.NodeConfig) ([]byte, error) {
	var cfg Config
	if len(config.Configuration) > 0 {
		if err := json.Unmarshal(config.Configuration, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse keyextractor configuration: %w", err)
		}
	}

	if !gjson.ValidBytes(config.Input) {
		return nil, fmt.Errorf("input is not valid JSON")
	}

	return json.Marshal(Extract(config.Input, cfg.Path))
}

// PluginType returns the plugin type this executor handles.
func (e *Executor) PluginType() string {
	return "plugin-key-extractor"
}
