package keyextractor

import (
	"fmt"
	"strconv"
	"strings"
)

// Step is one access into a nested structure: either a map key or a list
// index.
type Step struct {
	Key     string
	Index   int
	IsIndex bool
}

func keyStep(key string) Step { return Step{Key: key} }

func indexStep(idx int) Step { return Step{Index: idx, IsIndex: true} }

func (s Step) String() string {
	if s.IsIndex {
		return fmt.Sprintf("[%d]", s.Index)
	}
	return s.Key
}

// ParsePath parses a dotted/bracketed key-path into access steps. Supported
// forms: "scenes", "song.title", "scenes[0].scene_number", a leading bare
// index "[2]", and chained indices "grid[1][2]". Surrounding whitespace is
// ignored. An empty path yields no steps, meaning "the whole input".
func ParsePath(path string) ([]Step, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	var steps []Step
	for _, segment := range strings.Split(path, ".") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			return nil, fmt.Errorf("empty segment in path %q", path)
		}

		name := segment
		var brackets string
		if open := strings.Index(segment, "["); open >= 0 {
			name = segment[:open]
			brackets = segment[open:]
		}

		if name != "" {
			steps = append(steps, keyStep(name))
		} else if brackets == "" {
			return nil, fmt.Errorf("empty segment in path %q", path)
		}

		for brackets != "" {
			if !strings.HasPrefix(brackets, "[") {
				return nil, fmt.Errorf("malformed index in segment %q", segment)
			}
			closing := strings.Index(brackets, "]")
			if closing < 0 {
				return nil, fmt.Errorf("unclosed index in segment %q", segment)
			}
			idx, err := strconv.Atoi(strings.TrimSpace(brackets[1:closing]))
			if err != nil {
				return nil, fmt.Errorf("non-integer index in segment %q", segment)
			}
			steps = append(steps, indexStep(idx))
			brackets = brackets[closing+1:]
		}
	}

	return steps, nil
}
