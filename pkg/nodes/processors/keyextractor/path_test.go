package keyextractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathEmpty(t *testing.T) {
	steps, err := ParsePath("")
	require.NoError(t, err)
	assert.Empty(t, steps)

	steps, err = ParsePath("   ")
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestParsePathSimpleKey(t *testing.T) {
	steps, err := ParsePath("scenes")
	require.NoError(t, err)
	assert.Equal(t, []Step{{Key: "scenes"}}, steps)
}

func TestParsePathDotted(t *testing.T) {
	steps, err := ParsePath("song.title")
	require.NoError(t, err)
	assert.Equal(t, []Step{{Key: "song"}, {Key: "title"}}, steps)
}

func TestParsePathBracketed(t *testing.T) {
	steps, err := ParsePath("scenes[0].scene_number")
	require.NoError(t, err)
	assert.Equal(t, []Step{
		{Key: "scenes"},
		{Index: 0, IsIndex: true},
		{Key: "scene_number"},
	}, steps)
}

func TestParsePathLeadingIndex(t *testing.T) {
	steps, err := ParsePath("[2]")
	require.NoError(t, err)
	assert.Equal(t, []Step{{Index: 2, IsIndex: true}}, steps)
}

func TestParsePathChainedIndices(t *testing.T) {
	steps, err := ParsePath("grid[1][2]")
	require.NoError(t, err)
	assert.Equal(t, []Step{
		{Key: "grid"},
		{Index: 1, IsIndex: true},
		{Index: 2, IsIndex: true},
	}, steps)
}

func TestParsePathNegativeIndex(t *testing.T) {
	steps, err := ParsePath("scenes[-1]")
	require.NoError(t, err)
	assert.Equal(t, []Step{{Key: "scenes"}, {Index: -1, IsIndex: true}}, steps)
}

func TestParsePathWhitespace(t *testing.T) {
	steps, err := ParsePath("  scenes  ")
	require.NoError(t, err)
	assert.Equal(t, []Step{{Key: "scenes"}}, steps)
}

func TestParsePathMalformed(t *testing.T) {
	for _, path := range []string{"a..b", "a[", "a[x]", "a[0", ".", "a[0]b"} {
		_, err := ParsePath(path)
		assert.Error(t, err, "path %q should not parse", path)
	}
}
