package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStoplist(t *testing.T) {
	path := writeFile(t, "stoplist.yaml", `terms:
  - the
  - a
  - and
`)

	sl, err := LoadStoplist(path)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"the", "a", "and"}, sl.Terms)
}

func TestLoaderDefaults(t *testing.T) {
	loader := Loader{}

	comp, err := loader.Load()
	require.NoError(t, err, "empty loader should succeed")

	require.NotNil(t, comp.Stoplist)
	assert.True(t, comp.Stoplist.IsStop("the"), "should fall back to the built-in English stoplist")
	require.NotNil(t, comp.Tokenizer)
	require.NotNil(t, comp.Cleaner)
	require.NotNil(t, comp.Assembler)
	assert.Empty(t, comp.SchemaScript)
	assert.Empty(t, comp.Cleaner.Sections())
}

func TestLoaderCustomFiles(t *testing.T) {
	loader := Loader{
		StoplistPath:    writeFile(t, "stop.yaml", "terms: [river]\n"),
		SchemaPath:      writeFile(t, "schema.sql", "CREATE TABLE x (y TEXT);"),
		IgnoredSections: []string{"Notes"},
		TopN:            2,
	}

	comp, err := loader.Load()
	require.NoError(t, err)

	assert.False(t, comp.Stoplist.IsStop("the"), "custom stoplist should replace the built-in one")
	assert.True(t, comp.Stoplist.IsStop("river"))
	assert.Equal(t, "CREATE TABLE x (y TEXT);", comp.SchemaScript)

	parsed, err := comp.Assembler.Assemble([]byte(
		"<page><title>T</title><text>the the the river ocean ocean sea\n== Notes ==\nnotes notes notes</text></page>"))
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "ocean"}, parsed.Record.TopWords)
}

func TestLoaderNonExistentStoplist(t *testing.T) {
	loader := Loader{StoplistPath: "/nonexistent/stoplist.yaml"}

	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoaderNonExistentSchema(t *testing.T) {
	loader := Loader{SchemaPath: "/nonexistent/schema.sql"}

	_, err := loader.Load()
	assert.Error(t, err)
}

func TestConfigLoader(t *testing.T) {
	cfg := Default()
	cfg.StoplistPath = "stop.yaml"
	cfg.TopN = 7

	l := cfg.Loader()

	assert.Equal(t, "stop.yaml", l.StoplistPath)
	assert.Equal(t, 7, l.TopN)
	assert.Equal(t, cfg.IgnoredSections, l.IgnoredSections)
}
