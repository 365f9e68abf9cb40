package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontMatter_YAML(t *testing.T) {
	fm, body, format, err := ParseFrontMatter([]byte("---\r\ntitle: Setup\ntags: [a, b]\n---\r\n# Setup\n\nBody --- text\n"))
	require.NoError(t, err)

	assert.Equal(t, "yaml", format)
	assert.Equal(t, "Setup", FrontMatterTitle(fm))
	assert.Equal(t, []interface{}{"a", "b"}, fm["tags"])
	assert.Equal(t, "# Setup\n\nBody --- text", body)
}

func TestParseFrontMatter_TOML(t *testing.T) {
	fm, body, format, err := ParseFrontMatter([]byte("+++\ntitle = \"Guide\"\ndraft = true\n+++\nhello\n"))
	require.NoError(t, err)

	assert.Equal(t, "toml", format)
	assert.Equal(t, "Guide", FrontMatterTitle(fm))
	assert.Equal(t, true, fm["draft"])
	assert.Equal(t, "hello", body)
}

func TestParseFrontMatter_JSON(t *testing.T) {
	fm, body, format, err := ParseFrontMatter([]byte(`{"title": "Only"}`))
	require.NoError(t, err)
	assert.Equal(t, "json", format)
	assert.Equal(t, "Only", FrontMatterTitle(fm))
	assert.Empty(t, body)
}

func TestParseFrontMatter_None(t *testing.T) {
	fm, body, _, err := ParseFrontMatter([]byte("# Plain\n\n---\n\nrule above"))
	assert.ErrorIs(t, err, ErrNoFrontMatter)
	assert.Nil(t, fm)
	assert.Equal(t, "# Plain\n\n---\n\nrule above", body)
}

func TestParseFrontMatter_Unterminated(t *testing.T) {
	_, _, _, err := ParseFrontMatter([]byte("---\ntitle: x\nno closing fence"))
	assert.ErrorIs(t, err, ErrNoFrontMatter)
}

func TestParseFrontMatter_BadYAML(t *testing.T) {
	_, _, _, err := ParseFrontMatter([]byte("---\ntitle: [unclosed\n---\nbody"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoFrontMatter)
}

func TestSplitFrontMatter_Empty(t *testing.T) {
	raw, body, ok := splitFrontMatter("---\n---\nbody", "---")
	require.True(t, ok)
	assert.Empty(t, raw)
	assert.Equal(t, "body", body)
}
