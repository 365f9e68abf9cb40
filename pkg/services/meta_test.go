package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMeta_KeepsOrder(t *testing.T) {
	meta, err := parseMeta([]byte(`{"zeta": "Z", "alpha": "A", "index": "Home"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "index"}, meta.keys)

	title, ok := meta.Title("alpha")
	assert.True(t, ok)
	assert.Equal(t, "A", title)

	_, ok = meta.Title("missing")
	assert.False(t, ok)
}

func TestMetaEncode(t *testing.T) {
	meta, err := parseMeta([]byte(`{"b": "B", "a": {"title": "A", "display": "hidden"}}`))
	require.NoError(t, err)
	meta.Set("c", "C & <D>")
	meta.Set("b", "B2")

	out, err := meta.encode()
	require.NoError(t, err)
	assert.Equal(t, `{
    "b": "B2",
    "a": {
        "title": "A",
        "display": "hidden"
    },
    "c": "C & <D>"
}
`, string(out))

	empty, err := newMeta().encode()
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(empty))
}

func TestParseMeta_Invalid(t *testing.T) {
	_, err := parseMeta([]byte(`["not", "an", "object"]`))
	assert.Error(t, err)

	meta, err := parseMeta([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, meta.keys)
}

func TestUpdateMeta(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{
		"guide/setup.md":   "",
		"guide/_meta.json": "{\n    \"index\": \"Guide\",\n    \"setup\": \"Setup\"\n}\n",
	})
	svc := newTestService(t, root)

	require.NoError(t, svc.UpdateMeta("guide/setup.md", "setup", "Getting Set Up"))
	require.NoError(t, svc.UpdateMeta("guide/setup.md", "extra", "Extra"))
	assert.Equal(t,
		"{\n    \"index\": \"Guide\",\n    \"setup\": \"Getting Set Up\",\n    \"extra\": \"Extra\"\n}\n",
		readFile(t, filepath.Join(root, "guide", MetaFileName)))

	require.NoError(t, svc.UpdateMeta("new.md", "new", "New"))
	assert.Equal(t, "{\n    \"new\": \"New\"\n}\n", readFile(t, filepath.Join(root, MetaFileName)))

	assert.ErrorIs(t, svc.UpdateMeta("missing/x.md", "x", "X"), ErrNotFound)
	assert.ErrorIs(t, svc.UpdateMeta("guide/setup.md", " ", "X"), ErrBadRequest)
}

func TestUpdateMeta_CorruptSidecarUntouched(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{"_meta.json": "{broken"})
	svc := newTestService(t, root)

	assert.Error(t, svc.UpdateMeta("index.md", "index", "Home"))
	data, err := os.ReadFile(filepath.Join(root, MetaFileName))
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data))
}
