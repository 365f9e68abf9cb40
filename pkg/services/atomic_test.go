package services

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.md")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))
	assert.Equal(t, "two", readFile(t, path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteFileAtomic_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.md")

	var wg sync.WaitGroup
	for _, body := range []string{"aaaa", "bbbb", "cccc", "dddd"} {
		wg.Add(1)
		go func(body string) {
			defer wg.Done()
			assert.NoError(t, WriteFileAtomic(path, []byte(body), 0o644))
		}(body)
	}
	wg.Wait()

	assert.Contains(t, []string{"aaaa", "bbbb", "cccc", "dddd"}, readFile(t, path), "last write wins whole")
}

func TestWriteFileAtomic_MissingDir(t *testing.T) {
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "nope", "x.md"), nil, 0o644)
	assert.Error(t, err)
}
