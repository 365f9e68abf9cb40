package services

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

var fixedNow = time.Date(2024, 3, 9, 14, 7, 5, 0, time.UTC)

func TestUploadName(t *testing.T) {
	assert.Equal(t, "20240309-14-07-05-1.png", UploadName(fixedNow, nil, ".png"))
	assert.Equal(t, "20240309-14-07-05-3.jpg",
		UploadName(fixedNow, []string{"20240309-14-07-05-1.png", "20240309-14-07-05-2.gif", "other.png"}, ".jpg"))
}

func TestUploadName_SkipsTakenNames(t *testing.T) {
	existing := []string{"20240309-14-07-05-2.png", "20240309-14-07-05-3.png"}
	assert.Equal(t, "20240309-14-07-05-4.png", UploadName(fixedNow, existing, ".png"))
}

func TestSaveUpload_AfterRemovingEarlierUpload(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, root, func(o *Options) {
		o.Now = func() time.Time { return fixedNow }
	})
	seed(t, root, map[string]string{"img/.keep": ""})
	imgDir := filepath.Join(root, ImageDirName)

	first, err := svc.SaveUpload(HomeSlug, "a.png", 1, strings.NewReader("1"))
	require.NoError(t, err)
	second, err := svc.SaveUpload(HomeSlug, "b.png", 1, strings.NewReader("2"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(imgDir, first)))

	third, err := svc.SaveUpload(HomeSlug, "c.png", 1, strings.NewReader("3"))
	require.NoError(t, err)
	assert.Equal(t, "20240309-14-07-05-3.png", third)
	assert.Equal(t, "2", readFile(t, filepath.Join(imgDir, second)), "existing upload untouched")
	assert.Equal(t, "3", readFile(t, filepath.Join(imgDir, third)))
}

func TestSaveUpload_SameSecond(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, root, func(o *Options) {
		o.Now = func() time.Time { return fixedNow }
	})
	slug, err := svc.CreateDocument("Pics")
	require.NoError(t, err)

	first, err := svc.SaveUpload(slug, "photo.png", int64(len(pngHeader)), bytes.NewReader(pngHeader))
	require.NoError(t, err)
	second, err := svc.SaveUpload(slug, "C:\\Users\\me\\shot.JPG", 3, strings.NewReader("abc"))
	require.NoError(t, err)

	assert.Equal(t, "20240309-14-07-05-1.png", first)
	assert.Equal(t, "20240309-14-07-05-2.JPG", second)
	assert.Equal(t, string(pngHeader), readFile(t, filepath.Join(root, slug, ImageDirName, first)))
	assert.Equal(t, "abc", readFile(t, filepath.Join(root, slug, ImageDirName, second)))
}

func TestSaveUpload_SniffsMissingExtension(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, root, func(o *Options) {
		o.Now = func() time.Time { return fixedNow }
	})
	seed(t, root, map[string]string{"img/.keep": ""})

	name, err := svc.SaveUpload(HomeSlug, "blob", int64(len(pngHeader)), bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "20240309-14-07-05-1.png", name, ".keep does not share the timestamp")
	assert.Equal(t, string(pngHeader), readFile(t, filepath.Join(root, ImageDirName, name)),
		"sniffed bytes are written back")
}

func TestSaveUpload_Rejects(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, root, func(o *Options) { o.MaxUploadBytes = 4 })
	seed(t, root, map[string]string{"post/index.md": "", "post/img/.keep": ""})

	_, err := svc.SaveUpload("post", "a.png", 5, strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrBadRequest, "too large")

	_, err = svc.SaveUpload("post", "a.png", 0, nil)
	assert.ErrorIs(t, err, ErrBadRequest, "no file")

	_, err = svc.SaveUpload("no-images", "a.png", 1, strings.NewReader("1"))
	assert.ErrorIs(t, err, ErrBadRequest, "missing image directory")
	assert.NoDirExists(t, filepath.Join(root, "no-images"))

	_, err = svc.SaveUpload("../post", "a.png", 1, strings.NewReader("1"))
	assert.ErrorIs(t, err, ErrInvalidPath)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSaveUpload_CopyFailureRemovesFile(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{"img/.keep": ""})
	svc := newTestService(t, root)

	_, err := svc.SaveUpload(HomeSlug, "a.png", 10, failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(root, ImageDirName))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenImage(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{
		"post/index.md":      "",
		"post/img/a.svg":     "<svg/>",
		"post/img/raw":       string(pngHeader),
		"post/img/sub/b.gif": "GIF89a",
	})
	svc := newTestService(t, root)

	full, contentType, err := svc.OpenImage("post", "a.svg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "post", ImageDirName, "a.svg"), full)
	assert.Equal(t, "image/svg+xml", contentType)

	_, contentType, err = svc.OpenImage("post", "raw")
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	_, _, err = svc.OpenImage("post", "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.OpenImage("post", "sub")
	assert.ErrorIs(t, err, ErrNotFound, "directories are not images")

	_, _, err = svc.OpenImage("post", "../index.md")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, map[string]string{"b.PNG": "", "a.webp": "", "c.txt": "", "sub/d.png": ""})

	images, err := listImages(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.webp", "b.PNG"}, images)

	images, err = listImages(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.NotNil(t, images)
	assert.Empty(t, images)
}
