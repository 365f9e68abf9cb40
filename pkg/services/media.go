package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ImageDirName is the per-document image folder.
const ImageDirName = "img"

// uploadTimeLayout renders as YYYYMMDD-HH-MM-SS.
const uploadTimeLayout = "20060102-15-04-05"

const fallbackImageExt = ".png"

var imageContentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
}

// IsImageName reports whether name has a known image extension.
func IsImageName(name string) bool {
	_, ok := imageContentTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// listImages returns the image files in dir; a missing dir has none.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	images := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !IsImageName(entry.Name()) {
			continue
		}
		images = append(images, entry.Name())
	}
	return images, nil
}

// UploadName builds <timestamp>-<seq><ext> where seq is one more than the
// number of names in existing that already carry the timestamp. When that
// name is taken (an earlier upload of the same second was removed) seq
// keeps growing until the name is free.
func UploadName(now time.Time, existing []string, ext string) string {
	stamp := now.Format(uploadTimeLayout)
	taken := make(map[string]struct{}, len(existing))
	seq := 1
	for _, name := range existing {
		taken[name] = struct{}{}
		if strings.HasPrefix(name, stamp) {
			seq++
		}
	}
	for {
		name := fmt.Sprintf("%s-%d%s", stamp, seq, ext)
		if _, ok := taken[name]; !ok {
			return name
		}
		seq++
	}
}

// SaveUpload copies src into the image folder of slug under a generated
// name and returns that name. originalName only contributes its extension.
func (s *Service) SaveUpload(slug, originalName string, size int64, src io.Reader) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	slug, err := CleanPath(slug)
	if err != nil {
		return "", err
	}
	if src == nil {
		return "", fmt.Errorf("%w: no file uploaded", ErrBadRequest)
	}
	if s.maxUpload > 0 && size > s.maxUpload {
		return "", fmt.Errorf("%w: file too large (max %d bytes)", ErrBadRequest, s.maxUpload)
	}

	imgDir := s.locate(slug).imgDir
	if !isDir(imgDir) {
		return "", fmt.Errorf("%w: post image directory not found", ErrBadRequest)
	}

	ext := filepath.Ext(filepath.Base(originalName))
	if ext == "" {
		head := make([]byte, 3072)
		n, err := io.ReadFull(src, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read upload: %w", err)
		}
		head = head[:n]
		ext = mimetype.Detect(head).Extension()
		if ext == "" {
			ext = fallbackImageExt
		}
		src = io.MultiReader(bytes.NewReader(head), src)
	}

	filename, dst, err := createUpload(imgDir, s.now(), ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}

	s.log.Info().Str("slug", slug).Str("file", filename).Int64("size", size).Msg("image uploaded")
	return filename, nil
}

// uploadAttempts bounds retries when another writer takes the same name
// between the directory scan and the create.
const uploadAttempts = 5

func createUpload(imgDir string, now time.Time, ext string) (string, *os.File, error) {
	for attempt := 0; ; attempt++ {
		entries, err := os.ReadDir(imgDir)
		if err != nil {
			return "", nil, fmt.Errorf("scan image directory: %w", err)
		}
		existing := make([]string, len(entries))
		for i, entry := range entries {
			existing[i] = entry.Name()
		}
		filename := UploadName(now, existing, ext)

		dst, err := os.OpenFile(filepath.Join(imgDir, filename), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) && attempt < uploadAttempts {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("create %s: %w", filename, err)
		}
		return filename, dst, nil
	}
}

// OpenImage resolves an image of slug for serving and returns its path and
// content type.
func (s *Service) OpenImage(slug, file string) (string, string, error) {
	if err := s.guard(); err != nil {
		return "", "", err
	}
	slug, err := CleanPath(slug)
	if err != nil {
		return "", "", err
	}
	full, err := SafeJoin(s.locate(slug).imgDir, file)
	if err != nil {
		return "", "", err
	}
	if !isFile(full) {
		return "", "", fmt.Errorf("image %s: %w", file, ErrNotFound)
	}

	contentType, ok := imageContentTypes[strings.ToLower(filepath.Ext(full))]
	if !ok {
		mt, err := mimetype.DetectFile(full)
		if err != nil {
			return "", "", fmt.Errorf("detect %s: %w", file, err)
		}
		contentType = mt.String()
	}
	return full, contentType, nil
}
