package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"docs-editor/pkg/config"
	"docs-editor/pkg/logging"
	"docs-editor/pkg/models"

	"github.com/rs/zerolog"
)

// Entry kinds accepted by CreateEntry.
const (
	EntryFile      = models.NodeFile
	EntryDirectory = models.NodeDirectory
)

// IndexNames are the file names that make a directory a document.
var IndexNames = []string{"index.md", "index.mdx"}

// Options configures a Service.
type Options struct {
	Root           string
	ReadOnly       bool
	ReservedSlugs  []string
	ExcludedNames  []string
	CacheTree      bool
	MaxUploadBytes int64
	Now            func() time.Time
	Logger         *zerolog.Logger
}

// Service implements every content operation over the content root. It keeps
// no state besides the optional tree cache; the filesystem is the source of
// truth and concurrent writers are last-write-wins.
type Service struct {
	root      string
	readOnly  bool
	reserved  map[string]struct{}
	builder   *TreeBuilder
	cache     *TreeCache
	maxUpload int64
	preview   *PreviewRenderer
	now       func() time.Time
	log       zerolog.Logger
}

func New(opts Options) *Service {
	reserved := make(map[string]struct{}, len(opts.ReservedSlugs))
	for _, slug := range opts.ReservedSlugs {
		reserved[slug] = struct{}{}
	}
	s := &Service{
		root:      opts.Root,
		readOnly:  opts.ReadOnly,
		reserved:  reserved,
		builder:   NewTreeBuilder(opts.Root, opts.ExcludedNames),
		maxUpload: opts.MaxUploadBytes,
		preview:   NewPreviewRenderer(DefaultPreviewStyle),
		now:       opts.Now,
	}
	if opts.CacheTree {
		s.cache = NewTreeCache(s.builder)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	} else {
		s.log = logging.Get("services")
	}
	return s
}

// NewFromConfig builds a Service from the server configuration.
func NewFromConfig(cfg *config.Config) *Service {
	return New(Options{
		Root:           cfg.ContentRoot,
		ReadOnly:       cfg.ReadOnly(),
		ReservedSlugs:  cfg.ReservedSlugs,
		ExcludedNames:  cfg.ExcludedNames,
		CacheTree:      cfg.TreeCache,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})
}

// Root returns the content root.
func (s *Service) Root() string {
	return s.root
}

func (s *Service) guard() error {
	if s.readOnly {
		return ErrReadOnlyMode
	}
	return nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

// List returns the content tree.
func (s *Service) List() ([]models.ContentNode, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if s.cache != nil {
		return s.cache.Get()
	}
	return s.builder.Build()
}

var (
	whitespaceRe = regexp.MustCompile(`[\s\v\p{Z}\x{85}\x{FEFF}]`)
	nonWordRe    = regexp.MustCompile(`[^\w-]`)
)

// Slugify lowercases title, turns each whitespace character into a hyphen
// and drops everything that is not a word character or hyphen.
func Slugify(title string) string {
	slug := whitespaceRe.ReplaceAllString(strings.ToLower(title), "-")
	return nonWordRe.ReplaceAllString(slug, "")
}

// docLocation is where a slug lives on disk.
type docLocation struct {
	file     string // content file, existing or the one a save would create
	imgDir   string
	remove   string // what DeleteDocument removes
	exists   bool
	writable bool
}

// locate resolves a cleaned slug: "home" is the root index file, then
// <slug>/index.md(x), then <slug>.md(x).
func (s *Service) locate(slug string) docLocation {
	if slug == HomeSlug {
		loc := docLocation{
			file:     filepath.Join(s.root, IndexNames[0]),
			imgDir:   filepath.Join(s.root, ImageDirName),
			writable: isDir(s.root),
		}
		if f, ok := findIndex(s.root); ok {
			loc.file, loc.exists = f, true
		}
		loc.remove = loc.file
		return loc
	}

	base := filepath.Join(s.root, filepath.FromSlash(slug))
	if isDir(base) {
		loc := docLocation{
			file:     filepath.Join(base, IndexNames[0]),
			imgDir:   filepath.Join(base, ImageDirName),
			remove:   base,
			writable: true,
		}
		if f, ok := findIndex(base); ok {
			loc.file, loc.exists = f, true
		}
		return loc
	}

	for _, ext := range ContentExtensions {
		if f := base + ext; isFile(f) {
			return docLocation{
				file:     f,
				imgDir:   filepath.Join(filepath.Dir(f), ImageDirName),
				remove:   f,
				exists:   true,
				writable: true,
			}
		}
	}

	return docLocation{
		file:   filepath.Join(base, IndexNames[0]),
		imgDir: filepath.Join(base, ImageDirName),
		remove: base,
	}
}

func findIndex(dir string) (string, bool) {
	for _, name := range IndexNames {
		if f := filepath.Join(dir, name); isFile(f) {
			return f, true
		}
	}
	return "", false
}

// ReadDocument returns the raw content of slug and the images next to it.
func (s *Service) ReadDocument(slug string) (*models.Document, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	slug, err := CleanPath(slug)
	if err != nil {
		return nil, err
	}

	loc := s.locate(slug)
	if !loc.exists {
		return nil, fmt.Errorf("post %q: %w", slug, ErrNotFound)
	}
	content, err := os.ReadFile(loc.file)
	if err != nil {
		return nil, fmt.Errorf("read post %q: %w", slug, err)
	}
	images, err := listImages(loc.imgDir)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		Slug:    slug,
		Content: string(content),
		Images:  images,
	}
	if fm, _, format, err := ParseFrontMatter(content); err == nil {
		doc.FrontMatter = fm
		doc.Format = format
	}
	return doc, nil
}

// SaveDocument overwrites the content of an existing document.
func (s *Service) SaveDocument(slug, content string) error {
	if err := s.guard(); err != nil {
		return err
	}
	slug, err := CleanPath(slug)
	if err != nil {
		return err
	}

	loc := s.locate(slug)
	if !loc.writable {
		return fmt.Errorf("post %q: %w", slug, ErrNotFound)
	}
	if err := WriteFileAtomic(loc.file, []byte(content), 0o644); err != nil {
		return fmt.Errorf("save post %q: %w", slug, err)
	}
	if !loc.exists {
		s.invalidate()
	}
	s.log.Debug().Str("slug", slug).Int("bytes", len(content)).Msg("post saved")
	return nil
}

// CreateDocument creates <slug>/index.md, <slug>/img and <slug>/_meta.json
// for title and returns the slug. A failure part way leaves what was already
// created in place.
func (s *Service) CreateDocument(title string) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("%w: title required", ErrBadRequest)
	}
	slug := Slugify(title)
	if slug == "" {
		return "", fmt.Errorf("%w: title %q has no usable characters", ErrBadRequest, title)
	}
	if _, ok := s.reserved[slug]; ok {
		return "", fmt.Errorf("%q: %w", slug, ErrReservedName)
	}

	dir := filepath.Join(s.root, slug)
	if exists(dir) {
		return "", fmt.Errorf("post with slug %q: %w", slug, ErrAlreadyExists)
	}

	fail := func(step string, err error) (string, error) {
		s.log.Error().Err(err).Str("slug", slug).Str("step", step).Str("dir", dir).
			Msg("post creation failed; partial files left in place")
		return "", fmt.Errorf("create post %q: %s: %w", slug, step, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail("mkdir", err)
	}
	s.invalidate()
	if err := os.Mkdir(filepath.Join(dir, ImageDirName), 0o755); err != nil {
		return fail("mkdir img", err)
	}
	seedContent := fmt.Sprintf("# %s\n\nNew post.\n", title)
	if err := os.WriteFile(filepath.Join(dir, IndexNames[0]), []byte(seedContent), 0o644); err != nil {
		return fail("write index", err)
	}
	meta := newMeta()
	meta.Set("index", title)
	if err := writeMeta(filepath.Join(dir, MetaFileName), meta); err != nil {
		return fail("write meta", err)
	}

	s.log.Info().Str("slug", slug).Str("title", title).Msg("post created")
	return slug, nil
}

// DeleteDocument removes a document; directory documents are removed with
// everything in them. Deleting a missing document succeeds.
func (s *Service) DeleteDocument(slug string) error {
	if err := s.guard(); err != nil {
		return err
	}
	slug, err := CleanPath(slug)
	if err != nil {
		return err
	}

	loc := s.locate(slug)
	if err := os.RemoveAll(loc.remove); err != nil {
		return fmt.Errorf("delete post %q: %w", slug, err)
	}
	s.invalidate()
	s.log.Info().Str("slug", slug).Msg("post deleted")
	return nil
}

// CreateEntry creates an empty file or directory at p.
func (s *Service) CreateEntry(kind, p string) error {
	if err := s.guard(); err != nil {
		return err
	}
	full, err := SafeJoin(s.root, p)
	if err != nil {
		return err
	}
	if kind != EntryFile && kind != EntryDirectory {
		return fmt.Errorf("%w: unknown entry type %q", ErrBadRequest, kind)
	}
	if exists(full) {
		return fmt.Errorf("%s: %w", p, ErrAlreadyExists)
	}

	switch kind {
	case EntryDirectory:
		err = os.MkdirAll(full, 0o755)
	default:
		if err = os.MkdirAll(filepath.Dir(full), 0o755); err == nil {
			var f *os.File
			f, err = os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
			if err == nil {
				err = f.Close()
			}
		}
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", p, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("create %s %s: %w", kind, p, err)
	}
	s.invalidate()
	s.log.Info().Str("type", kind).Str("path", p).Msg("entry created")
	return nil
}

// Rename moves oldPath to newPath, creating missing parents of newPath.
func (s *Service) Rename(oldPath, newPath string) error {
	if err := s.guard(); err != nil {
		return err
	}
	src, err := SafeJoin(s.root, oldPath)
	if err != nil {
		return err
	}
	dst, err := SafeJoin(s.root, newPath)
	if err != nil {
		return err
	}
	if !exists(src) {
		return fmt.Errorf("%s: %w", oldPath, ErrNotFound)
	}
	if exists(dst) {
		return fmt.Errorf("%s: %w", newPath, ErrAlreadyExists)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	s.invalidate()
	s.log.Info().Str("from", oldPath).Str("to", newPath).Msg("entry renamed")
	return nil
}

// DeleteEntry removes p recursively. Missing entries are not an error.
func (s *Service) DeleteEntry(p string) error {
	if err := s.guard(); err != nil {
		return err
	}
	full, err := SafeJoin(s.root, p)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	s.invalidate()
	s.log.Info().Str("path", p).Msg("entry deleted")
	return nil
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
