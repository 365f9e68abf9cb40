package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"docs-editor/pkg/logging"
	"docs-editor/pkg/models"

	"github.com/rs/zerolog"
)

// Phase is the lifecycle of the open document.
type Phase string

const (
	PhaseUnloaded Phase = "unloaded"
	PhaseLoading  Phase = "loading"
	PhaseLoaded   Phase = "loaded"
	PhaseDirty    Phase = "dirty"
	PhaseSaving   Phase = "saving"
	PhaseSaved    Phase = "saved"
	PhaseError    Phase = "error"
)

// UploadPhase tracks the image upload sub-flow.
type UploadPhase string

const (
	UploadIdle      UploadPhase = "idle"
	UploadUploading UploadPhase = "uploading"
	UploadError     UploadPhase = "error"
)

// ViewMode selects which panes are shown.
type ViewMode string

const (
	ViewEdit    ViewMode = "edit"
	ViewSplit   ViewMode = "split"
	ViewPreview ViewMode = "preview"
)

// Status lines shown next to the editor.
const (
	StatusSaving        = "Saving..."
	StatusSaved         = "Saved"
	StatusSaveFailed    = "Error saving"
	StatusLoadFailed    = "Error loading"
	StatusUploading     = "Uploading..."
	StatusUploaded      = "Image uploaded"
	StatusUploadFailed  = "Upload failed"
	StatusReadOnly      = "Read Only Mode (Production)"
	DefaultStatusExpiry = 2 * time.Second
)

var (
	ErrNoDocument   = errors.New("no document open")
	ErrUnknownView  = errors.New("unknown view mode")
	ErrUploadActive = errors.New("upload already in progress")
)

// Confirmer asks the user before a destructive action.
type Confirmer interface {
	Confirm(message string) bool
}

// Alerter reports failures that need the user's attention.
type Alerter interface {
	Alert(message string)
}

// Options configures an Editor. Zero values are usable.
type Options struct {
	StatusExpiry time.Duration // how long "Saved" stays visible
	Confirmer    Confirmer     // nil confirms everything
	Alerter      Alerter
	Notify       func(message string)
	Logger       *zerolog.Logger
}

// KeyEvent is a key press forwarded by the UI.
type KeyEvent struct {
	Key  string
	Ctrl bool
	Meta bool
}

// State is a copy of the editor state for rendering.
type State struct {
	Tree     []models.ContentNode
	Slug     string
	Content  string
	Images   []string
	Cursor   int
	Phase    Phase
	Upload   UploadPhase
	View     ViewMode
	Status   string
	ReadOnly bool
}

// Editor is the view-model of one editing session. It is safe for use from
// several goroutines; requests run outside the lock and the last one to
// finish wins.
type Editor struct {
	client *Client
	opts   Options
	log    zerolog.Logger

	mu         sync.Mutex
	tree       []models.ContentNode
	slug       string
	loaded     bool // the buffer holds slug's content
	content    string
	images     []string
	cursor     int
	phase      Phase
	upload     UploadPhase
	view       ViewMode
	status     string
	statusSeq  uint64
	clearTimer *time.Timer
	readOnly   bool
}

func New(client *Client, opts Options) *Editor {
	if opts.StatusExpiry <= 0 {
		opts.StatusExpiry = DefaultStatusExpiry
	}
	e := &Editor{
		client: client,
		opts:   opts,
		cursor: -1,
		phase:  PhaseUnloaded,
		upload: UploadIdle,
		view:   ViewSplit,
	}
	if opts.Logger != nil {
		e.log = *opts.Logger
	} else {
		e.log = logging.Get("editor")
	}
	return e
}

// State returns a snapshot of the current state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Tree:     e.tree,
		Slug:     e.slug,
		Content:  e.content,
		Images:   append([]string(nil), e.images...),
		Cursor:   e.cursor,
		Phase:    e.phase,
		Upload:   e.upload,
		View:     e.view,
		Status:   e.status,
		ReadOnly: e.readOnly,
	}
}

// Close stops the pending status timer.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clearTimer != nil {
		e.clearTimer.Stop()
		e.clearTimer = nil
	}
}

// setStatus must be called with mu held. A positive expiry clears the
// status later unless another status replaced it first.
func (e *Editor) setStatus(status string, expiry time.Duration) {
	e.statusSeq++
	e.status = status
	if e.clearTimer != nil {
		e.clearTimer.Stop()
		e.clearTimer = nil
	}
	if expiry <= 0 {
		return
	}
	seq := e.statusSeq
	e.clearTimer = time.AfterFunc(expiry, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.statusSeq == seq {
			e.status = ""
			e.clearTimer = nil
		}
	})
}

// failed records err and reports whether it was the read-only gate. Called
// with mu held.
func (e *Editor) failed(err error) bool {
	if errors.Is(err, ErrReadOnly) {
		e.readOnly = true
		e.setStatus(StatusReadOnly, 0)
		return true
	}
	return false
}

func (e *Editor) alert(format string, err error) {
	msg := fmt.Sprintf(format, errorMessage(err))
	e.log.Warn().Err(err).Msg(msg)
	if e.opts.Alerter != nil {
		e.opts.Alerter.Alert(msg)
	}
}

func (e *Editor) confirm(message string) bool {
	if e.opts.Confirmer == nil {
		return true
	}
	return e.opts.Confirmer.Confirm(message)
}

func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// Refresh reloads the content tree.
func (e *Editor) Refresh(ctx context.Context) error {
	tree, err := e.client.ListTree(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.failed(err)
		return err
	}
	e.tree = tree
	return nil
}

// Open loads slug into the buffer, replacing whatever was open.
func (e *Editor) Open(ctx context.Context, slug string) error {
	e.mu.Lock()
	e.slug = slug
	e.loaded = false
	e.phase = PhaseLoading
	e.mu.Unlock()

	doc, err := e.client.GetDocument(ctx, slug)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.slug != slug {
		// another Open started meanwhile
		return nil
	}
	if err != nil {
		e.content, e.images = "", nil
		e.cursor = -1
		e.phase = PhaseError
		if !e.failed(err) {
			e.setStatus(StatusLoadFailed, 0)
		}
		return err
	}
	e.loaded = true
	e.content = doc.Content
	e.images = doc.Images
	e.cursor = -1
	e.phase = PhaseLoaded
	e.upload = UploadIdle
	e.setStatus("", 0)
	return nil
}

// SetContent replaces the edit buffer.
func (e *Editor) SetContent(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded || content == e.content {
		return
	}
	e.content = content
	e.phase = PhaseDirty
	if e.cursor > len(content) {
		e.cursor = -1
	}
}

// SetCursor records the caret as a byte offset into the buffer; -1 means
// the editor has no caret.
func (e *Editor) SetCursor(pos int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor = pos
}

func (e *Editor) SetViewMode(mode ViewMode) error {
	switch mode {
	case ViewEdit, ViewSplit, ViewPreview:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownView, mode)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view = mode
	return nil
}

// Save writes the buffer back to the server.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.slug == "" || !e.loaded {
		e.mu.Unlock()
		return ErrNoDocument
	}
	slug, content := e.slug, e.content
	e.phase = PhaseSaving
	e.setStatus(StatusSaving, 0)
	e.mu.Unlock()

	err := e.client.SaveDocument(ctx, slug, content)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.slug != slug || !e.loaded {
		return err
	}
	if err != nil {
		e.phase = PhaseError
		if !e.failed(err) {
			e.setStatus(StatusSaveFailed, 0)
		}
		return err
	}
	if e.content != content {
		e.phase = PhaseDirty
	} else {
		e.phase = PhaseSaved
	}
	e.setStatus(StatusSaved, e.opts.StatusExpiry)
	return nil
}

// HandleKey runs Save for Ctrl+S and Cmd+S and reports whether the key was
// consumed.
func (e *Editor) HandleKey(ctx context.Context, ev KeyEvent) (bool, error) {
	if !(ev.Ctrl || ev.Meta) || !strings.EqualFold(ev.Key, "s") {
		return false, nil
	}
	return true, e.Save(ctx)
}

// ImageMarkdown is the reference inserted for an uploaded image.
func ImageMarkdown(filename string) string {
	return fmt.Sprintf("![](./img/%s)", filename)
}

// insertAt places ref at the byte offset cursor, or on a new line at the end
// when cursor is outside content. It returns the new content and caret.
func insertAt(content, ref string, cursor int) (string, int) {
	if cursor >= 0 && cursor <= len(content) {
		return content[:cursor] + ref + content[cursor:], cursor + len(ref)
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += ref
	return content, len(content)
}

// UploadImage uploads an image for the open document and inserts a
// reference to it.
func (e *Editor) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	e.mu.Lock()
	if e.slug == "" || !e.loaded {
		e.mu.Unlock()
		return "", ErrNoDocument
	}
	if e.upload == UploadUploading {
		e.mu.Unlock()
		return "", ErrUploadActive
	}
	slug := e.slug
	e.upload = UploadUploading
	e.setStatus(StatusUploading, 0)
	e.mu.Unlock()

	name, err := e.client.Upload(ctx, slug, filename, r)

	e.mu.Lock()
	if err != nil {
		e.upload = UploadError
		if !e.failed(err) {
			e.setStatus(StatusUploadFailed, 0)
		}
		e.mu.Unlock()
		return "", err
	}
	e.upload = UploadIdle
	if e.slug == slug && e.loaded {
		e.content, e.cursor = insertAt(e.content, ImageMarkdown(name), e.cursor)
		e.images = append(e.images, name)
		e.phase = PhaseDirty
	}
	e.setStatus(StatusUploaded, e.opts.StatusExpiry)
	e.mu.Unlock()

	if e.opts.Notify != nil {
		e.opts.Notify(fmt.Sprintf("%s: %s", StatusUploaded, name))
	}
	return name, nil
}

// Preview renders the buffer through the server.
func (e *Editor) Preview(ctx context.Context) (*models.Preview, error) {
	e.mu.Lock()
	slug, content := e.slug, e.content
	e.mu.Unlock()
	return e.client.Preview(ctx, slug, content)
}

// Create makes a new post, refreshes the tree and opens it.
func (e *Editor) Create(ctx context.Context, title string) (string, error) {
	slug, err := e.client.CreateDocument(ctx, title)
	if err != nil {
		e.mu.Lock()
		e.failed(err)
		e.mu.Unlock()
		e.alert("Failed to create post: %s", err)
		return "", err
	}
	if err := e.Refresh(ctx); err != nil {
		return slug, err
	}
	return slug, e.Open(ctx, slug)
}

// Delete removes the open document after confirmation. It returns false
// when the user declined.
func (e *Editor) Delete(ctx context.Context) (bool, error) {
	e.mu.Lock()
	slug := e.slug
	e.mu.Unlock()
	if slug == "" {
		return false, ErrNoDocument
	}
	if !e.confirm(fmt.Sprintf("Are you sure you want to delete %q?", slug)) {
		return false, nil
	}

	if err := e.client.DeleteDocument(ctx, slug); err != nil {
		e.mu.Lock()
		e.failed(err)
		e.mu.Unlock()
		e.alert("Failed to delete post: %s", err)
		return false, err
	}

	e.mu.Lock()
	if e.slug == slug {
		e.slug, e.content, e.images = "", "", nil
		e.loaded = false
		e.cursor = -1
		e.phase = PhaseUnloaded
		e.setStatus("", 0)
	}
	e.mu.Unlock()
	return true, e.Refresh(ctx)
}

// CreateEntry creates a file or directory and refreshes the tree.
func (e *Editor) CreateEntry(ctx context.Context, kind, path string) error {
	if err := e.client.CreateEntry(ctx, kind, path); err != nil {
		e.mu.Lock()
		e.failed(err)
		e.mu.Unlock()
		e.alert("Failed to create: %s", err)
		return err
	}
	return e.Refresh(ctx)
}

// Rename moves an entry and refreshes the tree. The open document is left
// alone even if it was moved.
func (e *Editor) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := e.client.Rename(ctx, oldPath, newPath); err != nil {
		e.mu.Lock()
		e.failed(err)
		e.mu.Unlock()
		e.alert("Failed to rename: %s", err)
		return err
	}
	return e.Refresh(ctx)
}

// DeleteEntry removes an entry after confirmation.
func (e *Editor) DeleteEntry(ctx context.Context, path string) (bool, error) {
	if !e.confirm(fmt.Sprintf("Are you sure you want to delete %q?", path)) {
		return false, nil
	}
	if err := e.client.DeleteEntry(ctx, path); err != nil {
		e.mu.Lock()
		e.failed(err)
		e.mu.Unlock()
		e.alert("Failed to delete: %s", err)
		return false, err
	}
	return true, e.Refresh(ctx)
}

// UpdateMeta sets the display title of key next to path.
func (e *Editor) UpdateMeta(ctx context.Context, path, key, title string) error {
	if err := e.client.UpdateMeta(ctx, path, key, title); err != nil {
		e.mu.Lock()
		e.failed(err)
		e.mu.Unlock()
		e.alert("Failed to update title: %s", err)
		return err
	}
	return nil
}

// Restore loads the tree and reopens the document from the last session.
func (e *Editor) Restore(ctx context.Context) error {
	if err := e.Refresh(ctx); err != nil {
		return err
	}
	slug, err := e.client.LastOpened(ctx)
	if err != nil || slug == "" {
		return err
	}
	return e.Open(ctx, slug)
}
