package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"docs-editor/pkg/models"

	"github.com/goccy/go-json"
)

// ErrReadOnly is matched by API errors with status 403.
var ErrReadOnly = errors.New("read only mode")

// APIError is a non-2xx response from the editor server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("editor api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("editor api: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusForbidden {
		return ErrReadOnly
	}
	return nil
}

// Client talks to the editor HTTP API. The cookie jar keeps the editor
// session so LastOpened works across calls.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for baseURL. A nil httpClient gets a default one
// with a cookie jar.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}
	return &Client{base: base, http: httpClient}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func slugQuery(slug string) url.Values {
	return url.Values{"slug": {slug}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) ListTree(ctx context.Context) ([]models.ContentNode, error) {
	var tree []models.ContentNode
	if err := c.do(ctx, http.MethodGet, "/api/posts", nil, nil, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func (c *Client) GetDocument(ctx context.Context, slug string) (*models.Document, error) {
	var doc models.Document
	if err := c.do(ctx, http.MethodGet, "/api/post", slugQuery(slug), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) SaveDocument(ctx context.Context, slug, content string) error {
	return c.do(ctx, http.MethodPut, "/api/post", slugQuery(slug), models.ContentRequest{Content: &content}, nil)
}

// CreateDocument creates a post from title and returns its slug.
func (c *Client) CreateDocument(ctx context.Context, title string) (string, error) {
	var resp struct {
		Slug string `json:"slug"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/posts", nil, models.CreatePostRequest{Title: title}, &resp); err != nil {
		return "", err
	}
	return resp.Slug, nil
}

func (c *Client) DeleteDocument(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodDelete, "/api/post", slugQuery(slug), nil, nil)
}

// Upload sends one image for slug and returns the stored filename.
func (c *Client) Upload(ctx context.Context, slug, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/upload", slugQuery(slug)), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var upload models.Upload
	if err := c.send(req, &upload); err != nil {
		return "", err
	}
	return upload.Filename, nil
}

// ImageURL is where the server serves an image of slug.
func (c *Client) ImageURL(slug, file string) string {
	return c.endpoint("/api/image_preview", url.Values{"slug": {slug}, "file": {file}})
}

func (c *Client) CreateEntry(ctx context.Context, kind, path string) error {
	return c.do(ctx, http.MethodPost, "/api/fs", nil, models.CreateEntryRequest{Type: kind, Path: path}, nil)
}

func (c *Client) Rename(ctx context.Context, oldPath, newPath string) error {
	return c.do(ctx, http.MethodPut, "/api/fs", nil, models.RenameRequest{OldPath: oldPath, NewPath: newPath}, nil)
}

func (c *Client) DeleteEntry(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, "/api/fs", nil, models.DeleteEntryRequest{Path: path}, nil)
}

func (c *Client) UpdateMeta(ctx context.Context, path, key, title string) error {
	return c.do(ctx, http.MethodPost, "/api/meta", nil, models.MetaRequest{Path: path, Key: key, Title: title}, nil)
}

// Preview renders content server side. slug may be empty.
func (c *Client) Preview(ctx context.Context, slug, content string) (*models.Preview, error) {
	var query url.Values
	if slug != "" {
		query = slugQuery(slug)
	}
	var preview models.Preview
	if err := c.do(ctx, http.MethodPost, "/api/preview", query, models.ContentRequest{Content: &content}, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// LastOpened returns the slug last read in this client's session, or "".
func (c *Client) LastOpened(ctx context.Context) (string, error) {
	var resp struct {
		Slug string `json:"slug"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/editor/last", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Slug, nil
}
