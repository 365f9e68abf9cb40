package models

// Node types of a ContentNode.
const (
	NodeFile      = "file"
	NodeDirectory = "directory"
)

// ContentNode is one entry of the content tree. Slug is set only for files,
// Children only for directories.
type ContentNode struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Path     string        `json:"path"`
	Slug     string        `json:"slug,omitempty"`
	Children []ContentNode `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory.
func (n ContentNode) IsDir() bool {
	return n.Type == NodeDirectory
}

// Document is a content file addressed by slug.
type Document struct {
	Slug        string                 `json:"slug,omitempty"`
	Content     string                 `json:"content"`
	Images      []string               `json:"images"`
	FrontMatter map[string]interface{} `json:"frontmatter,omitempty"`
	Format      string                 `json:"format,omitempty"` // yaml, toml, json
}

// Upload is the result of storing an image next to a document.
type Upload struct {
	Filename string `json:"filename"`
}

// Preview is rendered markdown.
type Preview struct {
	HTML  string `json:"html"`
	Title string `json:"title,omitempty"`
}
