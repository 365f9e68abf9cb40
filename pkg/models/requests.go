package models

// CreatePostRequest is the body of POST /api/posts.
type CreatePostRequest struct {
	Title string `json:"title" binding:"required"`
}

// ContentRequest carries a markdown body (PUT /api/post, POST /api/preview).
type ContentRequest struct {
	Content *string `json:"content" binding:"required"`
}

// CreateEntryRequest is the body of POST /api/fs.
type CreateEntryRequest struct {
	Type string `json:"type" binding:"required,oneof=file directory"`
	Path string `json:"path" binding:"required"`
}

// RenameRequest is the body of PUT /api/fs.
type RenameRequest struct {
	OldPath string `json:"oldPath" binding:"required"`
	NewPath string `json:"newPath" binding:"required"`
}

// DeleteEntryRequest is the body of DELETE /api/fs.
type DeleteEntryRequest struct {
	Path string `json:"path" binding:"required"`
}

// MetaRequest is the body of POST /api/meta.
type MetaRequest struct {
	Path  string `json:"path" binding:"required"`
	Key   string `json:"key" binding:"required"`
	Title string `json:"title" binding:"required"`
}
