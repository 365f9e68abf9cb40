package handlers

import (
	"errors"
	"net/http"

	"docs-editor/pkg/models"
	"docs-editor/pkg/services"

	"github.com/gin-gonic/gin"
)

// UploadField is the multipart field carrying the image.
const UploadField = "file"

func (a *API) Upload(c *gin.Context) {
	slug, err := services.SingleValue(c.QueryArray("slug"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	file, err := c.FormFile(UploadField)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	src, err := file.Open()
	if err != nil {
		a.respondError(c, err)
		return
	}
	defer src.Close()

	filename, err := a.svc.SaveUpload(slug, file.Filename, file.Size, src)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Upload{Filename: filename})
}

// ImagePreview streams an image stored next to a document. Traversal is
// forbidden; anything missing is not found.
func (a *API) ImagePreview(c *gin.Context) {
	slugs, files := c.QueryArray("slug"), c.QueryArray("file")
	if len(slugs) == 0 || len(files) == 0 || slugs[0] == "" || files[0] == "" {
		c.Status(http.StatusNotFound)
		return
	}
	slug, err := services.SingleValue(slugs)
	if err != nil {
		c.Status(http.StatusForbidden)
		return
	}
	file, err := services.SingleValue(files)
	if err != nil {
		c.Status(http.StatusForbidden)
		return
	}

	full, contentType, err := a.svc.OpenImage(slug, file)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrReadOnlyMode), errors.Is(err, services.ErrInvalidPath):
		c.Status(http.StatusForbidden)
		return
	case errors.Is(err, services.ErrNotFound):
		c.Status(http.StatusNotFound)
		return
	default:
		a.respondError(c, err)
		return
	}

	c.Header("Content-Type", contentType)
	c.File(full)
}
