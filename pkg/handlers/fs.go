package handlers

import (
	"net/http"

	"docs-editor/pkg/models"

	"github.com/gin-gonic/gin"
)

func (a *API) CreateEntry(c *gin.Context) {
	var req models.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := a.svc.CreateEntry(req.Type, req.Path); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "created"})
}

func (a *API) RenameEntry(c *gin.Context) {
	var req models.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := a.svc.Rename(req.OldPath, req.NewPath); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "renamed"})
}

func (a *API) DeleteEntry(c *gin.Context) {
	var req models.DeleteEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := a.svc.DeleteEntry(req.Path); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// UpdateMeta sets one title in the _meta.json next to path.
func (a *API) UpdateMeta(c *gin.Context) {
	var req models.MetaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := a.svc.UpdateMeta(req.Path, req.Key, req.Title); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
