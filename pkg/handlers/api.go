package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"docs-editor/pkg/config"
	"docs-editor/pkg/logging"
	"docs-editor/pkg/models"
	"docs-editor/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// API serves the editor endpoints on top of a services.Service.
type API struct {
	svc *services.Service
	log zerolog.Logger
}

func NewAPI(svc *services.Service, logger zerolog.Logger) *API {
	return &API{svc: svc, log: logger}
}

// NewRouter wires every route of the editor server.
func NewRouter(cfg *config.Config, svc *services.Service, logger zerolog.Logger) *gin.Engine {
	api := NewAPI(svc, logger)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = cfg.MaxUploadBytes()
	r.Use(logging.Middleware(logger), gin.Recovery())
	r.Use(Sessions(cfg, logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": cfg.Mode})
	})

	g := r.Group("/api")
	g.Use(DevelopmentOnly(cfg))
	{
		g.GET("/posts", api.ListPosts)
		g.POST("/posts", api.CreatePost)
		g.GET("/post", api.GetPost)
		g.PUT("/post", api.SavePost)
		g.DELETE("/post", api.DeletePost)

		g.POST("/upload", api.Upload)
		g.GET("/image_preview", api.ImagePreview)

		g.POST("/fs", api.CreateEntry)
		g.PUT("/fs", api.RenameEntry)
		g.DELETE("/fs", api.DeleteEntry)
		g.POST("/meta", api.UpdateMeta)

		g.POST("/preview", api.Preview)
		g.GET("/editor/last", api.LastOpened)
	}

	return r
}

func (a *API) ListPosts(c *gin.Context) {
	tree, err := a.svc.List()
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (a *API) CreatePost(c *gin.Context) {
	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	slug, err := a.svc.CreateDocument(req.Title)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"slug": slug})
	case errors.Is(err, services.ErrReadOnlyMode):
		a.respondError(c, err)
	case errors.Is(err, services.ErrReservedName),
		errors.Is(err, services.ErrAlreadyExists),
		errors.Is(err, services.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		a.respondError(c, err)
	}
}

func (a *API) GetPost(c *gin.Context) {
	slug, err := services.SingleValue(c.QueryArray("slug"))
	if err != nil {
		a.respondError(c, err)
		return
	}

	doc, err := a.svc.ReadDocument(slug)
	if err != nil {
		a.respondError(c, err)
		return
	}
	a.rememberLastOpened(c, doc.Slug)
	c.JSON(http.StatusOK, doc)
}

func (a *API) SavePost(c *gin.Context) {
	slug, err := services.SingleValue(c.QueryArray("slug"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	var req models.ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := a.svc.SaveDocument(slug, *req.Content); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (a *API) DeletePost(c *gin.Context) {
	slug, err := services.SingleValue(c.QueryArray("slug"))
	if err != nil {
		a.respondError(c, err)
		return
	}

	if err := a.svc.DeleteDocument(slug); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (a *API) Preview(c *gin.Context) {
	var slug string
	if values := c.QueryArray("slug"); len(values) > 0 {
		var err error
		if slug, err = services.SingleValue(values); err != nil {
			a.respondError(c, err)
			return
		}
	}
	var req models.ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	preview, err := a.svc.RenderPreview(slug, *req.Content)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrReadOnlyMode):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidPath),
		errors.Is(err, services.ErrReservedName),
		errors.Is(err, services.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		a.log.Error().Err(err).Str("request_id", logging.RequestID(c)).Msg("request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.Join(msgs, "; ")})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
