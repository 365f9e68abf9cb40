package handlers

import (
	"net/http"

	"docs-editor/pkg/config"
	"docs-editor/pkg/logging"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	sessionName    = "editor_session"
	lastOpenedKey  = "last_slug"
	sessionMaxAge  = 30 * 24 * 60 * 60
	readOnlyNotice = "Editor is only available in development mode"
)

// Sessions installs the cookie session store. Without SESSION_SECRET a
// random key is used and sessions do not survive a restart.
func Sessions(cfg *config.Config, logger zerolog.Logger) gin.HandlerFunc {
	secret := cfg.SessionSecret
	if secret == "" {
		logger.Warn().Msg("SESSION_SECRET not set; using a random session key")
		secret = uuid.NewString()
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(sessionName, store)
}

// DevelopmentOnly rejects every request when the server is read-only.
func DevelopmentOnly(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.ReadOnly() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": readOnlyNotice})
			return
		}
		c.Next()
	}
}

func (a *API) rememberLastOpened(c *gin.Context, slug string) {
	session := sessions.Default(c)
	session.Set(lastOpenedKey, slug)
	if err := session.Save(); err != nil {
		a.log.Debug().Err(err).Str("slug", slug).Str("request_id", logging.RequestID(c)).
			Msg("session save failed")
	}
}

// LastOpened returns the slug of the last document read in this session.
func (a *API) LastOpened(c *gin.Context) {
	slug, _ := sessions.Default(c).Get(lastOpenedKey).(string)
	c.JSON(http.StatusOK, gin.H{"slug": slug})
}
