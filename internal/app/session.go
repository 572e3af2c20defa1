package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nourabuild/user-directory/internal/ui"
)

const (
	sessionCookie        = "sid"
	sessionKey           = "ui_session"
	sessionTTL           = 30 * time.Minute
	sessionSweepInterval = time.Minute
)

// withSession attaches the caller's UI session, starting and mounting a new
// one when the cookie is missing or expired.
func (a *App) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(sessionCookie); err == nil {
			if s, ok := a.sessions.Get(id); ok {
				c.Set(sessionKey, s)
				c.Next()
				return
			}
		}

		s := a.sessions.Create()
		// A failed fetch is part of the view.
		_ = s.List.Mount(c.Request.Context())

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, s.ID, int(sessionTTL.Seconds()), "/", "", false, true)
		c.Set(sessionKey, s)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *ui.Session {
	return c.MustGet(sessionKey).(*ui.Session)
}
