package app

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

func (a *App) HandleReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := ReadinessResponse{
		Status:   "up",
		Database: a.db.Health(),
		Storage:  a.bucket.Health(ctx),
	}

	status := http.StatusOK
	if resp.Database["status"] != "up" || resp.Storage["status"] != "up" {
		resp.Status = "down"
		status = statusForError(ErrServiceNotHealthy)
	}
	c.JSON(status, resp)
}

func (a *App) HandleLiveness(c *gin.Context) {
	host, _ := os.Hostname()
	if host == "" {
		host = "unavailable"
	}

	c.JSON(http.StatusOK, LivenessResponse{
		Status:     "up",
		Host:       host,
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		Sessions:   a.sessions.Len(),
	})
}
