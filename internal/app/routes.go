// Package app provides the HTTP surface of the user directory: the
// server-rendered management page and the JSON API.
package app

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nourabuild/user-directory/internal/sdk/middleware"
	"github.com/nourabuild/user-directory/internal/services/jwt"
)

// DefaultAvatarURL is served from the embedded static files.
const DefaultAvatarURL = "/static/default-avatar.png"

const defaultRateLimit = 120

var (
	//go:embed templates/*.html
	templateFS embed.FS

	//go:embed static
	staticFS embed.FS
)

func parseTemplates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

// ----------------------------------------------------------------------------
// Route Registration
// ----------------------------------------------------------------------------

func (a *App) RegisterRoutes() *gin.Engine {
	router := gin.New()

	// Global middleware chain
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.CORS())

	router.SetHTMLTemplate(parseTemplates())
	static, _ := fs.Sub(staticFS, "static")
	router.StaticFS("/static", http.FS(static))

	// Management page (session cookie)
	page := router.Group("/", a.withSession())
	{
		page.GET("/", a.HandleIndex)
		page.GET("/view", a.HandleView)
		page.POST("/search", a.HandleSearch)
		page.POST("/page", a.HandlePage)
		page.POST("/mode", a.HandleMode)

		page.GET("/users/new", a.HandleAddOpen)
		page.POST("/users/new", a.HandleAddSubmit)
		page.POST("/users/new/cancel", a.HandleAddCancel)

		page.GET("/users/:id/edit", a.HandleEditOpen)
		page.POST("/users/:id/edit", a.HandleEditSubmit)
		page.POST("/users/:id/edit/cancel", a.HandleEditCancel)

		page.GET("/users/:id/delete", a.HandleDeleteOpen)
		page.POST("/users/:id/delete", a.HandleDeleteSubmit)
		page.POST("/users/:id/delete/confirm", a.HandleDeleteConfirm)
		page.POST("/users/:id/delete/cancel", a.HandleDeleteCancel)
	}

	// API v1 route group
	v1 := router.Group("/api/v1")
	if a.redis != nil {
		v1.Use(middleware.RateLimit(a.redis, a.rateLimit, time.Minute, a.logger))
	}
	{
		// Health check routes (public)
		health := v1.Group("/health")
		{
			health.GET("/readiness", a.HandleReadiness)
			health.GET("/liveness", a.HandleLiveness)
		}

		// User routes (API key; anon reads, service writes)
		users := v1.Group("/users")
		users.Use(middleware.Authenticate(a.tokens))
		{
			users.GET("", middleware.RequireRole(jwt.RoleAnon), a.HandleListUsers)
			users.GET("/:id", middleware.RequireRole(jwt.RoleAnon), a.HandleGetUser)
			users.POST("", middleware.RequireRole(jwt.RoleService), a.HandleCreateUser)
			users.PUT("/:id", middleware.RequireRole(jwt.RoleService), a.HandleUpdateUser)
			users.DELETE("/:id", middleware.RequireRole(jwt.RoleService), a.HandleDeleteUser)
		}
	}

	return router
}
