package app

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nourabuild/user-directory/internal/sdk/models"
	"github.com/nourabuild/user-directory/internal/sdk/pager"
	"github.com/nourabuild/user-directory/internal/sdk/search"
	"github.com/nourabuild/user-directory/internal/services/sentry"
)

// HandleListUsers returns the whole table, or with q the fuzzy matches best
// first. page selects one page of pager.PageSize users.
func (a *App) HandleListUsers(c *gin.Context) {
	all, err := a.users.List(c.Request.Context())
	if err != nil {
		a.toSentry(c, "list_users", "db", sentry.LevelError, err)
		writeError(c, ErrRetrieveUsers, nil)
		return
	}

	matched := all
	if q := c.Query("q"); strings.TrimSpace(q) != "" {
		matched = search.New(all).Search(q)
	}

	resp := ListResponse{Total: len(all), Matched: len(matched)}
	shown := matched
	if raw := c.Query("page"); raw != "" {
		page, err := parsePage(raw)
		if err != nil {
			writeError(c, ErrInvalidPage, map[string]string{"page": "page_must_be_positive_integer"})
			return
		}
		pages := pager.Count(len(matched), pager.PageSize)
		if page > max(1, pages) {
			writeError(c, ErrInvalidPage, map[string]string{"page": "page_out_of_range"})
			return
		}
		resp.Page = page
		resp.Pages = pages
		shown = pager.Slice(matched, page, pager.PageSize)
	}

	resp.Users = make([]UserResponse, 0, len(shown))
	for _, u := range shown {
		resp.Users = append(resp.Users, a.userResponse(u))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *App) HandleGetUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	user, err := a.users.Get(c.Request.Context(), id)
	if err != nil {
		code, details := a.userError(c, "get_user", err, ErrRetrieveUsers)
		writeError(c, code, details)
		return
	}

	c.JSON(http.StatusOK, a.userResponse(user))
}

func (a *App) HandleCreateUser(c *gin.Context) {
	in, cleanup, err := parseUserForm(c)
	defer cleanup()
	if err != nil {
		writeError(c, ErrUnmarshal, nil)
		return
	}

	user, err := a.users.Create(c.Request.Context(), in)
	if err != nil {
		code, details := a.userError(c, "create_user", err, ErrCreateUser)
		writeError(c, code, details)
		return
	}

	c.JSON(http.StatusCreated, a.userResponse(user))
}

func (a *App) HandleUpdateUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	in, cleanup, err := parseUserForm(c)
	defer cleanup()
	if err != nil {
		writeError(c, ErrUnmarshal, nil)
		return
	}

	user, err := a.users.Update(c.Request.Context(), id, in)
	if err != nil {
		code, details := a.userError(c, "update_user", err, ErrUpdateUser)
		writeError(c, code, details)
		return
	}

	c.JSON(http.StatusOK, a.userResponse(user))
}

func (a *App) HandleDeleteUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	if err := a.users.Delete(c.Request.Context(), id); err != nil {
		code, details := a.userError(c, "delete_user", err, ErrDeleteUser)
		writeError(c, code, details)
		return
	}

	c.Status(http.StatusNoContent)
}

// userID reads the :id parameter. Ids are uuids; anything else is rejected
// before it reaches the store.
func userID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if err := uuid.Validate(id); err != nil {
		writeError(c, ErrInvalidUserID, map[string]string{"id": "id_must_be_uuid"})
		return "", false
	}
	return id, true
}

func (a *App) userResponse(u models.User) UserResponse {
	resp := UserResponse{User: u, DisplayAvatar: u.Avatar(a.defaultAvatar)}
	if a.variants != nil && u.AvatarURL != nil {
		resp.AvatarVariants = a.variants.VariantURLs(*u.AvatarURL)
	}
	return resp
}
