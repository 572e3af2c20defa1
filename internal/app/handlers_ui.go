package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nourabuild/user-directory/internal/sdk/models"
	"github.com/nourabuild/user-directory/internal/services/sentry"
	"github.com/nourabuild/user-directory/internal/services/users"
	"github.com/nourabuild/user-directory/internal/ui"
)

type formData struct {
	ui.FormView
	Title       string
	Action      string
	Cancel      string
	Genders     []models.Gender
	Occupations []models.Occupation
}

type pageData struct {
	View          ui.View
	Add           formData
	Edit          formData
	Remove        ui.FormView
	SearchDelayMs int64
}

func (a *App) pageData(s *ui.Session, view ui.View) pageData {
	edit := s.Edit.View()
	return pageData{
		View: view,
		Add: formData{
			FormView:    s.Add.View(),
			Title:       "Add user",
			Action:      "/users/new",
			Cancel:      "/users/new/cancel",
			Genders:     models.Genders,
			Occupations: models.Occupations,
		},
		Edit: formData{
			FormView:    edit,
			Title:       "Edit user",
			Action:      "/users/" + edit.User.ID + "/edit",
			Cancel:      "/users/" + edit.User.ID + "/edit/cancel",
			Genders:     models.Genders,
			Occupations: models.Occupations,
		},
		Remove:        s.Remove.View(),
		SearchDelayMs: ui.SearchDelay.Milliseconds(),
	}
}

// live marks requests sent by the page script, which want a status instead
// of a redirect.
func live(c *gin.Context) bool {
	return c.PostForm("live") == "1"
}

func home(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) renderMessage(c *gin.Context, status int, message string) {
	c.HTML(status, "message.html", gin.H{"Message": message})
}

// uiFailed reports unexpected failures. Form errors are already on the modal.
func (a *App) uiFailed(c *gin.Context, handler string, err error) {
	if errors.Is(err, users.ErrRemote) {
		a.toSentry(c, handler, "remote", sentry.LevelError, err)
	}
}

// busy answers 409 while a submission from this session is still in flight.
func (a *App) busy(c *gin.Context, err error) bool {
	if !errors.Is(err, ui.ErrBusy) {
		return false
	}
	if live(c) {
		writeError(c, ErrSessionBusy, nil)
		return true
	}
	a.renderMessage(c, statusForError(ErrSessionBusy), "A submission is still in progress. Please wait for it to finish.")
	return true
}

func (a *App) HandleIndex(c *gin.Context) {
	s := sessionFrom(c)
	c.HTML(http.StatusOK, "page.html", a.pageData(s, s.List.Snapshot()))
}

// HandleView renders only the list, for the page script to swap in. A
// search still waiting on the debounce is evaluated first.
func (a *App) HandleView(c *gin.Context) {
	s := sessionFrom(c)
	c.HTML(http.StatusOK, "list.html", a.pageData(s, s.List.SnapshotSettled()))
}

func (a *App) HandleSearch(c *gin.Context) {
	s := sessionFrom(c)
	s.List.Type(c.PostForm("q"))
	if live(c) {
		c.Status(http.StatusAccepted)
		return
	}
	s.List.SnapshotSettled()
	home(c)
}

func (a *App) HandlePage(c *gin.Context) {
	n, err := parsePage(c.PostForm("n"))
	if err != nil {
		a.renderMessage(c, statusForError(ErrInvalidPage), "Invalid page.")
		return
	}
	sessionFrom(c).List.SetPage(n)
	home(c)
}

func (a *App) HandleMode(c *gin.Context) {
	if err := sessionFrom(c).List.SetMode(ui.Mode(c.PostForm("mode"))); err != nil {
		a.renderMessage(c, statusForError(ErrInvalidMode), "Invalid display mode.")
		return
	}
	home(c)
}

func (a *App) HandleAddOpen(c *gin.Context) {
	if a.busy(c, sessionFrom(c).Add.Open()) {
		return
	}
	home(c)
}

func (a *App) HandleAddSubmit(c *gin.Context) {
	s := sessionFrom(c)
	in, cleanup, err := parseUserForm(c)
	defer cleanup()
	if err != nil {
		a.renderMessage(c, statusForError(ErrUnmarshal), "The form could not be read.")
		return
	}

	if err := s.SubmitAdd(c.Request.Context(), fieldsOf(in), in.Avatar); err != nil {
		if a.busy(c, err) {
			return
		}
		a.uiFailed(c, "ui_create_user", err)
	}
	home(c)
}

func (a *App) HandleAddCancel(c *gin.Context) {
	if a.busy(c, sessionFrom(c).Add.Cancel()) {
		return
	}
	home(c)
}

func (a *App) HandleEditOpen(c *gin.Context) {
	s := sessionFrom(c)
	user, ok := s.List.Find(c.Param("id"))
	if !ok {
		a.renderMessage(c, statusForError(ErrUserNotFound), "This user no longer exists.")
		return
	}
	if a.busy(c, s.Edit.Open(user)) {
		return
	}
	home(c)
}

func (a *App) HandleEditSubmit(c *gin.Context) {
	s := sessionFrom(c)
	if s.Edit.View().User.ID != c.Param("id") {
		home(c)
		return
	}

	in, cleanup, err := parseUserForm(c)
	defer cleanup()
	if err != nil {
		a.renderMessage(c, statusForError(ErrUnmarshal), "The form could not be read.")
		return
	}

	if err := s.SubmitEdit(c.Request.Context(), fieldsOf(in), in.Avatar); err != nil {
		if a.busy(c, err) {
			return
		}
		a.uiFailed(c, "ui_update_user", err)
	}
	home(c)
}

func (a *App) HandleEditCancel(c *gin.Context) {
	if a.busy(c, sessionFrom(c).Edit.Cancel()) {
		return
	}
	home(c)
}

func (a *App) HandleDeleteOpen(c *gin.Context) {
	s := sessionFrom(c)
	user, ok := s.List.Find(c.Param("id"))
	if !ok {
		a.renderMessage(c, statusForError(ErrUserNotFound), "This user no longer exists.")
		return
	}
	if a.busy(c, s.Remove.Open(user)) {
		return
	}
	home(c)
}

// HandleDeleteConfirm records the typed name; the page script uses the
// answer to enable the delete button.
func (a *App) HandleDeleteConfirm(c *gin.Context) {
	s := sessionFrom(c)
	if s.Remove.View().User.ID != c.Param("id") {
		c.JSON(http.StatusConflict, gin.H{"can_submit": false})
		return
	}
	ok := s.Remove.Confirm(c.PostForm("confirm"))
	if live(c) {
		c.JSON(http.StatusOK, gin.H{"can_submit": ok})
		return
	}
	home(c)
}

func (a *App) HandleDeleteSubmit(c *gin.Context) {
	s := sessionFrom(c)
	if s.Remove.View().User.ID != c.Param("id") {
		home(c)
		return
	}
	if confirm, ok := c.GetPostForm("confirm"); ok {
		s.Remove.Confirm(confirm)
	}
	if err := s.SubmitRemove(c.Request.Context()); err != nil {
		if a.busy(c, err) {
			return
		}
		a.uiFailed(c, "ui_delete_user", err)
	}
	home(c)
}

func (a *App) HandleDeleteCancel(c *gin.Context) {
	if a.busy(c, sessionFrom(c).Remove.Cancel()) {
		return
	}
	home(c)
}
