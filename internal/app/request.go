package app

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nourabuild/user-directory/internal/sdk/models"
	"github.com/nourabuild/user-directory/internal/sdk/validate"
	"github.com/nourabuild/user-directory/internal/services/users"
	"github.com/nourabuild/user-directory/internal/ui"
)

const (
	maxFormMemory = 8 << 20
	// Room for an oversized avatar so it is reported as too large rather
	// than as a broken body.
	maxBodyBytes = 2*validate.MaxAvatarBytes + 1<<20
)

var errInvalidPage = errors.New("page must be a positive integer")

// parseUserForm reads a user from a multipart or urlencoded form. The
// returned cleanup closes the avatar file and must always be called.
func parseUserForm(c *gin.Context) (users.Input, func(), error) {
	noop := func() {}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return users.Input{}, noop, err
		}
		if err := c.Request.ParseForm(); err != nil {
			return users.Input{}, noop, err
		}
	}

	in := users.Input{
		Name:        c.PostForm("name"),
		Gender:      models.Gender(c.PostForm("gender")),
		Birthday:    c.PostForm("birthday"),
		Occupation:  models.Occupation(c.PostForm("occupation")),
		PhoneNumber: c.PostForm("phone_number"),
	}

	fh, err := c.FormFile("avatar")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return in, noop, nil
	}
	if err != nil {
		return users.Input{}, noop, err
	}

	file, err := fh.Open()
	if err != nil {
		return users.Input{}, noop, err
	}
	in.Avatar = &users.Avatar{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
	}
	return in, func() { _ = file.Close() }, nil
}

func fieldsOf(in users.Input) ui.Fields {
	return ui.Fields{
		Name:        in.Name,
		Gender:      in.Gender,
		Birthday:    in.Birthday,
		Occupation:  in.Occupation,
		PhoneNumber: in.PhoneNumber,
	}
}

func parsePage(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidPage
	}
	return n, nil
}
