package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nourabuild/user-directory/internal/sdk/memstore"
	"github.com/nourabuild/user-directory/internal/sdk/models"
	"github.com/nourabuild/user-directory/internal/sdk/validate"
	"github.com/nourabuild/user-directory/internal/services/jwt"
	"github.com/nourabuild/user-directory/internal/services/sentry"
	"github.com/nourabuild/user-directory/internal/services/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHealth struct{ status string }

func (f fakeHealth) Health() map[string]string { return map[string]string{"status": f.status} }

type fakeBucketHealth struct{ status string }

func (f fakeBucketHealth) Health(context.Context) map[string]string {
	return map[string]string{"status": f.status}
}

type testEnv struct {
	router     *gin.Engine
	app        *App
	store      *memstore.Users
	bucket     *memstore.Bucket
	anonKey    string
	serviceKey string
}

func newTestEnv(t *testing.T, seed ...models.User) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.NewUsers(seed...)
	bucket := memstore.NewBucket()
	tokens := jwt.NewTokenServiceWithSecret([]byte("test-secret"), "test")

	a := NewApp(Config{
		Logger:   logger,
		DB:       fakeHealth{status: "up"},
		Bucket:   fakeBucketHealth{status: "up"},
		Users:    users.NewService(store, bucket, logger),
		Variants: bucket,
		Sentry:   sentry.NewSentryService(logger),
		Tokens:   tokens,
	})

	anonKey, err := tokens.Issue(jwt.RoleAnon, time.Hour)
	require.NoError(t, err)
	serviceKey, err := tokens.Issue(jwt.RoleService, time.Hour)
	require.NoError(t, err)

	return &testEnv{
		router:     a.RegisterRoutes(),
		app:        a,
		store:      store,
		bucket:     bucket,
		anonKey:    anonKey,
		serviceKey: serviceKey,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) api(method, path, key string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return e.do(req)
}

func userForm(t *testing.T, fields map[string]string, avatar []byte, avatarType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if avatar != nil {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="avatar"; filename="me.png"`}
		h["Content-Type"] = []string{avatarType}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(avatar)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func validUserFields() map[string]string {
	return map[string]string{
		"name":         "Bruce Lee",
		"gender":       "male",
		"birthday":     "1940-11-27",
		"occupation":   "engineer",
		"phone_number": "0912 345 678",
	}
}

const (
	chenID = "0b6f3c3e-4a1d-4f8e-9b61-2f0c9d3e7a11"
	wangID = "7d2e9a40-1c5b-4e37-8f02-6a9b1e4c5d22"
)

func seedUsers() []models.User {
	return []models.User{
		{ID: chenID, Name: "Chen Mei", Gender: models.GenderFemale, Birthday: "1991-02-03", Occupation: models.OccupationDoctor, PhoneNumber: "0911111111"},
		{ID: wangID, Name: "Wang Da", Gender: models.GenderMale, Birthday: "1985-07-08", Occupation: models.OccupationTeacher, PhoneNumber: "0922222222"},
	}
}

// ----------------------------------------------------------------------------
// Health
// ----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	w := e.api(http.MethodGet, "/api/v1/health/liveness", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.api(http.MethodGet, "/api/v1/health/readiness", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	e.app.bucket = fakeBucketHealth{status: "down"}
	w = e.api(http.MethodGet, "/api/v1/health/readiness", "", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "down", resp.Status)
}

// ----------------------------------------------------------------------------
// JSON API
// ----------------------------------------------------------------------------

func TestAPI_RequiresKey(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)

	w := e.api(http.MethodGet, "/api/v1/users", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body, ct := userForm(t, validUserFields(), nil, "")
	w = e.api(http.MethodPost, "/api/v1/users", e.anonKey, body, ct)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, e.store.Calls("create"))
}

func TestAPI_ListUsers(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)

	w := e.api(http.MethodGet, "/api/v1/users", e.anonKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, chenID, resp.Users[0].ID)
	assert.Equal(t, DefaultAvatarURL, resp.Users[0].DisplayAvatar)
	assert.Nil(t, resp.Users[0].AvatarURL)
	assert.Nil(t, resp.Users[0].AvatarVariants, "no variants without an avatar")

	w = e.api(http.MethodGet, "/api/v1/users?q=teachr&page=1", e.anonKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp = ListResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Matched)
	assert.Equal(t, 1, resp.Pages)
	require.Len(t, resp.Users, 1)
	assert.Equal(t, wangID, resp.Users[0].ID)

	w = e.api(http.MethodGet, "/api/v1/users?page=0", e.anonKey, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_CreateUser(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)

	body, ct := userForm(t, validUserFields(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	w := e.api(http.MethodPost, "/api/v1/users", e.serviceKey, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "0912345678", got.PhoneNumber)
	require.NotNil(t, got.AvatarURL)
	assert.Equal(t, *got.AvatarURL, got.DisplayAvatar)
	assert.Len(t, e.bucket.Objects(), 1)

	require.Len(t, got.AvatarVariants, 3)
	small := got.AvatarVariants["small"]
	assert.True(t, strings.HasSuffix(small, "_small.jpg"), small)
	assert.Equal(t, strings.TrimSuffix(*got.AvatarURL, ".png"), strings.TrimSuffix(small, "_small.jpg"))
}

func TestAPI_CreateUserErrors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(map[string]string)
		avatar     []byte
		avatarType string
		status     int
		code       string
	}{
		{"missing name", func(f map[string]string) { delete(f, "name") }, nil, "", http.StatusBadRequest, validate.ErrMissingFields},
		{"bad phone", func(f map[string]string) { f["phone_number"] = "12345678" }, nil, "", http.StatusBadRequest, validate.ErrInvalidPhone},
		{"bad birthday", func(f map[string]string) { f["birthday"] = "1940-13-40" }, nil, "", http.StatusBadRequest, validate.ErrInvalidBirthday},
		{"duplicate phone", func(f map[string]string) { f["phone_number"] = "0911-111-111" }, nil, "", http.StatusConflict, ErrPhoneTaken},
		{"gif avatar", func(map[string]string) {}, []byte("GIF89a"), "image/gif", http.StatusUnsupportedMediaType, validate.ErrAvatarType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, seedUsers()...)
			fields := validUserFields()
			tt.mutate(fields)

			body, ct := userForm(t, fields, tt.avatar, tt.avatarType)
			w := e.api(http.MethodPost, "/api/v1/users", e.serviceKey, body, ct)
			assert.Equal(t, tt.status, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
			assert.Empty(t, e.bucket.Objects())
		})
	}
}

func TestAPI_RemoteFailure(t *testing.T) {
	e := newTestEnv(t)
	e.store.Fail = func(op string) error {
		if op == "create" {
			return memstore.ErrInjected
		}
		return nil
	}

	body, ct := userForm(t, validUserFields(), []byte{0xff, 0xd8}, "image/jpeg")
	w := e.api(http.MethodPost, "/api/v1/users", e.serviceKey, body, ct)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), ErrCreateUser)
	assert.Empty(t, e.bucket.Objects(), "uploaded avatar is removed again")
}

func TestAPI_GetUpdateDelete(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)

	w := e.api(http.MethodGet, "/api/v1/users/"+chenID, e.anonKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = e.api(http.MethodGet, "/api/v1/users/9e8d7c6b-5a49-4382-a716-1f2e3d4c5b6a", e.anonKey, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	fields := validUserFields()
	fields["phone_number"] = "0911111111"
	body, ct := userForm(t, fields, nil, "")
	w = e.api(http.MethodPut, "/api/v1/users/"+chenID, e.serviceKey, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Bruce Lee", got.Name)

	w = e.api(http.MethodDelete, "/api/v1/users/"+chenID, e.serviceKey, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.api(http.MethodDelete, "/api/v1/users/"+chenID, e.serviceKey, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_MalformedUserID(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)
	body, ct := userForm(t, validUserFields(), nil, "")

	tests := []struct {
		method string
		key    string
		body   io.Reader
		ct     string
	}{
		{http.MethodGet, e.anonKey, nil, ""},
		{http.MethodPut, e.serviceKey, body, ct},
		{http.MethodDelete, e.serviceKey, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := e.api(tt.method, "/api/v1/users/abc", tt.key, tt.body, tt.ct)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, ErrInvalidUserID, resp.Error)
		})
	}
	assert.Zero(t, e.store.Calls("get"))
	assert.Zero(t, e.store.Calls("update"))
	assert.Zero(t, e.store.Calls("delete"))
}

func TestAPI_PageOutOfRange(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)

	for _, page := range []string{"2", "3074457345618258603"} {
		w := e.api(http.MethodGet, "/api/v1/users?page="+page, e.anonKey, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "page=%s", page)
		assert.Contains(t, w.Body.String(), "page_out_of_range")
	}

	// An empty result still has a first page.
	w := e.api(http.MethodGet, "/api/v1/users?q=zzzzzzzz&page=1", e.anonKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Users)
}

// ----------------------------------------------------------------------------
// Management page
// ----------------------------------------------------------------------------

type browser struct {
	t   *testing.T
	env *testEnv
	sid *http.Cookie
}

func (b *browser) request(req *http.Request) *httptest.ResponseRecorder {
	if b.sid != nil {
		req.AddCookie(b.sid)
	}
	w := b.env.do(req)
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			b.sid = c
		}
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.request(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.request(req)
}

func (b *browser) postMultipart(path string, fields map[string]string) *httptest.ResponseRecorder {
	body, ct := userForm(b.t, fields, nil, "")
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	return b.request(req)
}

func TestPage_RendersList(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)
	b := &browser{t: t, env: e}

	w := b.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, b.sid, "session cookie set")
	assert.Contains(t, w.Body.String(), "Chen Mei")
	assert.Contains(t, w.Body.String(), "Wang Da")
	assert.Contains(t, w.Body.String(), DefaultAvatarURL)

	b.get("/")
	assert.Equal(t, 1, e.store.Calls("list"), "existing session is reused")
}

func TestPage_FetchErrorReplacesList(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)
	e.store.Fail = func(string) error { return memstore.ErrInjected }
	b := &browser{t: t, env: e}

	w := b.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Could not load users")
	assert.NotContains(t, w.Body.String(), "Chen Mei")
}

func TestPage_SearchAndMode(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)
	b := &browser{t: t, env: e}
	b.get("/")

	w := b.post("/search", url.Values{"q": {"docter"}, "live": {"1"}})
	assert.Equal(t, http.StatusAccepted, w.Code)
	filtered := b.get("/view").Body.String()
	assert.Contains(t, filtered, "Chen Mei", "pending search is evaluated before rendering")
	assert.NotContains(t, filtered, "Wang Da")

	w = b.post("/search", url.Values{"q": {"docter"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = b.get("/view")
	assert.Contains(t, w.Body.String(), "Chen Mei")
	assert.NotContains(t, w.Body.String(), "Wang Da")

	w = b.post("/mode", url.Values{"mode": {"table"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, b.get("/view").Body.String(), "<table>")

	w = b.post("/mode", url.Values{"mode": {"grid"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPage_AddUserWithoutAvatar(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)
	b := &browser{t: t, env: e}
	b.get("/")

	w := b.get("/users/new")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, b.get("/").Body.String(), "Add user</h2>")

	w = b.postMultipart("/users/new", validUserFields())
	assert.Equal(t, http.StatusSeeOther, w.Code)

	rows, err := e.store.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Nil(t, rows[2].AvatarURL)

	page := b.get("/").Body.String()
	assert.Contains(t, page, "Bruce Lee")
	assert.NotContains(t, page, "Add user</h2>", "modal closed after success")
	assert.Equal(t, 3, strings.Count(page, DefaultAvatarURL))
}

func TestPage_AddUserShowsConflict(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)
	b := &browser{t: t, env: e}
	b.get("/users/new")

	fields := validUserFields()
	fields["phone_number"] = "0911111111"
	b.postMultipart("/users/new", fields)

	page := b.get("/").Body.String()
	assert.Contains(t, page, "This phone number is already registered.")
	assert.Contains(t, page, "Add user</h2>", "modal stays open")
}

func TestPage_BusyWhileSubmitting(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)
	b := &browser{t: t, env: e}
	b.get("/users/new")
	sid := b.sid

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	e.store.Fail = func(op string) error {
		if op == "create" {
			once.Do(func() { close(started) })
			<-release
		}
		return nil
	}

	body, ct := userForm(t, validUserFields(), nil, "")
	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/users/new", body)
		req.Header.Set("Content-Type", ct)
		req.AddCookie(sid)
		done <- e.do(req).Code
	}()
	<-started

	w := b.post("/users/new/cancel", url.Values{})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "still in progress")

	w = b.get("/users/new")
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	assert.Equal(t, http.StatusSeeOther, <-done)
	assert.Contains(t, b.get("/").Body.String(), "Bruce Lee")
}

func TestPage_DeleteConfirmation(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)
	b := &browser{t: t, env: e}
	b.get("/")

	w := b.get("/users/" + chenID + "/delete")
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = b.post("/users/"+chenID+"/delete/confirm", url.Values{"confirm": {"chen mei"}, "live": {"1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"can_submit":false}`, w.Body.String())

	b.post("/users/"+chenID+"/delete", url.Values{})
	assert.Zero(t, e.store.Calls("delete"))
	assert.Contains(t, b.get("/").Body.String(), "name exactly to confirm.")

	w = b.post("/users/"+chenID+"/delete/confirm", url.Values{"confirm": {"Chen Mei"}, "live": {"1"}})
	assert.JSONEq(t, `{"can_submit":true}`, w.Body.String())

	b.post("/users/"+chenID+"/delete", url.Values{"confirm": {"Chen Mei"}})
	assert.Equal(t, 1, e.store.Calls("delete"))
	assert.NotContains(t, b.get("/view").Body.String(), "Chen Mei")
}

func TestPage_EditUnknownUser(t *testing.T) {
	e := newTestEnv(t, seedUsers()...)
	b := &browser{t: t, env: e}

	w := b.get("/users/nope/edit")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPage_Paging(t *testing.T) {
	var many []models.User
	for i := 0; i < 8; i++ {
		many = append(many, models.User{
			ID:          "id-" + string(rune('a'+i)),
			Name:        "Person " + string(rune('A'+i)),
			PhoneNumber: "091111111" + string(rune('0'+i)),
		})
	}
	e := newTestEnv(t, many...)
	b := &browser{t: t, env: e}

	first := b.get("/").Body.String()
	assert.Contains(t, first, "Person F")
	assert.NotContains(t, first, "Person G")

	b.post("/page", url.Values{"n": {"2"}})
	second := b.get("/view").Body.String()
	assert.Contains(t, second, "Person G")
	assert.NotContains(t, second, "Person A")

	w := b.post("/page", url.Values{"n": {"x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaticDefaultAvatar(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(httptest.NewRequest(http.MethodGet, DefaultAvatarURL, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}
