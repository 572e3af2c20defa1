package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nourabuild/user-directory/internal/sdk/debounce"
	"github.com/nourabuild/user-directory/internal/sdk/models"
	"github.com/nourabuild/user-directory/internal/sdk/pager"
	"github.com/nourabuild/user-directory/internal/sdk/search"
)

// SearchDelay is the pause in typing after which a search term is evaluated.
const SearchDelay = 300 * time.Millisecond

// FetchErrorMessage replaces the whole list when the fetch fails.
const FetchErrorMessage = "Could not load users. Please reload the page to try again."

var ErrInvalidMode = errors.New("invalid display mode")

// Mode is how the current page is rendered.
type Mode string

const (
	ModeCard  Mode = "card"
	ModeTable Mode = "table"
)

func (m Mode) Valid() bool { return m == ModeCard || m == ModeTable }

// Lister fetches the complete users table.
type Lister interface {
	List(ctx context.Context) ([]models.User, error)
}

// Row is a user ready to render.
type Row struct {
	models.User
	Avatar string
}

// View is an immutable snapshot of the controller for rendering.
type View struct {
	Mode    Mode
	Term    string
	Rows    []Row
	Nav     pager.Nav
	Matched int
	Total   int
	Loaded  bool
	Err     string
}

// Controller owns the fetched list, the filtered list and the query state of
// one browser session. Requests and the search timer may call it from
// different goroutines; every mutation happens under mu.
type Controller struct {
	src           Lister
	defaultAvatar string
	logger        *slog.Logger
	debounce      *debounce.Debouncer
	searchFn      func(all []models.User, term string) []models.User

	mu       sync.Mutex
	allUsers []models.User
	users    []models.User
	mode     Mode
	page     int
	term     string
	loaded   bool
	fetchErr error
}

func NewController(src Lister, defaultAvatar string, logger *slog.Logger) *Controller {
	return &Controller{
		src:           src,
		defaultAvatar: defaultAvatar,
		logger:        logger,
		debounce:      debounce.New(SearchDelay),
		searchFn:      fuzzy,
		mode:          ModeCard,
		page:          1,
	}
}

func fuzzy(all []models.User, term string) []models.User {
	return search.New(all).Search(term)
}

// Mount performs the initial fetch.
func (c *Controller) Mount(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh refetches the whole table. Term, page and any pending search are
// dropped. A failure replaces the view with a single error.
func (c *Controller) Refresh(ctx context.Context) error {
	c.debounce.Stop()

	all, err := c.src.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.term = ""
	c.page = 1
	c.loaded = true
	if err != nil {
		c.logger.Error("fetching users", "error", err)
		c.fetchErr = err
		c.allUsers = nil
		c.users = nil
		return err
	}

	c.fetchErr = nil
	c.allUsers = all
	c.users = all
	return nil
}

// Type records a keystroke. The term is evaluated once typing pauses for
// SearchDelay; earlier pending terms are discarded.
//
// The term and its pending evaluation are replaced together, so the last
// term written is always the one that gets evaluated.
func (c *Controller) Type(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.term = term
	c.debounce.Trigger(func() { c.apply(term) })
}

func (c *Controller) apply(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A refresh or a newer keystroke got here first.
	if term != c.term || c.fetchErr != nil {
		return
	}

	if strings.TrimSpace(term) == "" {
		c.users = c.allUsers
	} else {
		c.users = c.searchFn(c.allUsers, term)
	}
	c.page = 1
}

// SetPage moves to page n, kept within the available pages.
func (c *Controller) SetPage(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = pager.Clamp(n, pager.Count(len(c.users), pager.PageSize))
}

func (c *Controller) SetMode(m Mode) error {
	if !m.Valid() {
		return ErrInvalidMode
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	return nil
}

// Closed is the signal a modal sends when it closes.
func (c *Controller) Closed(ctx context.Context, shouldRefresh bool) error {
	if !shouldRefresh {
		return nil
	}
	return c.Refresh(ctx)
}

// Find looks a user up in the fetched list.
func (c *Controller) Find(id string) (models.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.allUsers {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

// Snapshot renders the current state, leaving any pending search pending.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Mode:   c.mode,
		Term:   c.term,
		Loaded: c.loaded,
	}
	if c.fetchErr != nil {
		v.Err = FetchErrorMessage
		return v
	}

	pages := pager.Count(len(c.users), pager.PageSize)
	page := pager.Clamp(c.page, pages)
	slice := pager.Slice(c.users, page, pager.PageSize)

	v.Rows = make([]Row, len(slice))
	for i, u := range slice {
		v.Rows[i] = Row{User: u, Avatar: u.Avatar(c.defaultAvatar)}
	}
	v.Nav = pager.NewNav(page, pages)
	v.Matched = len(c.users)
	v.Total = len(c.allUsers)
	return v
}

// SnapshotSettled evaluates a pending search first.
func (c *Controller) SnapshotSettled() View {
	c.debounce.Flush()
	return c.Snapshot()
}

// Close drops any pending search.
func (c *Controller) Close() {
	c.debounce.Stop()
}
