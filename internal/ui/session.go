package ui

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nourabuild/user-directory/internal/services/users"
)

// Session is the directory page state of one browser.
type Session struct {
	ID     string
	List   *Controller
	Add    *AddForm
	Edit   *UpdateForm
	Remove *DeleteForm
}

func NewSession(id string, svc Users, defaultAvatar string, logger *slog.Logger) *Session {
	return &Session{
		ID:     id,
		List:   NewController(svc, defaultAvatar, logger.With("session", id)),
		Add:    NewAddForm(svc),
		Edit:   NewUpdateForm(svc),
		Remove: NewDeleteForm(svc),
	}
}

// SubmitAdd runs the add form and passes its close signal to the list.
func (s *Session) SubmitAdd(ctx context.Context, fields Fields, avatar *users.Avatar) error {
	refresh, err := s.Add.Submit(ctx, fields, avatar)
	if err != nil {
		return err
	}
	s.closed(ctx, refresh)
	return nil
}

func (s *Session) SubmitEdit(ctx context.Context, fields Fields, avatar *users.Avatar) error {
	refresh, err := s.Edit.Submit(ctx, fields, avatar)
	if err != nil {
		return err
	}
	s.closed(ctx, refresh)
	return nil
}

func (s *Session) SubmitRemove(ctx context.Context) error {
	refresh, err := s.Remove.Submit(ctx)
	if err != nil {
		return err
	}
	s.closed(ctx, refresh)
	return nil
}

// A failed refresh is already on the list view; the mutation itself succeeded.
func (s *Session) closed(ctx context.Context, refresh bool) {
	_ = s.List.Closed(ctx, refresh)
}

// Sessions is an in-memory registry of sessions evicted after ttl idle.
type Sessions struct {
	ttl     time.Duration
	factory func(id string) *Session
	now     func() time.Time

	mu    sync.Mutex
	items map[string]*sessionEntry
}

type sessionEntry struct {
	session *Session
	seen    time.Time
}

func NewSessions(ttl time.Duration, factory func(id string) *Session) *Sessions {
	return &Sessions{
		ttl:     ttl,
		factory: factory,
		now:     time.Now,
		items:   make(map[string]*sessionEntry),
	}
}

// Get returns a live session and marks it used.
func (r *Sessions) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.Sub(e.seen) > r.ttl {
		delete(r.items, id)
		e.session.List.Close()
		return nil, false
	}
	e.seen = now
	return e.session, true
}

// Create starts a session under a fresh id.
func (r *Sessions) Create() *Session {
	s := r.factory(uuid.NewString())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.ID] = &sessionEntry{session: s, seen: r.now()}
	return s
}

// Sweep evicts idle sessions and returns how many were removed.
func (r *Sessions) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, e := range r.items {
		if now.Sub(e.seen) > r.ttl {
			delete(r.items, id)
			e.session.List.Close()
			n++
		}
	}
	return n
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Run sweeps every interval until ctx is done.
func (r *Sessions) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Info("sessions evicted", "count", n, "live", r.Len())
			}
		}
	}
}
