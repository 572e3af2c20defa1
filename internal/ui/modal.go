// Package ui holds the per-session state behind the user directory page: the
// list view controller and the add, update and delete modals.
package ui

import "errors"

var (
	ErrBusy        = errors.New("submission in progress")
	ErrModalClosed = errors.New("modal is not open")
)

// State is the single tagged state of a modal.
type State int

const (
	StateClosed State = iota
	StateEditing
	StateSubmitting
	StateError
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateError:
		return "error"
	default:
		return "closed"
	}
}

// Modal tracks one dialog. The zero value is closed. It is not safe for
// concurrent use; forms guard it with their own lock.
type Modal struct {
	state State
	err   error
}

func (m *Modal) State() State { return m.state }

// Err is the failure shown while in StateError.
func (m *Modal) Err() error { return m.err }

// Open moves a closed or idle modal to editing and clears any error.
func (m *Modal) Open() error {
	if m.state == StateSubmitting {
		return ErrBusy
	}
	m.state = StateEditing
	m.err = nil
	return nil
}

// Begin starts a submission. Input and the submit control are disabled
// until Fail or Succeed.
func (m *Modal) Begin() error {
	switch m.state {
	case StateEditing, StateError:
		m.state = StateSubmitting
		m.err = nil
		return nil
	case StateSubmitting:
		return ErrBusy
	default:
		return ErrModalClosed
	}
}

// Fail returns a submitting modal to editing with err displayed.
func (m *Modal) Fail(err error) {
	if m.state != StateSubmitting {
		return
	}
	m.state = StateError
	m.err = err
}

// Succeed closes a submitting modal. The returned shouldRefresh is true when
// a submission actually completed.
func (m *Modal) Succeed() bool {
	if m.state != StateSubmitting {
		return false
	}
	m.state = StateClosed
	m.err = nil
	return true
}

// Cancel closes the modal without a refresh. In-flight submissions are not
// cancelled, so a submitting modal refuses.
func (m *Modal) Cancel() error {
	if m.state == StateSubmitting {
		return ErrBusy
	}
	m.state = StateClosed
	m.err = nil
	return nil
}

// Editable reports whether input and submit are enabled.
func (m *Modal) Editable() bool {
	return m.state == StateEditing || m.state == StateError
}
