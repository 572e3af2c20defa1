package ui

import (
	"context"
	"errors"
	"sync"

	"github.com/nourabuild/user-directory/internal/sdk/models"
	"github.com/nourabuild/user-directory/internal/sdk/validate"
	"github.com/nourabuild/user-directory/internal/services/users"
)

// Users is the remote side of the forms.
type Users interface {
	Lister
	Create(ctx context.Context, in users.Input) (models.User, error)
	Update(ctx context.Context, id string, in users.Input) (models.User, error)
	Delete(ctx context.Context, id string) error
}

// Fields are the editable values of the add and update forms.
type Fields struct {
	Name        string
	Gender      models.Gender
	Birthday    string
	Occupation  models.Occupation
	PhoneNumber string
}

// DefaultFields is a blank add form.
func DefaultFields() Fields {
	return Fields{Gender: models.GenderMale, Occupation: models.OccupationStudent}
}

// FieldsOf pre-fills a form from an existing user.
func FieldsOf(u models.User) Fields {
	return Fields{
		Name:        u.Name,
		Gender:      u.Gender,
		Birthday:    u.Birthday,
		Occupation:  u.Occupation,
		PhoneNumber: u.PhoneNumber,
	}
}

func (f Fields) input(avatar *users.Avatar) users.Input {
	return users.Input{
		Name:        f.Name,
		Gender:      f.Gender,
		Birthday:    f.Birthday,
		Occupation:  f.Occupation,
		PhoneNumber: f.PhoneNumber,
		Avatar:      avatar,
	}
}

// FormView is what a modal template needs.
type FormView struct {
	State     State
	Fields    Fields
	User      models.User
	Confirm   string
	CanSubmit bool
	Message   string
	Details   map[string]string
}

func (v FormView) Open() bool { return v.State != StateClosed }

func (v FormView) Submitting() bool { return v.State == StateSubmitting }

func formView(m *Modal, fields Fields) FormView {
	v := FormView{State: m.State(), Fields: fields, CanSubmit: m.Editable()}
	if err := m.Err(); err != nil {
		v.Message = Message(err)
		var verr *validate.Error
		if errors.As(err, &verr) {
			v.Details = verr.Details
		}
	}
	return v
}

// Message maps a submission failure to the text shown in the modal.
func Message(err error) string {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		if msg, ok := validationMessages[verr.Code]; ok {
			return msg
		}
		return "Please check the highlighted fields."
	case errors.Is(err, users.ErrPhoneTaken):
		return "This phone number is already registered."
	case errors.Is(err, users.ErrNotFound):
		return "This user no longer exists."
	default:
		return "Something went wrong. Please try again later."
	}
}

var validationMessages = map[string]string{
	validate.ErrMissingFields:        "Please fill in every required field.",
	validate.ErrInvalidBirthday:      "Birthday must be a valid date.",
	validate.ErrInvalidGender:        "Please choose a gender.",
	validate.ErrInvalidOccupation:    "Please choose an occupation.",
	validate.ErrInvalidPhone:         "Phone number must look like 0912345678.",
	validate.ErrAvatarTooLarge:       "Avatar must be 3MB or smaller.",
	validate.ErrAvatarType:           "Avatar must be a JPEG or PNG image.",
	validate.ErrConfirmationMismatch: "Type the user's name exactly to confirm.",
}

// AddForm creates a user.
type AddForm struct {
	svc Users

	mu     sync.Mutex
	modal  Modal
	fields Fields
}

func NewAddForm(svc Users) *AddForm {
	return &AddForm{svc: svc, fields: DefaultFields()}
}

func (f *AddForm) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.modal.Open(); err != nil {
		return err
	}
	f.fields = DefaultFields()
	return nil
}

// Submit creates the user and reports whether the list should refresh. The
// modal stays open with the error on failure.
func (f *AddForm) Submit(ctx context.Context, fields Fields, avatar *users.Avatar) (bool, error) {
	f.mu.Lock()
	if err := f.modal.Begin(); err != nil {
		f.mu.Unlock()
		return false, err
	}
	f.fields = fields
	f.mu.Unlock()

	_, err := f.svc.Create(ctx, fields.input(avatar))

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.modal.Fail(err)
		return false, err
	}
	return f.modal.Succeed(), nil
}

func (f *AddForm) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modal.Cancel()
}

func (f *AddForm) View() FormView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return formView(&f.modal, f.fields)
}

// UpdateForm edits the selected user.
type UpdateForm struct {
	svc Users

	mu     sync.Mutex
	modal  Modal
	user   models.User
	fields Fields
}

func NewUpdateForm(svc Users) *UpdateForm {
	return &UpdateForm{svc: svc}
}

func (f *UpdateForm) Open(u models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.modal.Open(); err != nil {
		return err
	}
	f.user = u
	f.fields = FieldsOf(u)
	return nil
}

// Submit overwrites the selected user. Without an avatar the current one
// is kept.
func (f *UpdateForm) Submit(ctx context.Context, fields Fields, avatar *users.Avatar) (bool, error) {
	f.mu.Lock()
	if err := f.modal.Begin(); err != nil {
		f.mu.Unlock()
		return false, err
	}
	f.fields = fields
	id := f.user.ID
	f.mu.Unlock()

	updated, err := f.svc.Update(ctx, id, fields.input(avatar))

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.modal.Fail(err)
		return false, err
	}
	f.user = updated
	return f.modal.Succeed(), nil
}

func (f *UpdateForm) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modal.Cancel()
}

func (f *UpdateForm) View() FormView {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := formView(&f.modal, f.fields)
	v.User = f.user
	return v
}

// DeleteForm removes the selected user once its name is typed back.
type DeleteForm struct {
	svc Users

	mu      sync.Mutex
	modal   Modal
	user    models.User
	confirm string
}

func NewDeleteForm(svc Users) *DeleteForm {
	return &DeleteForm{svc: svc}
}

func (f *DeleteForm) Open(u models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.modal.Open(); err != nil {
		return err
	}
	f.user = u
	f.confirm = ""
	return nil
}

// Confirm records the typed confirmation and reports whether submit is now
// enabled.
func (f *DeleteForm) Confirm(typed string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirm = typed
	return f.canSubmit()
}

// CanSubmit is true only while the typed text equals the user's name
// exactly, case and whitespace included.
func (f *DeleteForm) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmit()
}

func (f *DeleteForm) canSubmit() bool {
	return f.modal.Editable() && validate.DeleteConfirmation(f.user.Name, f.confirm) == nil
}

func (f *DeleteForm) Submit(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if err := f.modal.Begin(); err != nil {
		f.mu.Unlock()
		return false, err
	}
	if verr := validate.DeleteConfirmation(f.user.Name, f.confirm); verr != nil {
		f.modal.Fail(verr)
		f.mu.Unlock()
		return false, verr
	}
	id := f.user.ID
	f.mu.Unlock()

	err := f.svc.Delete(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.modal.Fail(err)
		return false, err
	}
	return f.modal.Succeed(), nil
}

func (f *DeleteForm) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modal.Cancel()
}

func (f *DeleteForm) View() FormView {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := formView(&f.modal, FieldsOf(f.user))
	v.User = f.user
	v.Confirm = f.confirm
	v.CanSubmit = f.canSubmit()
	return v
}
