// Package validate checks user-directory input before anything is sent to
// the record store.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/nourabuild/user-directory/internal/sdk/models"
)

// Error codes. The first failing rule in form order becomes Error.Code.
const (
	ErrMissingFields        = "missing_required_fields"
	ErrInvalidBirthday      = "invalid_birthday"
	ErrInvalidGender        = "invalid_gender"
	ErrInvalidOccupation    = "invalid_occupation"
	ErrInvalidPhone         = "invalid_phone_number"
	ErrAvatarTooLarge       = "avatar_too_large"
	ErrAvatarType           = "avatar_unsupported_type"
	ErrConfirmationMismatch = "confirmation_mismatch"
)

const (
	// MaxAvatarBytes is the upload cap for avatar images.
	MaxAvatarBytes = 3 * 1024 * 1024
	birthdayLayout = "2006-01-02"
)

var (
	mobilePattern = regexp.MustCompile(`^09\d{8}$`)
	phoneNoise    = regexp.MustCompile(`[\s-]`)

	allowedAvatarTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
	}
)

// Error is a validation failure; nothing remote has happened when it is returned.
type Error struct {
	Code    string
	Details map[string]string
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Details))
	for f := range e.Details {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %s (%s)", e.Code, strings.Join(fields, ", "))
}

// UserInput is the editable part of a user as typed into a form.
type UserInput struct {
	Name        string
	Gender      models.Gender
	Birthday    string
	Occupation  models.Occupation
	PhoneNumber string
}

// Avatar describes an uploaded file before it is read.
type Avatar struct {
	Filename    string
	ContentType string
	Size        int64
}

// NormalizePhone strips spaces and hyphens.
func NormalizePhone(phone string) string {
	return phoneNoise.ReplaceAllString(phone, "")
}

// Phone reports whether phone is a local mobile number once normalized.
func Phone(phone string) bool {
	return mobilePattern.MatchString(NormalizePhone(phone))
}

// User validates in with the same precedence as the form: required fields
// first, then formats.
func User(in UserInput) *Error {
	details := make(map[string]string)

	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "name_required"
	}
	if in.Birthday == "" {
		details["birthday"] = "birthday_required"
	}
	if strings.TrimSpace(in.PhoneNumber) == "" {
		details["phone_number"] = "phone_number_required"
	}
	if len(details) > 0 {
		return &Error{Code: ErrMissingFields, Details: details}
	}

	code := ""
	fail := func(field, reason, c string) {
		details[field] = reason
		if code == "" {
			code = c
		}
	}

	if !in.Gender.Valid() {
		fail("gender", "gender_invalid", ErrInvalidGender)
	}
	if _, err := time.Parse(birthdayLayout, in.Birthday); err != nil {
		fail("birthday", "birthday_invalid_date", ErrInvalidBirthday)
	}
	if !in.Occupation.Valid() {
		fail("occupation", "occupation_invalid", ErrInvalidOccupation)
	}
	if !Phone(in.PhoneNumber) {
		fail("phone_number", "phone_number_invalid", ErrInvalidPhone)
	}

	if code == "" {
		return nil
	}
	return &Error{Code: code, Details: details}
}

// AvatarFile checks the size cap and MIME allow-list and returns the file
// extension to store the object under.
func AvatarFile(a Avatar) (string, *Error) {
	if a.Size > MaxAvatarBytes {
		return "", &Error{Code: ErrAvatarTooLarge, Details: map[string]string{"avatar": "avatar_over_3mb"}}
	}
	ext, ok := allowedAvatarTypes[strings.ToLower(a.ContentType)]
	if !ok {
		return "", &Error{Code: ErrAvatarType, Details: map[string]string{"avatar": "avatar_jpeg_or_png_only"}}
	}
	return ext, nil
}

// DeleteConfirmation requires typed to equal name exactly.
func DeleteConfirmation(name, typed string) *Error {
	if typed != name {
		return &Error{Code: ErrConfirmationMismatch, Details: map[string]string{"confirm": "confirmation_must_match_name"}}
	}
	return nil
}
