// Package users performs the remote side of the add, update and delete
// flows: validation, avatar upload and the row write.
package users

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nourabuild/user-directory/internal/sdk/models"
	"github.com/nourabuild/user-directory/internal/sdk/sqldb"
	"github.com/nourabuild/user-directory/internal/sdk/validate"
)

var (
	// ErrPhoneTaken is the store's unique violation on phone_number.
	ErrPhoneTaken = errors.New("phone number already registered")
	// ErrNotFound means the user id does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrRemote covers any other store or bucket failure.
	ErrRemote = errors.New("remote operation failed")
)

// Store is the users table.
type Store interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	CreateUser(ctx context.Context, user models.NewUser) (models.User, error)
	UpdateUser(ctx context.Context, userID string, user models.UpdateUser) (models.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// Bucket is the avatars bucket.
type Bucket interface {
	UploadWithVariants(ctx context.Context, objectName string, reader io.Reader, contentType string) error
	DeleteWithVariants(ctx context.Context, objectName string) error
	GetPublicURL(objectName string) string
	ObjectNameFromURL(rawURL string) (string, bool)
}

// Avatar is an uploaded image not yet stored.
type Avatar struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Input is a user as submitted by a form.
type Input struct {
	Name        string
	Gender      models.Gender
	Birthday    string
	Occupation  models.Occupation
	PhoneNumber string
	Avatar      *Avatar
}

func (in Input) fields() validate.UserInput {
	return validate.UserInput{
		Name:        in.Name,
		Gender:      in.Gender,
		Birthday:    in.Birthday,
		Occupation:  in.Occupation,
		PhoneNumber: in.PhoneNumber,
	}
}

type Service struct {
	store  Store
	bucket Bucket
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, bucket Bucket, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		bucket: bucket,
		logger: logger,
		now:    time.Now,
	}
}

// List returns the whole table in store order.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	return users, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, mapStoreError(err)
	}
	return user, nil
}

// Create validates in, uploads the avatar if any, then inserts the row. When
// the insert fails the freshly uploaded avatar is removed again.
func (s *Service) Create(ctx context.Context, in Input) (models.User, error) {
	data, ext, err := s.check(in)
	if err != nil {
		return models.User{}, err
	}

	var avatarURL *string
	objectName := ""
	if in.Avatar != nil {
		objectName, err = s.upload(ctx, in.Avatar, data, ext)
		if err != nil {
			return models.User{}, err
		}
		u := s.bucket.GetPublicURL(objectName)
		avatarURL = &u
	}

	user, err := s.store.CreateUser(ctx, models.NewUser{
		Name:        in.Name,
		Gender:      in.Gender,
		Birthday:    in.Birthday,
		Occupation:  in.Occupation,
		PhoneNumber: validate.NormalizePhone(in.PhoneNumber),
		AvatarURL:   avatarURL,
	})
	if err != nil {
		s.discard(ctx, objectName, "create_user")
		return models.User{}, mapStoreError(err)
	}

	s.logger.Info("user created", "user_id", user.ID, "avatar", avatarURL != nil)
	return user, nil
}

// Update validates in and overwrites the user. Without a new avatar the
// existing one is kept; a replaced avatar is removed from the bucket.
func (s *Service) Update(ctx context.Context, id string, in Input) (models.User, error) {
	data, ext, err := s.check(in)
	if err != nil {
		return models.User{}, err
	}

	current, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, mapStoreError(err)
	}

	avatarURL := current.AvatarURL
	objectName := ""
	if in.Avatar != nil {
		objectName, err = s.upload(ctx, in.Avatar, data, ext)
		if err != nil {
			return models.User{}, err
		}
		u := s.bucket.GetPublicURL(objectName)
		avatarURL = &u
	}

	user, err := s.store.UpdateUser(ctx, id, models.UpdateUser{
		Name:        in.Name,
		Gender:      in.Gender,
		Birthday:    in.Birthday,
		Occupation:  in.Occupation,
		PhoneNumber: validate.NormalizePhone(in.PhoneNumber),
		AvatarURL:   avatarURL,
	})
	if err != nil {
		s.discard(ctx, objectName, "update_user")
		return models.User{}, mapStoreError(err)
	}

	if objectName != "" {
		s.discardURL(ctx, current.AvatarURL, "update_user")
	}

	s.logger.Info("user updated", "user_id", user.ID)
	return user, nil
}

// Delete removes the row and then, best effort, its avatar.
func (s *Service) Delete(ctx context.Context, id string) error {
	current, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return mapStoreError(err)
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		return mapStoreError(err)
	}

	s.discardURL(ctx, current.AvatarURL, "delete_user")
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// check runs every local rule and buffers the avatar so its real size is
// known before anything is sent.
func (s *Service) check(in Input) ([]byte, string, error) {
	if verr := validate.User(in.fields()); verr != nil {
		return nil, "", verr
	}
	if in.Avatar == nil {
		return nil, "", nil
	}

	ext, verr := validate.AvatarFile(validate.Avatar{
		Filename:    in.Avatar.Filename,
		ContentType: in.Avatar.ContentType,
		Size:        in.Avatar.Size,
	})
	if verr != nil {
		return nil, "", verr
	}

	data, err := io.ReadAll(io.LimitReader(in.Avatar.Body, validate.MaxAvatarBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading avatar: %w", ErrRemote, err)
	}
	if _, verr := validate.AvatarFile(validate.Avatar{
		ContentType: in.Avatar.ContentType,
		Size:        int64(len(data)),
	}); verr != nil {
		return nil, "", verr
	}
	return data, ext, nil
}

func (s *Service) upload(ctx context.Context, a *Avatar, data []byte, ext string) (string, error) {
	objectName := fmt.Sprintf("%s_%d%s", uuid.NewString(), s.now().UnixMilli(), ext)
	if err := s.bucket.UploadWithVariants(ctx, objectName, bytes.NewReader(data), a.ContentType); err != nil {
		return "", fmt.Errorf("%w: uploading avatar: %w", ErrRemote, err)
	}
	return objectName, nil
}

func (s *Service) discard(ctx context.Context, objectName, operation string) {
	if objectName == "" {
		return
	}
	if err := s.bucket.DeleteWithVariants(ctx, objectName); err != nil {
		s.logger.Warn("avatar cleanup failed", "operation", operation, "object", objectName, "error", err)
	}
}

func (s *Service) discardURL(ctx context.Context, avatarURL *string, operation string) {
	if avatarURL == nil {
		return
	}
	if name, ok := s.bucket.ObjectNameFromURL(*avatarURL); ok {
		s.discard(ctx, name, operation)
	}
}

func mapStoreError(err error) error {
	switch {
	case sqldb.IsDuplicateEntry(err):
		return fmt.Errorf("%w: %w", ErrPhoneTaken, err)
	case sqldb.IsNotFound(err):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %w", ErrRemote, err)
	}
}
