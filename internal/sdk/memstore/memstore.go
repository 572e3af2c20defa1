// Package memstore provides in-memory users table and avatars bucket
// implementations with failure injection, for tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nourabuild/user-directory/internal/sdk/models"
	"github.com/nourabuild/user-directory/internal/sdk/sqldb"
	"github.com/nourabuild/user-directory/internal/services/minio"
)

// Users mimics sqldb.Service for the users table, including the unique
// phone_number constraint.
type Users struct {
	mu    sync.Mutex
	rows  []models.User
	calls map[string]int

	// Fail, when set, is consulted before each operation; a non-nil return
	// fails the call.
	Fail func(op string) error
}

func NewUsers(seed ...models.User) *Users {
	rows := make([]models.User, len(seed))
	copy(rows, seed)
	return &Users{rows: rows, calls: map[string]int{}}
}

// Calls returns how many times op was invoked.
func (m *Users) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Users) enter(op string) error {
	m.calls[op]++
	if m.Fail != nil {
		return m.Fail(op)
	}
	return nil
}

func (m *Users) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("list"); err != nil {
		return nil, err
	}
	out := make([]models.User, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *Users) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("get"); err != nil {
		return models.User{}, err
	}
	if i := m.index(userID); i >= 0 {
		return m.rows[i], nil
	}
	return models.User{}, sqldb.ErrDBNotFound
}

func (m *Users) CreateUser(ctx context.Context, nu models.NewUser) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("create"); err != nil {
		return models.User{}, err
	}
	if m.phoneTaken(nu.PhoneNumber, "") {
		return models.User{}, fmt.Errorf("creating user: %w", sqldb.ErrDBDuplicatedEntry)
	}
	u := models.User{
		ID:          uuid.NewString(),
		Name:        nu.Name,
		Gender:      nu.Gender,
		Birthday:    nu.Birthday,
		Occupation:  nu.Occupation,
		PhoneNumber: nu.PhoneNumber,
		AvatarURL:   nu.AvatarURL,
		CreatedAt:   time.Now(),
	}
	m.rows = append(m.rows, u)
	return u, nil
}

func (m *Users) UpdateUser(ctx context.Context, userID string, uu models.UpdateUser) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("update"); err != nil {
		return models.User{}, err
	}
	i := m.index(userID)
	if i < 0 {
		return models.User{}, sqldb.ErrDBNotFound
	}
	if m.phoneTaken(uu.PhoneNumber, userID) {
		return models.User{}, fmt.Errorf("updating user: %w", sqldb.ErrDBDuplicatedEntry)
	}
	u := m.rows[i]
	u.Name = uu.Name
	u.Gender = uu.Gender
	u.Birthday = uu.Birthday
	u.Occupation = uu.Occupation
	u.PhoneNumber = uu.PhoneNumber
	u.AvatarURL = uu.AvatarURL
	m.rows[i] = u
	return u, nil
}

func (m *Users) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("delete"); err != nil {
		return err
	}
	i := m.index(userID)
	if i < 0 {
		return sqldb.ErrDBNotFound
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	return nil
}

func (m *Users) index(id string) int {
	for i, u := range m.rows {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (m *Users) phoneTaken(phone, exceptID string) bool {
	for _, u := range m.rows {
		if u.PhoneNumber == phone && u.ID != exceptID {
			return true
		}
	}
	return false
}

// ErrInjected is a convenient failure for Fail hooks.
var ErrInjected = errors.New("injected failure")

// Bucket mimics the avatars bucket.
type Bucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	// Fail, when set, is consulted before each operation ("upload", "delete").
	Fail func(op string) error
}

const bucketBase = "http://storage.test/avatars/"

func NewBucket() *Bucket {
	return &Bucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *Bucket) UploadWithVariants(ctx context.Context, objectName string, reader io.Reader, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail != nil {
		if err := b.Fail("upload"); err != nil {
			return err
		}
	}
	if _, ok := b.objects[objectName]; ok {
		return fmt.Errorf("object already exists: %s", objectName)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	b.objects[objectName] = data
	b.types[objectName] = contentType
	return nil
}

func (b *Bucket) DeleteWithVariants(ctx context.Context, objectName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail != nil {
		if err := b.Fail("delete"); err != nil {
			return err
		}
	}
	delete(b.objects, objectName)
	delete(b.types, objectName)
	return nil
}

func (b *Bucket) GetPublicURL(objectName string) string {
	return bucketBase + objectName
}

func (b *Bucket) ObjectNameFromURL(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, bucketBase) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, bucketBase), true
}

// VariantURLs follows the avatars bucket's naming for resized copies.
func (b *Bucket) VariantURLs(avatarURL string) map[string]string {
	name, ok := b.ObjectNameFromURL(avatarURL)
	if !ok {
		return nil
	}
	urls := make(map[string]string, len(minio.Sizes))
	for _, size := range minio.Sizes {
		urls[string(size)] = b.GetPublicURL(minio.VariantObjectName(name, size))
	}
	return urls
}

// Objects returns the stored object names.
func (b *Bucket) Objects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.objects))
	for n := range b.objects {
		names = append(names, n)
	}
	return names
}

// ContentType returns the stored MIME type of objectName.
func (b *Bucket) ContentType(objectName string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.types[objectName]
}
