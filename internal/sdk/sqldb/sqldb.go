// Package sqldb provides database operations for the user directory.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	"github.com/nourabuild/user-directory/internal/sdk/models"
)

// lib/pq errorCodeNames
// https://github.com/lib/pq/blob/master/error.go#L178
const (
	uniqueViolation  = "23505"
	checkViolation   = "23514"
	notNullViolation = "23502"
)

var (
	ErrDBNotFound        = sql.ErrNoRows
	ErrDBDuplicatedEntry = errors.New("duplicated entry")
	ErrCheckViolation    = errors.New("check constraint violation")
	ErrNotNullViolation  = errors.New("not null violation")
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error

	// EnsureSchema creates the users table when it does not exist.
	EnsureSchema(ctx context.Context) error

	// User operations
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	CreateUser(ctx context.Context, user models.NewUser) (models.User, error)
	UpdateUser(ctx context.Context, userID string, user models.UpdateUser) (models.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

type service struct {
	db *sql.DB
}

var (
	database   = os.Getenv("BLUEPRINT_DB_DATABASE")
	password   = os.Getenv("BLUEPRINT_DB_PASSWORD")
	username   = os.Getenv("BLUEPRINT_DB_USERNAME")
	port       = os.Getenv("BLUEPRINT_DB_PORT")
	host       = os.Getenv("BLUEPRINT_DB_HOST")
	schema     = os.Getenv("BLUEPRINT_DB_SCHEMA")
	dbInstance *service
)

func New() Service {
	// Reuse Connection
	if dbInstance != nil {
		return dbInstance
	}
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s", username, password, host, port, database, schema)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatal(err)
	}
	dbInstance = &service{
		db: db,
	}
	return dbInstance
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sql.DB) Service {
	return &service{db: db}
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	err := s.db.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	log.Printf("Disconnected from database: %s", database)
	return s.db.Close()
}

// ---------------------------------------------
// Schema
// ---------------------------------------------

const createUsersTable = `
	CREATE TABLE IF NOT EXISTS users (
		id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name         TEXT NOT NULL,
		gender       TEXT NOT NULL CHECK (gender IN ('male', 'female', 'other')),
		birthday     TEXT NOT NULL,
		occupation   TEXT NOT NULL CHECK (occupation IN ('student', 'engineer', 'teacher', 'doctor', 'other')),
		phone_number TEXT NOT NULL UNIQUE,
		avatar_url   TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`

// EnsureSchema creates the users table for local development.
func (s *service) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	return nil
}

// ---------------------------------------------
// SQL Commands
// ---------------------------------------------

const userColumns = `id, name, gender, birthday, occupation, phone_number, avatar_url, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user   models.User
		avatar sql.NullString
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Gender,
		&user.Birthday,
		&user.Occupation,
		&user.PhoneNumber,
		&avatar,
		&user.CreatedAt,
	)
	if err != nil {
		return models.User{}, err
	}
	user.AvatarURL = StringPtr(avatar)
	return user, nil
}

// ListUsers retrieves the whole users table in store order
func (s *service) ListUsers(ctx context.Context) ([]models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	return users, nil
}

// GetUserByID retrieves a user by their ID
func (s *service) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("selecting user: %w", err)
	}

	return user, nil
}

// CreateUser inserts a new user into the database
func (s *service) CreateUser(ctx context.Context, nu models.NewUser) (models.User, error) {
	const query = `
		INSERT INTO users (name, gender, birthday, occupation, phone_number, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		nu.Name,
		nu.Gender,
		nu.Birthday,
		nu.Occupation,
		nu.PhoneNumber,
		NullString(nu.AvatarURL),
	))
	if err != nil {
		return models.User{}, fmt.Errorf("creating user: %w", mapWriteError(err))
	}

	return user, nil
}

// UpdateUser overwrites the editable columns of a user
func (s *service) UpdateUser(ctx context.Context, userID string, uu models.UpdateUser) (models.User, error) {
	const query = `
		UPDATE users
		SET name = $2,
		    gender = $3,
		    birthday = $4,
		    occupation = $5,
		    phone_number = $6,
		    avatar_url = $7
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		userID,
		uu.Name,
		uu.Gender,
		uu.Birthday,
		uu.Occupation,
		uu.PhoneNumber,
		NullString(uu.AvatarURL),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("updating user: %w", mapWriteError(err))
	}

	return user, nil
}

// DeleteUser removes a user by ID
func (s *service) DeleteUser(ctx context.Context, userID string) error {
	const query = `
		DELETE FROM users
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrDBNotFound
	}

	return nil
}

// ---------------------------------------------
// Helpers
// ---------------------------------------------

// mapWriteError translates constraint violations into package errors while
// keeping the driver error in the chain.
func mapWriteError(err error) error {
	switch {
	case isPgError(err, uniqueViolation):
		return fmt.Errorf("%w: %w", ErrDBDuplicatedEntry, err)
	case isPgError(err, checkViolation):
		return fmt.Errorf("%w: %w", ErrCheckViolation, err)
	case isPgError(err, notNullViolation):
		return fmt.Errorf("%w: %w", ErrNotNullViolation, err)
	}
	return err
}

// isPgError checks if the error is a PostgreSQL error with the given code
func isPgError(err error, code string) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == code
	}
	return false
}

// NullString creates a sql.NullString from a string pointer.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// StringPtr returns a pointer to a string from sql.NullString.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDBNotFound)
}

// IsDuplicateEntry checks if the error is a duplicate entry error.
func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDBDuplicatedEntry) || isPgError(err, uniqueViolation)
}
