package app

import (
	"context"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/nourabuild/user-directory/internal/sdk/models"
	"github.com/nourabuild/user-directory/internal/services/jwt"
	"github.com/nourabuild/user-directory/internal/services/sentry"
	"github.com/nourabuild/user-directory/internal/ui"
)

// UserService is the record store as seen by the handlers.
type UserService interface {
	ui.Users
	Get(ctx context.Context, id string) (models.User, error)
}

// DBHealth reports on the users table connection.
type DBHealth interface {
	Health() map[string]string
}

// BucketHealth reports on the avatars bucket.
type BucketHealth interface {
	Health(ctx context.Context) map[string]string
}

// AvatarVariants links the resized copies of a stored avatar.
type AvatarVariants interface {
	VariantURLs(avatarURL string) map[string]string
}

type Config struct {
	Logger           *slog.Logger
	DB               DBHealth
	Bucket           BucketHealth
	Users            UserService
	Variants         AvatarVariants // optional
	Sentry           *sentry.SentryService
	Tokens           *jwt.TokenService
	Redis            *redis.Client // optional; enables the API rate limit
	RateLimit        int           // requests per minute per IP
	DefaultAvatarURL string
}

type App struct {
	logger        *slog.Logger
	db            DBHealth
	bucket        BucketHealth
	users         UserService
	variants      AvatarVariants
	sentry        *sentry.SentryService
	tokens        *jwt.TokenService
	redis         *redis.Client
	rateLimit     int
	defaultAvatar string
	sessions      *ui.Sessions
}

func NewApp(cfg Config) *App {
	a := &App{
		logger:        cfg.Logger,
		db:            cfg.DB,
		bucket:        cfg.Bucket,
		users:         cfg.Users,
		variants:      cfg.Variants,
		sentry:        cfg.Sentry,
		tokens:        cfg.Tokens,
		redis:         cfg.Redis,
		rateLimit:     cfg.RateLimit,
		defaultAvatar: cfg.DefaultAvatarURL,
	}
	if a.defaultAvatar == "" {
		a.defaultAvatar = DefaultAvatarURL
	}
	if a.rateLimit <= 0 {
		a.rateLimit = defaultRateLimit
	}
	a.sessions = ui.NewSessions(sessionTTL, func(id string) *ui.Session {
		return ui.NewSession(id, a.users, a.defaultAvatar, a.logger)
	})
	return a
}

// RunJanitor evicts idle UI sessions until ctx is done.
func (a *App) RunJanitor(ctx context.Context) {
	a.sessions.Run(ctx, sessionSweepInterval, a.logger)
}
