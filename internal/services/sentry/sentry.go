// Package sentry reports failed user-directory operations to Sentry.
package sentry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

type Level = sentry.Level

const (
	LevelWarning = sentry.LevelWarning
	LevelError   = sentry.LevelError
)

// Event describes where a failure happened.
type Event struct {
	Operation string // e.g. "create_user"
	Stage     string // e.g. "upload", "db"
	RequestID string
	Level     Level
}

// SentryService is a no-op when SENTRY_DSN is unset.
type SentryService struct {
	initialized bool
	logger      *slog.Logger
}

func NewSentryService(logger *slog.Logger) *SentryService {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		logger.Info("SENTRY_DSN not set, Sentry disabled")
		return &SentryService{logger: logger}
	}

	environment := os.Getenv("SENTRY_ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		TracesSampleRate: 1.0,
		EnableTracing:    true,
	})
	if err != nil {
		logger.Error("sentry initialization failed", "error", err)
		return &SentryService{logger: logger}
	}

	logger.Info("sentry initialized", "environment", environment)
	return &SentryService{initialized: true, logger: logger}
}

// Report logs err and, when enabled, captures it with the event tags.
func (s *SentryService) Report(ev Event, err error) {
	if ev.Level == "" {
		ev.Level = LevelError
	}
	s.logger.Log(context.Background(), slogLevel(ev.Level), "operation failed",
		"operation", ev.Operation,
		"stage", ev.Stage,
		"request_id", ev.RequestID,
		"error", err,
	)

	if !s.initialized {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", ev.Operation)
		scope.SetTag("stage", ev.Stage)
		if ev.RequestID != "" {
			scope.SetTag("request_id", ev.RequestID)
		}
		scope.SetLevel(ev.Level)
		sentry.CaptureException(err)
	})
}

// Flush waits for all events to be sent to Sentry
func (s *SentryService) Flush(timeout time.Duration) bool {
	if !s.initialized {
		return true
	}
	return sentry.Flush(timeout)
}

// Close flushes pending events
func (s *SentryService) Close() {
	s.Flush(2 * time.Second)
}

func slogLevel(l Level) slog.Level {
	if l == LevelWarning {
		return slog.LevelWarn
	}
	return slog.LevelError
}
