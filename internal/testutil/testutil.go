// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cesdash/cesdash/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// DiscardLogger returns a logger that drops all output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestTicket creates a normalized ticket with sensible defaults.
func NewTestTicket(t testing.TB, id string, score *int, createdAt time.Time) model.Ticket {
	t.Helper()
	return model.Ticket{
		ID:          id,
		Subject:     "Test ticket " + id,
		Description: "Created by tests",
		Status:      model.StatusOpen,
		Priority:    model.PriorityNormal,
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   createdAt.UTC(),
		Requester: model.Requester{
			ID:    "user-" + id,
			Name:  "Requester " + id,
			Email: fmt.Sprintf("requester-%s@example.com", id),
		},
		CESScore: score,
		Tags:     []string{},
		Channel:  model.ChannelWeb,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
