package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// CreateUser inserts a user named username with a derived email address.
func CreateUser(t *testing.T, s store.UserStore, username string) *model.User {
	t.Helper()

	u := &model.User{Username: username, Email: fmt.Sprintf("%s@example.com", username)}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
	return u
}

// Hours returns a pointer to h, for optional hour fields.
func Hours(h int) *int {
	return &h
}
