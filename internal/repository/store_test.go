package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"pairchat/internal/model"
)

// newTestStore opens a uniquely named shared in-memory SQLite database so
// the connection pool sees one schema.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := New("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, first, last string) *model.User {
	t.Helper()
	u := &model.User{
		FirstName: first,
		LastName:  last,
		Email:     fmt.Sprintf("%s.%s.%s@example.com", first, last, uuid.NewString()[:8]),
		Password:  "hashed-password",
		PublicKey: "pub-" + first,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", first, err)
	}
	return u
}
