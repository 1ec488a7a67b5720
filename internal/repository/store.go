// Package repository is the authoritative relational store for users,
// invitations, friend edges, notifications and messages. It runs on Postgres
// in production and on SQLite in tests through the same query text.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type Store struct {
	db         *sql.DB
	driverName string
}

func New(driverName, dataSourceName string) (*Store, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	s := &Store{db: db, driverName: driverName}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Helper to handle placeholders across drivers.
func (s *Store) rebind(query string) string {
	if s.driverName == "postgres" {
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

// forUpdate returns the row-lock clause. SQLite serializes writers at the
// database level, so the clause is only emitted for Postgres.
func (s *Store) forUpdate() string {
	if s.driverName == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertID runs an INSERT and reports the generated id. lib/pq has no
// LastInsertId, so Postgres goes through RETURNING.
func (s *Store) insertID(ctx context.Context, q execQuerier, query string, args ...any) (int64, error) {
	if s.driverName == "postgres" {
		var id int64
		err := q.QueryRowContext(ctx, s.rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := q.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
