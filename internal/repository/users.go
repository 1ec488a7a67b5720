package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pairchat/internal/model"
)

const userColumns = `id, first_name, last_name, email, password, avatar,
	public_key, encrypted_private_key, private_key_iv, private_key_salt, last_seen`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password,
		&u.Avatar, &u.PublicKey, &u.EncryptedPrivateKey, &u.PrivateKeyIV,
		&u.PrivateKeySalt, &u.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new account. The password is already bcrypt-hashed and
// the private key material arrives pre-encrypted by the client.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	var existing int64
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT id FROM users WHERE email = ? LIMIT 1"), u.Email).Scan(&existing)
	if err == nil {
		return fmt.Errorf("email already exists: %w", model.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	u.LastSeen = time.Now().UTC()
	id, err := s.insertID(ctx, s.db, `INSERT INTO users
		(first_name, last_name, email, password, avatar, public_key,
		 encrypted_private_key, private_key_iv, private_key_salt, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.FirstName, u.LastName, u.Email, u.Password, u.Avatar, u.PublicKey,
		u.EncryptedPrivateKey, u.PrivateKeyIV, u.PrivateKeySalt, u.LastSeen)
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1"), email)
	return scanUser(row)
}

// PublicKey returns the long-term public key of a user. It is disclosed to
// any authenticated caller.
func (s *Store) PublicKey(ctx context.Context, id int64) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT public_key FROM users WHERE id = ?"), id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return key, err
}

// SearchUsers matches first name, last name or email, excluding the caller.
func (s *Store) SearchUsers(ctx context.Context, query string, selfID int64) ([]model.User, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, first_name, last_name, email, avatar, public_key, last_seen
		FROM users
		WHERE (first_name LIKE ? OR last_name LIKE ? OR email LIKE ?) AND id != ?
		ORDER BY first_name, last_name`),
		pattern, pattern, pattern, selfID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email,
			&u.Avatar, &u.PublicKey, &u.LastSeen); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateAvatar(ctx context.Context, id int64, avatarURL string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE users SET avatar = ? WHERE id = ?"), avatarURL, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return err
}

// UpdateLastSeen records the disconnect time used for offline presence.
func (s *Store) UpdateLastSeen(ctx context.Context, id int64, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE users SET last_seen = ? WHERE id = ?"), t.UTC(), id)
	return err
}

func (s *Store) LastSeen(ctx context.Context, id int64) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT last_seen FROM users WHERE id = ?"), id).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return t, err
}
