package repository

import "strings"

func (s *Store) migrate() error {
	// The pending-invitation uniqueness rule is enforced by a pre-insert
	// existence check, deliberately not by a constraint here.
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		public_key TEXT NOT NULL DEFAULT '',
		encrypted_private_key TEXT NOT NULL DEFAULT '',
		private_key_iv TEXT NOT NULL DEFAULT '',
		private_key_salt TEXT NOT NULL DEFAULT '',
		last_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS invitations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		inviter_id INTEGER NOT NULL REFERENCES users(id),
		invitee_id INTEGER NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS friends (
		user_id INTEGER NOT NULL REFERENCES users(id),
		friend_id INTEGER NOT NULL REFERENCES users(id),
		PRIMARY KEY (user_id, friend_id)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id),
		related_user_id INTEGER NOT NULL REFERENCES users(id),
		invitation_id INTEGER NOT NULL,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id INTEGER NOT NULL REFERENCES users(id),
		receiver_id INTEGER NOT NULL REFERENCES users(id),
		room_id TEXT NOT NULL,
		message TEXT NOT NULL,
		iv TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'text',
		file_name TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(related_user_id, timestamp);
	`

	if s.driverName == "postgres" {
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGSERIAL PRIMARY KEY")
		query = strings.ReplaceAll(query, "DATETIME", "TIMESTAMP")
	}

	_, err := s.db.Exec(query)
	return err
}
