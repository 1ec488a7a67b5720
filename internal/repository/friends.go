package repository

import (
	"context"

	"pairchat/internal/model"
)

// Friends lists the peers a user can open a conversation with.
func (s *Store) Friends(ctx context.Context, userID int64) ([]model.Friend, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT u.id, u.first_name, u.last_name, u.avatar, u.public_key, u.last_seen
		FROM friends f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = ?
		ORDER BY u.first_name, u.last_name`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []model.Friend
	for rows.Next() {
		var f model.Friend
		if err := rows.Scan(&f.FriendID, &f.FirstName, &f.LastName,
			&f.Avatar, &f.PublicKey, &f.LastSeen); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

// FriendEdgeCount is the raw directed-edge count for a pair. A healthy
// friendship is exactly two.
func (s *Store) FriendEdgeCount(ctx context.Context, a, b int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM friends
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`),
		a, b, b, a).Scan(&n)
	return n, err
}
