package repository

import (
	"context"
	"fmt"

	"pairchat/internal/model"
)

func (s *Store) insertNotification(ctx context.Context, q execQuerier, n *model.Notification) (int64, error) {
	return s.insertID(ctx, q, `INSERT INTO notifications
		(type, user_id, related_user_id, invitation_id, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		n.Type, n.UserID, n.RelatedUserID, n.InvitationID, n.Timestamp)
}

// NotificationsFor returns a user's pending notifications newest-first, with
// the actor's display name joined in.
func (s *Store) NotificationsFor(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT n.id, n.type, n.user_id, n.related_user_id, n.invitation_id, n.timestamp,
		       u.first_name || ' ' || u.last_name
		FROM notifications n
		LEFT JOIN users u ON n.user_id = u.id
		WHERE n.related_user_id = ?
		ORDER BY n.timestamp DESC, n.id DESC`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.UserID, &n.RelatedUserID,
			&n.InvitationID, &n.Timestamp, &n.UserName); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// DeleteNotification removes a notification owned by userID.
func (s *Store) DeleteNotification(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		"DELETE FROM notifications WHERE id = ? AND related_user_id = ?"), id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("notification %d: %w", id, model.ErrNotFound)
	}
	return err
}
