package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pairchat/internal/model"
)

// AcceptResult carries everything the caller needs after a successful accept:
// the invitation itself, the notification written for the inviter, and the
// names needed to update both friend-list caches without another query.
type AcceptResult struct {
	Invitation   model.Invitation
	Notification model.Notification
	Inviter      model.Friend
	Invitee      model.Friend
}

// CreateInvitation inserts a pending invitation plus its invitation_sent
// notification in one transaction and returns the notification for fan-out.
//
// The pending-uniqueness guard is a read before the insert, not a
// constraint; two near-simultaneous invites for the same pair can both land.
func (s *Store) CreateInvitation(ctx context.Context, inviterID, inviteeID int64) (*model.Notification, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var inviteeExists int64
	err = tx.QueryRowContext(ctx,
		s.rebind("SELECT id FROM users WHERE id = ?"), inviteeID).Scan(&inviteeExists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invitee %d: %w", inviteeID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var pendingID int64
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT id FROM invitations
		WHERE inviter_id = ? AND invitee_id = ? AND status = ?`),
		inviterID, inviteeID, model.InvitationPending).Scan(&pendingID)
	if err == nil {
		return nil, fmt.Errorf("invitation already pending: %w", model.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	invitationID, err := s.insertID(ctx, tx, `INSERT INTO invitations
		(inviter_id, invitee_id, status, created_at) VALUES (?, ?, ?, ?)`,
		inviterID, inviteeID, model.InvitationPending, now)
	if err != nil {
		return nil, err
	}

	var inviterName string
	err = tx.QueryRowContext(ctx, s.rebind(
		"SELECT first_name || ' ' || last_name FROM users WHERE id = ?"),
		inviterID).Scan(&inviterName)
	if err != nil {
		return nil, err
	}

	notification := model.Notification{
		Type:          model.NotificationInvitationSent,
		UserID:        inviterID,
		RelatedUserID: inviteeID,
		InvitationID:  invitationID,
		Timestamp:     now,
		UserName:      inviterName,
	}
	notification.ID, err = s.insertNotification(ctx, tx, &notification)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &notification, nil
}

// AcceptInvitation flips pending → accepted and materializes the symmetric
// friendship, all inside one transaction with row locks on the invitation and
// any existing edge rows. Cache updates happen after commit, never inside.
func (s *Store) AcceptInvitation(ctx context.Context, invitationID, accepterID int64) (*AcceptResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var inv model.Invitation
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT id, inviter_id, invitee_id, status, created_at
		FROM invitations
		WHERE id = ? AND status = ?`)+s.forUpdate(),
		invitationID, model.InvitationPending).
		Scan(&inv.ID, &inv.InviterID, &inv.InviteeID, &inv.Status, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending invitation %d: %w", invitationID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if inv.InviteeID != accepterID {
		return nil, fmt.Errorf("invitation %d is not addressed to user %d: %w",
			invitationID, accepterID, model.ErrNotFound)
	}

	// Lock any existing edges for the pair; finding one means a concurrent
	// accept (or a mutual invite) already created the friendship.
	rows, err := tx.QueryContext(ctx, s.rebind(`
		SELECT user_id FROM friends
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`)+s.forUpdate(),
		inv.InviterID, inv.InviteeID, inv.InviteeID, inv.InviterID)
	if err != nil {
		return nil, err
	}
	edgeExists := rows.Next()
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if edgeExists {
		return nil, fmt.Errorf("users %d and %d are already friends: %w",
			inv.InviterID, inv.InviteeID, model.ErrConflict)
	}

	if _, err = tx.ExecContext(ctx, s.rebind(
		"UPDATE invitations SET status = ? WHERE id = ?"),
		model.InvitationAccepted, inv.ID); err != nil {
		return nil, err
	}
	inv.Status = model.InvitationAccepted

	// The "sent" notification is consumed by the accept, not archived.
	if _, err = tx.ExecContext(ctx, s.rebind(
		"DELETE FROM notifications WHERE invitation_id = ? AND type = ?"),
		inv.ID, model.NotificationInvitationSent); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, s.rebind(
		"INSERT INTO friends (user_id, friend_id) VALUES (?, ?)"),
		inv.InviterID, inv.InviteeID); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, s.rebind(
		"INSERT INTO friends (user_id, friend_id) VALUES (?, ?)"),
		inv.InviteeID, inv.InviterID); err != nil {
		return nil, err
	}

	inviter, err := s.friendView(ctx, tx, inv.InviterID)
	if err != nil {
		return nil, err
	}
	invitee, err := s.friendView(ctx, tx, inv.InviteeID)
	if err != nil {
		return nil, err
	}

	notification := model.Notification{
		Type:          model.NotificationInvitationAccepted,
		UserID:        inv.InviteeID,
		RelatedUserID: inv.InviterID,
		InvitationID:  inv.ID,
		Timestamp:     time.Now().UTC(),
		UserName:      invitee.FirstName + " " + invitee.LastName,
	}
	notification.ID, err = s.insertNotification(ctx, tx, &notification)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &AcceptResult{
		Invitation:   inv,
		Notification: notification,
		Inviter:      *inviter,
		Invitee:      *invitee,
	}, nil
}

func (s *Store) friendView(ctx context.Context, q execQuerier, id int64) (*model.Friend, error) {
	var f model.Friend
	err := q.QueryRowContext(ctx, s.rebind(`
		SELECT id, first_name, last_name, avatar, public_key, last_seen
		FROM users WHERE id = ?`), id).
		Scan(&f.FriendID, &f.FirstName, &f.LastName, &f.Avatar, &f.PublicKey, &f.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}
