package model

import "time"

const (
	NotificationInvitationSent     = "invitation_sent"
	NotificationInvitationAccepted = "invitation_accepted"
)

type (
	// Notification is written in the same transaction as the invitation event
	// that triggered it. UserID is the actor, RelatedUserID the recipient.
	Notification struct {
		ID            int64     `json:"id"`
		Type          string    `json:"type"`
		UserID        int64     `json:"user_id"`
		RelatedUserID int64     `json:"related_user_id"`
		InvitationID  int64     `json:"invitation_id"`
		Timestamp     time.Time `json:"timestamp"`

		// Display name of the actor, joined in on read.
		UserName string `json:"userName,omitempty"`
	}
)
