package model

import "time"

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
)

type (
	Invitation struct {
		ID        int64     `json:"id"`
		InviterID int64     `json:"inviterId"`
		InviteeID int64     `json:"inviteeId"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"createdAt"`
	}
)
