package model

import (
	"encoding/json"
	"time"
)

// WebSocket event names. Client-emitted and server-emitted names live in one
// place so both cmd/client and the server read from the same list.
const (
	EventJoin            = "join"
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventCheckUserStatus = "check-user-status"

	EventRoomJoined         = "room-joined"
	EventUserStatusResponse = "user-status-response"
	EventMessageInserted    = "message-inserted"
	EventInviteNotification = "invite-notification"
	EventInviteAccepted     = "invite-accepted"
	EventUserOnline         = "user-online"
	EventUserOffline        = "user-offline"
)

type (
	// Event is the JSON envelope every websocket frame carries.
	Event struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data,omitempty"`
	}

	JoinPayload struct {
		UserID int64 `json:"userId"`
	}

	JoinRoomPayload struct {
		SelfID int64 `json:"selfId"`
		PeerID int64 `json:"peerId"`
	}

	LeaveRoomPayload struct {
		RoomID string `json:"roomId"`
	}

	CheckUserStatusPayload struct {
		FriendID int64 `json:"friendId"`
	}

	RoomJoinedPayload struct {
		RoomID string `json:"roomId"`
	}

	UserStatusPayload struct {
		FriendID int64      `json:"friendId"`
		IsOnline bool       `json:"isOnline"`
		LastSeen *time.Time `json:"lastSeen,omitempty"`
	}

	PresencePayload struct {
		UserID   int64      `json:"userId"`
		LastSeen *time.Time `json:"lastSeen,omitempty"`
	}
)

// NewEvent marshals payload into an envelope. Marshal failures cannot happen
// for the payload types above, so the error is dropped at call sites that
// fan out to many connections.
func NewEvent(name string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Event: name, Data: data}, nil
}
