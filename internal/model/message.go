package model

import "time"

const (
	MessageText = "text"
	MessageFile = "file"
)

type (
	// Message is a persisted chat row. Content and IV are base64; the server
	// stores and forwards them without being able to decrypt.
	Message struct {
		ID         int64     `json:"id"`
		SenderID   int64     `json:"sender_id" validate:"required"`
		ReceiverID int64     `json:"receiver_id" validate:"required"`
		RoomID     string    `json:"room_id" validate:"required"`
		Content    string    `json:"message" validate:"required"`
		IV         string    `json:"iv" validate:"required"`
		Type       string    `json:"type"`
		FileName   string    `json:"file_name,omitempty"`
		FileType   string    `json:"file_type,omitempty"`
		FileSize   int64     `json:"file_size,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}

	// MessagePage is one page of room history in chronological order.
	MessagePage struct {
		Messages []Message `json:"messages"`
		Total    int       `json:"total"`
		HasMore  bool      `json:"hasMore"`
	}
)
