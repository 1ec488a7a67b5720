package repository

import (
	"context"
	"time"

	"pairchat/internal/model"
)

// SaveMessage persists a ciphertext row and fills in the generated id and
// server timestamp.
func (s *Store) SaveMessage(ctx context.Context, m *model.Message) error {
	m.CreatedAt = time.Now().UTC()
	if m.Type == "" {
		m.Type = model.MessageText
	}
	id, err := s.insertID(ctx, s.db, `INSERT INTO messages
		(sender_id, receiver_id, room_id, message, iv, type,
		 file_name, file_type, file_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SenderID, m.ReceiverID, m.RoomID, m.Content, m.IV, m.Type,
		m.FileName, m.FileType, m.FileSize, m.CreatedAt)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// History pages a room's messages. Rows are fetched newest-first for the
// offset math, then reversed so the page reads chronologically. Offset
// pagination drifts if new rows land mid-scroll; later pages are strictly
// older than anything already loaded, which is what scroll-up needs.
func (s *Store) History(ctx context.Context, roomID string, page, pageSize int) (*model.MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	var total int
	err := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT COUNT(*) FROM messages WHERE room_id = ?"), roomID).Scan(&total)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, sender_id, receiver_id, room_id, message, iv, type,
		       file_name, file_type, file_size, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`), roomID, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.RoomID,
			&m.Content, &m.IV, &m.Type, &m.FileName, &m.FileType, &m.FileSize,
			&m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return &model.MessagePage{
		Messages: messages,
		Total:    total,
		HasMore:  offset+len(messages) < total,
	}, nil
}
