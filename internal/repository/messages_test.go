package repository

import (
	"context"
	"fmt"
	"testing"

	"pairchat/internal/model"
)

func seedMessages(t *testing.T, s *Store, roomID string, a, b int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		m := &model.Message{
			SenderID:   a,
			ReceiverID: b,
			RoomID:     roomID,
			Content:    fmt.Sprintf("ciphertext-%d", i),
			IV:         fmt.Sprintf("iv-%d", i),
		}
		if err := s.SaveMessage(context.Background(), m); err != nil {
			t.Fatalf("save message %d: %v", i, err)
		}
	}
}

func TestHistoryPagination(t *testing.T) {
	s := newTestStore(t)
	alice := createTestUser(t, s, "Alice", "Anders")
	bob := createTestUser(t, s, "Bob", "Baker")
	roomID := "1*2"

	const total, pageSize = 25, 10
	seedMessages(t, s, roomID, alice.ID, bob.ID, total)

	// Walk pages newest-first, prepending each chronological page; the
	// result must be the full insertion order with no gaps or duplicates.
	var history []model.Message
	page := 1
	for {
		p, err := s.History(context.Background(), roomID, page, pageSize)
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		history = append(append([]model.Message{}, p.Messages...), history...)
		if p.Total != total {
			t.Errorf("page %d total = %d, want %d", page, p.Total, total)
		}
		wantMore := page*pageSize < total
		if p.HasMore != wantMore {
			t.Errorf("page %d hasMore = %v, want %v", page, p.HasMore, wantMore)
		}
		if !p.HasMore {
			break
		}
		page++
	}

	if len(history) != total {
		t.Fatalf("reassembled %d messages, want %d", len(history), total)
	}
	for i, m := range history {
		if m.Content != fmt.Sprintf("ciphertext-%d", i) {
			t.Fatalf("position %d holds %q", i, m.Content)
		}
	}
}

func TestHistoryPageIsChronological(t *testing.T) {
	s := newTestStore(t)
	alice := createTestUser(t, s, "Alice", "Anders")
	bob := createTestUser(t, s, "Bob", "Baker")
	seedMessages(t, s, "1*2", alice.ID, bob.ID, 5)

	p, err := s.History(context.Background(), "1*2", 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Messages) != 5 {
		t.Fatalf("got %d messages", len(p.Messages))
	}
	for i := 1; i < len(p.Messages); i++ {
		if p.Messages[i].ID < p.Messages[i-1].ID {
			t.Errorf("page not in chronological order at index %d", i)
		}
	}
	if p.HasMore {
		t.Error("single page should not report more")
	}
}

func TestHistoryEmptyRoom(t *testing.T) {
	s := newTestStore(t)

	p, err := s.History(context.Background(), "no-such-room", 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if p.Total != 0 || p.HasMore || len(p.Messages) != 0 {
		t.Errorf("empty room page: %+v", p)
	}
}

func TestSaveMessageFileMeta(t *testing.T) {
	s := newTestStore(t)
	alice := createTestUser(t, s, "Alice", "Anders")
	bob := createTestUser(t, s, "Bob", "Baker")

	m := &model.Message{
		SenderID:   alice.ID,
		ReceiverID: bob.ID,
		RoomID:     "1*2",
		Content:    "encrypted-url",
		IV:         "iv",
		Type:       model.MessageFile,
		FileName:   "report.pdf",
		FileType:   "application",
		FileSize:   1234,
	}
	if err := s.SaveMessage(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	p, err := s.History(context.Background(), "1*2", 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := p.Messages[0]
	if got.Type != model.MessageFile || got.FileName != "report.pdf" || got.FileSize != 1234 {
		t.Errorf("file meta lost: %+v", got)
	}
}
