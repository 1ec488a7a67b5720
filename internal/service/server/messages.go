package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"pairchat/internal/model"
	"pairchat/internal/utils/log"
)

// SendMessage persists a ciphertext row and fans it out to the room. The
// persisted row goes back to the sender for optimistic local decryption.
func (s *HttpServer) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID, authed := currentUserID(r)
		if !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var msg model.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			fail(w, http.StatusBadRequest, "invalid request body")
			return
		}
		msg.SenderID = senderID
		if msg.ReceiverID == 0 || msg.RoomID == "" || msg.Content == "" || msg.IV == "" {
			fail(w, http.StatusBadRequest, "all fields are required")
			return
		}
		if msg.Type == "" {
			msg.Type = model.MessageText
		}
		if msg.Type != model.MessageText && msg.Type != model.MessageFile {
			fail(w, http.StatusBadRequest, "unknown message type")
			return
		}

		if err := s.store.SaveMessage(r.Context(), &msg); err != nil {
			failErr(w, err)
			return
		}

		if ev, err := model.NewEvent(model.EventMessageInserted, msg); err == nil {
			s.registry.Publish(msg.RoomID, ev)
		} else {
			log.Error("marshal message event failed", zap.Error(err))
		}

		ok(w, "message inserted successfully", msg)
	}
}

// UploadAttachment receives raw file bytes and returns the durable URL. The
// client encrypts that URL as message content before sending; the server
// never ties the object back to a conversation.
func (s *HttpServer) UploadAttachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, authed := currentUserID(r); !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if s.objects == nil {
			fail(w, http.StatusServiceUnavailable, "object storage not configured")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			fail(w, http.StatusBadRequest, "no file uploaded")
			return
		}
		defer file.Close()

		url, err := s.objects.Upload(r.Context(), "attachments", header.Filename,
			header.Header.Get("Content-Type"), file, header.Size)
		if err != nil {
			failErr(w, err)
			return
		}
		ok(w, "file uploaded successfully", map[string]string{"url": url})
	}
}

// History returns one page of a room's messages in chronological order.
func (s *HttpServer) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, authed := currentUserID(r); !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		roomID := mux.Vars(r)["roomId"]

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

		pageData, err := s.store.History(r.Context(), roomID, page, pageSize)
		if err != nil {
			failErr(w, err)
			return
		}
		ok(w, "", pageData)
	}
}
