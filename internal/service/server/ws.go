package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairchat/internal/model"
	"pairchat/internal/utils/log"
)

// safeConn serializes writes: room fan-out, user notifications and reply
// frames all arrive from different goroutines.
type safeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *safeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// HandleInitWS upgrades the connection. The user id arrives as an
// out-of-band query parameter set by the authenticated client.
func (s *HttpServer) HandleInitWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.URL.Query().Get("userID"), 10, 64)
		if err != nil || userID <= 0 {
			http.Error(w, "userID cannot be empty", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "Failed to upgrade", http.StatusInternalServerError)
			return
		}

		wrapped := &safeConn{conn: conn}
		connID := s.registry.Connect(userID, wrapped)

		if ev, err := model.NewEvent(model.EventUserOnline, model.PresencePayload{UserID: userID}); err == nil {
			s.registry.Broadcast(ev)
		}

		go s.processWSMessage(userID, connID, conn, wrapped)
	}
}

func (s *HttpServer) processWSMessage(userID int64, connID string, conn *websocket.Conn, wrapped *safeConn) {
	defer func() {
		conn.Close()
		s.handleDisconnect(connID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("worker web socket closed", zap.Int64("user", userID), zap.Error(err))
			return
		}

		var event model.Event
		if err := json.Unmarshal(data, &event); err != nil {
			log.Error("Unmarshal event failed", zap.Error(err))
			continue
		}

		switch event.Event {
		case model.EventJoin:
			// Identity is already bound at upgrade; accepted for clients
			// that re-emit it for reliability.

		case model.EventJoinRoom:
			var p model.JoinRoomPayload
			if err := json.Unmarshal(event.Data, &p); err != nil || p.SelfID != userID {
				continue
			}
			roomID := s.registry.JoinRoom(connID, p.SelfID, p.PeerID)
			s.reply(wrapped, model.EventRoomJoined, model.RoomJoinedPayload{RoomID: roomID})

		case model.EventLeaveRoom:
			var p model.LeaveRoomPayload
			if err := json.Unmarshal(event.Data, &p); err != nil {
				continue
			}
			s.registry.LeaveRoom(connID, p.RoomID)

		case model.EventCheckUserStatus:
			var p model.CheckUserStatusPayload
			if err := json.Unmarshal(event.Data, &p); err != nil {
				continue
			}
			s.reply(wrapped, model.EventUserStatusResponse, s.userStatus(p.FriendID))

		default:
			log.Debug("unknown ws event", zap.String("event", event.Event))
		}
	}
}

func (s *HttpServer) userStatus(friendID int64) model.UserStatusPayload {
	if s.registry.IsOnline(friendID) {
		return model.UserStatusPayload{FriendID: friendID, IsOnline: true}
	}

	status := model.UserStatusPayload{FriendID: friendID, IsOnline: false}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if lastSeen, err := s.store.LastSeen(ctx, friendID); err == nil {
		status.LastSeen = &lastSeen
	} else {
		log.Error("last seen lookup failed", zap.Int64("user", friendID), zap.Error(err))
	}
	return status
}

// handleDisconnect drops the connection from the registry; when it was the
// user's last one, the disconnect time is persisted as last-seen and an
// offline event goes out with that timestamp.
func (s *HttpServer) handleDisconnect(connID string) {
	userID, lastConn := s.registry.Disconnect(connID)
	if !lastConn {
		return
	}

	now := time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.UpdateLastSeen(ctx, userID, now); err != nil {
		log.Error("persist last seen failed", zap.Int64("user", userID), zap.Error(err))
	}

	if ev, err := model.NewEvent(model.EventUserOffline, model.PresencePayload{UserID: userID, LastSeen: &now}); err == nil {
		s.registry.Broadcast(ev)
	}
}

func (s *HttpServer) reply(conn *safeConn, event string, payload any) {
	ev, err := model.NewEvent(event, payload)
	if err != nil {
		log.Error("marshal reply failed", zap.String("event", event), zap.Error(err))
		return
	}
	if err := conn.WriteJSON(ev); err != nil {
		log.Debug("reply write failed", zap.String("event", event), zap.Error(err))
	}
}
