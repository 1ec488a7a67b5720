// Package presence tracks which users hold live websocket connections and
// owns the deterministic per-pair rooms messages fan out to. State is
// in-process only; it does not survive a restart and no cross-process
// coordination is attempted.
package presence

import (
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pairchat/internal/utils/log"
)

// Conn is the write half of a live connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
}

// RoomID joins the two participant ids after sorting, so either side computes
// the same identifier without coordination.
func RoomID(a, b int64) string {
	ids := []string{strconv.FormatInt(a, 10), strconv.FormatInt(b, 10)}
	sort.Strings(ids)
	return ids[0] + "*" + ids[1]
}

type member struct {
	userID int64
	conn   Conn
}

// Registry is an injected, mutex-guarded presence map. Multiple registries
// can exist side by side in tests; nothing here is package-global.
type Registry struct {
	mu    sync.Mutex
	users map[int64]map[string]Conn   // userID -> connID -> conn
	rooms map[string]map[string]member // roomID -> connID -> member
	owner map[string]int64             // connID -> userID
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[int64]map[string]Conn),
		rooms: make(map[string]map[string]member),
		owner: make(map[string]int64),
	}
}

// Connect registers a live connection for userID and returns its handle id.
// A user may hold several connections at once.
func (r *Registry) Connect(userID int64, conn Conn) string {
	connID := uuid.NewString()

	r.mu.Lock()
	if r.users[userID] == nil {
		r.users[userID] = make(map[string]Conn)
	}
	r.users[userID][connID] = conn
	r.owner[connID] = userID
	r.mu.Unlock()

	log.Debug("presence: connected", zap.Int64("user", userID), zap.String("conn", connID))
	return connID
}

// Disconnect drops the connection from the live map and from every room it
// joined. It reports the owning user and whether that was the user's last
// connection, so the caller can persist last-seen and broadcast offline.
func (r *Registry) Disconnect(connID string) (userID int64, lastConn bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owner[connID]
	if !ok {
		return 0, false
	}
	delete(r.owner, connID)

	if conns := r.users[userID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.users, userID)
			lastConn = true
		}
	}
	for roomID, members := range r.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	return userID, lastConn
}

// IsOnline reports whether the user holds at least one live connection. The
// answer can be stale by one round trip against a racing disconnect.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users[userID]) > 0
}

// JoinRoom subscribes the connection to the pair's room and returns the
// computed room id for the caller to tag subsequent sends with.
func (r *Registry) JoinRoom(connID string, selfID, peerID int64) string {
	roomID := RoomID(selfID, peerID)

	r.mu.Lock()
	conn, ok := r.users[selfID][connID]
	if ok {
		if r.rooms[roomID] == nil {
			r.rooms[roomID] = make(map[string]member)
		}
		r.rooms[roomID][connID] = member{userID: selfID, conn: conn}
	}
	r.mu.Unlock()
	return roomID
}

func (r *Registry) LeaveRoom(connID, roomID string) {
	r.mu.Lock()
	if members := r.rooms[roomID]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	r.mu.Unlock()
}

// Publish writes an event to every connection subscribed to the room.
func (r *Registry) Publish(roomID string, event any) {
	r.mu.Lock()
	members := make([]member, 0, len(r.rooms[roomID]))
	for _, m := range r.rooms[roomID] {
		members = append(members, m)
	}
	r.mu.Unlock()

	for _, m := range members {
		if err := m.conn.WriteJSON(event); err != nil {
			log.Debug("presence: room write failed", zap.String("room", roomID), zap.Error(err))
		}
	}
}

// SendToUser writes an event to every live connection a user holds.
func (r *Registry) SendToUser(userID int64, event any) {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.users[userID]))
	for _, c := range r.users[userID] {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteJSON(event); err != nil {
			log.Debug("presence: user write failed", zap.Int64("user", userID), zap.Error(err))
		}
	}
}

// Broadcast writes an event to every live connection.
func (r *Registry) Broadcast(event any) {
	r.mu.Lock()
	conns := make([]Conn, 0)
	for _, userConns := range r.users {
		for _, c := range userConns {
			conns = append(conns, c)
		}
	}
	r.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteJSON(event); err != nil {
			log.Debug("presence: broadcast write failed", zap.Error(err))
		}
	}
}
