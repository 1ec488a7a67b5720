package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"pairchat/internal/model"
	"pairchat/internal/repository"
	"pairchat/internal/service/cache"
	"pairchat/internal/service/presence"
	"pairchat/internal/service/redis"
)

// fakeRedis backs the cache with maps so handler tests run without a server.
type fakeRedis struct {
	lists map[string][]string
	kv    map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{lists: make(map[string][]string), kv: make(map[string]string)}
}

func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func (f *fakeRedis) LPush(_ context.Context, key string, values ...any) error {
	for _, v := range values {
		f.lists[key] = append([]string{asString(v)}, f.lists[key]...)
	}
	return nil
}

func (f *fakeRedis) RPush(_ context.Context, key string, values ...any) error {
	for _, v := range values {
		f.lists[key] = append(f.lists[key], asString(v))
	}
	return nil
}

func (f *fakeRedis) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	list := f.lists[key]
	if stop < 0 {
		stop = int64(len(list)) + stop
	}
	if start >= int64(len(list)) {
		return nil, nil
	}
	if stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	return list[start : stop+1], nil
}

func (f *fakeRedis) LTrim(_ context.Context, key string, start, stop int64) error {
	list, _ := f.LRange(context.Background(), key, start, stop)
	f.lists[key] = list
	return nil
}

func (f *fakeRedis) Del(_ context.Context, key string) error {
	delete(f.lists, key)
	delete(f.kv, key)
	return nil
}

func (f *fakeRedis) Expire(_ context.Context, _ string, _ time.Duration) error { return nil }

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.kv[key] = asString(value)
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := f.kv[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

type testServer struct {
	*httptest.Server
	store *repository.Store
	t     *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	store, err := repository.New("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}

	srv := NewHttpServer(store, cache.New(newFakeRedis()), presence.NewRegistry(), nil, "")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		store.Close()
	})
	return &testServer{Server: ts, store: store, t: t}
}

// do issues a request with the identity header and decodes the envelope.
// data keeps its raw form so callers pick the concrete type.
func (ts *testServer) do(method, path string, userID int64, body any) (int, string, json.RawMessage) {
	ts.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		ts.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set("X-User-ID", fmt.Sprint(userID))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		ts.t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return resp.StatusCode, envelope.Message, envelope.Data
}

func (ts *testServer) register(first, last string) int64 {
	ts.t.Helper()
	status, msg, data := ts.do(http.MethodPost, "/api/v1/user/register", 0, map[string]string{
		"firstName": first,
		"lastName":  last,
		"email":     fmt.Sprintf("%s.%s@example.com", first, last),
		"password":  "correct horse battery staple",
		"publicKey": "pub-" + first,
	})
	if status != http.StatusOK {
		ts.t.Fatalf("register %s: status %d (%s)", first, status, msg)
	}
	var out struct {
		UserID int64 `json:"userId"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		ts.t.Fatalf("register %s: decode data: %v", first, err)
	}
	return out.UserID
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.register("Alice", "Anders")

	status, _, data := ts.do(http.MethodPost, "/api/v1/user/login", 0, map[string]string{
		"email":    "Alice.Anders@example.com",
		"password": "correct horse battery staple",
	})
	if status != http.StatusOK {
		t.Fatalf("login: status %d", status)
	}
	var out struct {
		UserID int64 `json:"userId"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.UserID == 0 {
		t.Errorf("login returned no user id: %v", err)
	}

	// Second login hits the credential cache and must still reject a bad
	// password.
	status, _, _ = ts.do(http.MethodPost, "/api/v1/user/login", 0, map[string]string{
		"email":    "Alice.Anders@example.com",
		"password": "wrong",
	})
	if status != http.StatusBadRequest {
		t.Errorf("bad password: status %d, want 400", status)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	ts.register("Alice", "Anders")

	status, _, _ := ts.do(http.MethodPost, "/api/v1/user/register", 0, map[string]string{
		"firstName": "Other",
		"lastName":  "Alice",
		"email":     "Alice.Anders@example.com",
		"password":  "hunter2hunter2",
		"publicKey": "pub-other",
	})
	if status != http.StatusConflict {
		t.Errorf("duplicate email: status %d, want 409", status)
	}
}

func TestUnauthorizedWithoutIdentity(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/user/me", "/api/v1/user/friends", "/api/v1/notification"} {
		status, _, _ := ts.do(http.MethodGet, path, 0, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("GET %s without identity: status %d, want 401", path, status)
		}
	}
}

func TestInvitationFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "Anders")
	bob := ts.register("Bob", "Bishop")

	// Alice invites Bob.
	status, msg, data := ts.do(http.MethodPost, fmt.Sprintf("/api/v1/invitation/%d", bob), alice, nil)
	if status != http.StatusOK {
		t.Fatalf("create invitation: status %d (%s)", status, msg)
	}
	var sent model.Notification
	if err := json.Unmarshal(data, &sent); err != nil {
		t.Fatalf("decode invitation notification: %v", err)
	}
	if sent.Type != model.NotificationInvitationSent || sent.UserName != "Alice Anders" {
		t.Errorf("unexpected notification: type=%q name=%q", sent.Type, sent.UserName)
	}

	// Bob sees it.
	status, _, data = ts.do(http.MethodGet, "/api/v1/notification", bob, nil)
	if status != http.StatusOK {
		t.Fatalf("bob notifications: status %d", status)
	}
	var bobNotifications []model.Notification
	if err := json.Unmarshal(data, &bobNotifications); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(bobNotifications) != 1 || bobNotifications[0].InvitationID != sent.InvitationID {
		t.Fatalf("bob notifications: %+v", bobNotifications)
	}

	// A second invitation while one is pending conflicts.
	status, _, _ = ts.do(http.MethodPost, fmt.Sprintf("/api/v1/invitation/%d", bob), alice, nil)
	if status != http.StatusConflict {
		t.Errorf("duplicate invitation: status %d, want 409", status)
	}

	// Bob accepts.
	status, msg, _ = ts.do(http.MethodPost, fmt.Sprintf("/api/v1/invitation/%d/accept", sent.InvitationID), bob, nil)
	if status != http.StatusOK {
		t.Fatalf("accept invitation: status %d (%s)", status, msg)
	}

	// Alice now holds the acceptance notification.
	status, _, data = ts.do(http.MethodGet, "/api/v1/notification", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("alice notifications: status %d", status)
	}
	var aliceNotifications []model.Notification
	if err := json.Unmarshal(data, &aliceNotifications); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(aliceNotifications) != 1 || aliceNotifications[0].Type != model.NotificationInvitationAccepted {
		t.Fatalf("alice notifications: %+v", aliceNotifications)
	}

	// Both friend lists contain the other exactly once.
	for _, tc := range []struct {
		viewer int64
		friend int64
	}{{alice, bob}, {bob, alice}} {
		status, _, data = ts.do(http.MethodGet, "/api/v1/user/friends", tc.viewer, nil)
		if status != http.StatusOK {
			t.Fatalf("friends: status %d", status)
		}
		var friends []model.Friend
		if err := json.Unmarshal(data, &friends); err != nil {
			t.Fatalf("decode friends: %v", err)
		}
		if len(friends) != 1 || friends[0].FriendID != tc.friend {
			t.Errorf("user %d friends: %+v", tc.viewer, friends)
		}
	}

	// Accepting the same invitation twice fails without duplicating edges.
	status, _, _ = ts.do(http.MethodPost, fmt.Sprintf("/api/v1/invitation/%d/accept", sent.InvitationID), bob, nil)
	if status != http.StatusNotFound && status != http.StatusConflict {
		t.Errorf("double accept: status %d", status)
	}
	edges, err := ts.store.FriendEdgeCount(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("edge count: %v", err)
	}
	if edges != 2 {
		t.Errorf("friend edges = %d, want 2", edges)
	}
}

func TestSelfInvitationRejected(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "Anders")

	status, _, _ := ts.do(http.MethodPost, fmt.Sprintf("/api/v1/invitation/%d", alice), alice, nil)
	if status != http.StatusBadRequest {
		t.Errorf("self invitation: status %d, want 400", status)
	}
}

func TestInvitationToMissingUser(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "Anders")

	status, _, _ := ts.do(http.MethodPost, "/api/v1/invitation/99999", alice, nil)
	if status != http.StatusNotFound {
		t.Errorf("missing invitee: status %d, want 404", status)
	}
}

func TestPublicKeyLookup(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "Anders")
	bob := ts.register("Bob", "Bishop")

	status, _, data := ts.do(http.MethodGet, fmt.Sprintf("/api/v1/user/%d/key", bob), alice, nil)
	if status != http.StatusOK {
		t.Fatalf("public key: status %d", status)
	}
	var out struct {
		PublicKey string `json:"publicKey"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.PublicKey != "pub-Bob" {
		t.Errorf("public key = %q, err = %v", out.PublicKey, err)
	}

	status, _, _ = ts.do(http.MethodGet, "/api/v1/user/99999/key", alice, nil)
	if status != http.StatusNotFound {
		t.Errorf("missing user key: status %d, want 404", status)
	}
}

func TestSendMessageAndHistory(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "Anders")
	bob := ts.register("Bob", "Bishop")
	roomID := presence.RoomID(alice, bob)

	for i := 0; i < 3; i++ {
		status, msg, _ := ts.do(http.MethodPost, "/api/v1/chat", alice, map[string]any{
			"receiver_id": bob,
			"room_id":     roomID,
			"message":     fmt.Sprintf("ciphertext-%d", i),
			"iv":          fmt.Sprintf("iv-%d", i),
		})
		if status != http.StatusOK {
			t.Fatalf("send message %d: status %d (%s)", i, status, msg)
		}
	}

	status, _, data := ts.do(http.MethodGet, "/api/v1/chat/"+roomID+"/messages?page=1&pageSize=10", bob, nil)
	if status != http.StatusOK {
		t.Fatalf("history: status %d", status)
	}
	var page model.MessagePage
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if page.Total != 3 || len(page.Messages) != 3 || page.HasMore {
		t.Fatalf("history page: total=%d len=%d hasMore=%v", page.Total, len(page.Messages), page.HasMore)
	}
	if page.Messages[0].Content != "ciphertext-0" || page.Messages[2].Content != "ciphertext-2" {
		t.Error("history not in chronological order")
	}
	if page.Messages[0].SenderID != alice || page.Messages[0].ReceiverID != bob {
		t.Error("sender/receiver not persisted")
	}
}

func TestSendMessageValidation(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "Anders")

	// Missing IV: ciphertext without its nonce is unusable, reject it.
	status, _, _ := ts.do(http.MethodPost, "/api/v1/chat", alice, map[string]any{
		"receiver_id": 2,
		"room_id":     "1*2",
		"message":     "ciphertext",
	})
	if status != http.StatusBadRequest {
		t.Errorf("missing iv: status %d, want 400", status)
	}

	status, _, _ = ts.do(http.MethodPost, "/api/v1/chat", alice, map[string]any{
		"receiver_id": 2,
		"room_id":     "1*2",
		"message":     "ciphertext",
		"iv":          "nonce",
		"type":        "carrier-pigeon",
	})
	if status != http.StatusBadRequest {
		t.Errorf("unknown type: status %d, want 400", status)
	}
}

func TestDeleteNotification(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "Anders")
	bob := ts.register("Bob", "Bishop")

	_, _, data := ts.do(http.MethodPost, fmt.Sprintf("/api/v1/invitation/%d", bob), alice, nil)
	var sent model.Notification
	if err := json.Unmarshal(data, &sent); err != nil {
		t.Fatalf("decode notification: %v", err)
	}

	// Alice cannot delete Bob's notification.
	status, _, _ := ts.do(http.MethodDelete, fmt.Sprintf("/api/v1/notification/%d", sent.ID), alice, nil)
	if status != http.StatusNotFound {
		t.Errorf("foreign delete: status %d, want 404", status)
	}

	status, _, _ = ts.do(http.MethodDelete, fmt.Sprintf("/api/v1/notification/%d", sent.ID), bob, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: status %d", status)
	}

	_, _, data = ts.do(http.MethodGet, "/api/v1/notification", bob, nil)
	var remaining []model.Notification
	if err := json.Unmarshal(data, &remaining); err == nil && len(remaining) != 0 {
		t.Errorf("notification survived delete: %+v", remaining)
	}
}

func TestUploadWithoutObjectStore(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "Anders")

	status, _, _ := ts.do(http.MethodPost, "/api/v1/chat/upload", alice, nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("upload without object store: status %d, want 503", status)
	}
}

func TestSearchUsersExcludesSelf(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("Alice", "Anders")
	ts.register("Alicia", "Bishop")

	status, _, data := ts.do(http.MethodGet, "/api/v1/user/users?search=Ali", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("search: status %d", status)
	}
	var users []model.User
	if err := json.Unmarshal(data, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 1 || users[0].FirstName != "Alicia" {
		t.Errorf("search results: %+v", users)
	}
}
