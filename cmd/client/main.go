// Demo client: derives the pairwise session key, joins the room, and only
// starts sending once the server confirms the subscription. All encryption
// happens here; the server never sees plaintext.
package main

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairchat/internal/model"
	"pairchat/internal/session"
	"pairchat/internal/utils/log"
)

var (
	host    = flag.String("host", "localhost:9090", "server host")
	selfID  = flag.Int64("user", 0, "own user id")
	peerID  = flag.Int64("peer", 0, "peer user id")
	privKey = flag.String("key", "", "own private key, base64")
)

func main() {
	flag.Parse()
	if *selfID == 0 || *peerID == 0 || *privKey == "" {
		flag.Usage()
		os.Exit(2)
	}

	priv, err := decodeKey(*privKey)
	if err != nil {
		log.Fatal("bad private key", zap.Error(err))
	}

	peerPub, err := fetchPeerKey(*peerID)
	if err != nil {
		log.Fatal("fetch peer key failed", zap.Error(err))
	}

	sessions := session.NewManager(priv)
	if err := sessions.Select(*peerID, peerPub); err != nil {
		log.Fatal("derive session key failed", zap.Error(err))
	}

	conn, err := dialWS(*selfID)
	if err != nil {
		log.Fatal("connect to server failed", zap.Error(err))
	}
	defer conn.Close()

	roomJoined := make(chan string, 1)
	go readLoop(conn, sessions, roomJoined)

	joinRoom(conn, *selfID, *peerID)

	// Sends are held until the room-joined confirmation arrives.
	roomID := <-roomJoined
	fmt.Printf("joined room %s, type messages:\n", roomID)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := sendMessage(sessions, roomID, line); err != nil {
			log.Error("send failed", zap.Error(err))
		}
	}
}

func decodeKey(b64 string) ([32]byte, error) {
	var key [32]byte
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return key, err
	}
	if len(raw) != 32 {
		return key, fmt.Errorf("expected 32 key bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

func fetchPeerKey(peerID int64) ([32]byte, error) {
	var pub [32]byte
	u := url.URL{Scheme: "http", Host: *host, Path: fmt.Sprintf("/api/v1/user/%d/key", peerID)}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return pub, err
	}
	req.Header.Set("X-User-ID", strconv.FormatInt(*selfID, 10))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return pub, err
	}
	defer resp.Body.Close()

	var body struct {
		Data struct {
			PublicKey string `json:"publicKey"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return pub, err
	}
	return decodeKey(body.Data.PublicKey)
}

func dialWS(userID int64) (*websocket.Conn, error) {
	params := url.Values{"userID": []string{strconv.FormatInt(userID, 10)}}
	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws", RawQuery: params.Encode()}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	return conn, err
}

func joinRoom(conn *websocket.Conn, selfID, peerID int64) {
	ev, err := model.NewEvent(model.EventJoinRoom, model.JoinRoomPayload{SelfID: selfID, PeerID: peerID})
	if err != nil {
		log.Fatal("marshal join-room failed", zap.Error(err))
	}
	if err := conn.WriteJSON(ev); err != nil {
		log.Fatal("join-room failed", zap.Error(err))
	}
}

func readLoop(conn *websocket.Conn, sessions *session.Manager, roomJoined chan<- string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Fatal("connection closed", zap.Error(err))
		}

		var event model.Event
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}

		switch event.Event {
		case model.EventRoomJoined:
			var p model.RoomJoinedPayload
			if json.Unmarshal(event.Data, &p) == nil {
				roomJoined <- p.RoomID
			}

		case model.EventMessageInserted:
			var msg model.Message
			if err := json.Unmarshal(event.Data, &msg); err != nil {
				continue
			}
			if msg.SenderID == *selfID {
				continue
			}
			printMessage(sessions, &msg)
		}
	}
}

func printMessage(sessions *session.Manager, msg *model.Message) {
	ciphertext, err1 := base64.StdEncoding.DecodeString(msg.Content)
	iv, err2 := base64.StdEncoding.DecodeString(msg.IV)
	if err1 != nil || err2 != nil {
		log.Error("malformed message encoding", zap.Int64("id", msg.ID))
		return
	}

	plaintext, err := sessions.Decrypt(msg.SenderID, ciphertext, iv)
	if err != nil {
		// Tamper or wrong key renders this one message unreadable, nothing
		// more.
		log.Error("cannot decrypt message", zap.Int64("id", msg.ID), zap.Error(err))
		return
	}
	fmt.Printf("[%d] %s\n", msg.SenderID, plaintext)
}

func sendMessage(sessions *session.Manager, roomID, text string) error {
	ciphertext, iv, err := sessions.Encrypt(*peerID, []byte(text))
	if err != nil {
		return err
	}

	msg := model.Message{
		ReceiverID: *peerID,
		RoomID:     roomID,
		Content:    base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Type:       model.MessageText,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	u := url.URL{Scheme: "http", Host: *host, Path: "/api/v1/chat"}
	req, err := http.NewRequest(http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatInt(*selfID, 10))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
