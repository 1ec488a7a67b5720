// Package session holds the client-side per-peer symmetric key. The derived
// key never leaves process memory and is never sent to or stored by the
// server.
package session

import (
	"fmt"
	"sync"

	"pairchat/internal/cryptographic/dh"
	"pairchat/internal/cryptographic/encryption"
	"pairchat/internal/cryptographic/kdf"
)

// Manager derives and caches the symmetric key for the currently selected
// peer. Selecting a different peer drops the previous key and derives a new
// one; re-selecting the same peer recomputes it from scratch.
type Manager struct {
	mu sync.Mutex

	ownPriv [32]byte
	peerID  int64
	key     []byte
}

func NewManager(ownPriv [32]byte) *Manager {
	return &Manager{ownPriv: ownPriv}
}

// Select derives the session key for peerID from the peer's long-term public
// key. The result is byte-identical to what the peer derives from its own
// private key and our public key.
func (m *Manager) Select(peerID int64, peerPub [32]byte) error {
	secret, err := dh.X25519SharedSecret(m.ownPriv, peerPub)
	if err != nil {
		return fmt.Errorf("derive shared secret: %w", err)
	}
	key, err := kdf.SessionKey(secret)
	if err != nil {
		return fmt.Errorf("derive session key: %w", err)
	}

	m.mu.Lock()
	m.peerID = peerID
	m.key = key
	m.mu.Unlock()
	return nil
}

// Key returns the session key for peerID, or false if that peer is not the
// current selection.
func (m *Manager) Key(peerID int64) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == nil || m.peerID != peerID {
		return nil, false
	}
	return m.key, true
}

// Encrypt seals plaintext for the selected peer.
func (m *Manager) Encrypt(peerID int64, plaintext []byte) (ciphertext, iv []byte, err error) {
	key, ok := m.Key(peerID)
	if !ok {
		return nil, nil, fmt.Errorf("no session for peer %d", peerID)
	}
	return encryption.Encrypt(key, plaintext)
}

// Decrypt opens a ciphertext from the selected peer. Tag mismatch surfaces
// as encryption.ErrDecryption.
func (m *Manager) Decrypt(peerID int64, ciphertext, iv []byte) ([]byte, error) {
	key, ok := m.Key(peerID)
	if !ok {
		return nil, fmt.Errorf("no session for peer %d", peerID)
	}
	return encryption.Decrypt(key, ciphertext, iv)
}
