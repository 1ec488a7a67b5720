// Package keystore encrypts long-term private keys under a password-derived
// key so the server only ever stores opaque bytes. The salt and IV travel
// with the ciphertext in the user row.
package keystore

import (
	"crypto/rand"
	"fmt"
	"io"

	"pairchat/internal/cryptographic/encryption"
	"pairchat/internal/cryptographic/kdf"
)

const saltSize = 16

type SealedKey struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
}

// Seal encrypts privKey under a key derived from password with a fresh salt.
func Seal(privKey []byte, password string) (*SealedKey, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("rand.Read salt: %w", err)
	}

	key := kdf.PasswordKey(password, salt)
	ciphertext, iv, err := encryption.Encrypt(key, privKey)
	if err != nil {
		return nil, err
	}

	return &SealedKey{Ciphertext: ciphertext, IV: iv, Salt: salt}, nil
}

// Open recovers the private key. A wrong password surfaces as
// encryption.ErrDecryption.
func Open(sealed *SealedKey, password string) ([]byte, error) {
	key := kdf.PasswordKey(password, sealed.Salt)
	return encryption.Decrypt(key, sealed.Ciphertext, sealed.IV)
}
