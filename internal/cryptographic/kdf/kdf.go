package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2 parameters for password-derived keys protecting private key
	// material at rest.
	PasswordIterations = 100_000
	KeySize            = 32
)

// HKDF fills buffer with key material derived from secret via HKDF-SHA256.
func HKDF(secret, salt, info, buffer []byte) (int, error) {
	h := hkdf.New(sha256.New, secret, salt, info)
	return io.ReadFull(h, buffer)
}

// SessionKey stretches a raw ECDH shared secret into a 32-byte AES key.
// Deterministic: both sides of the exchange get identical bytes.
func SessionKey(sharedSecret []byte) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := HKDF(sharedSecret, nil, []byte("SessionKey"), key); err != nil {
		return nil, err
	}
	return key, nil
}

// PasswordKey derives a symmetric key from a password and salt.
func PasswordKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PasswordIterations, KeySize, sha256.New)
}
