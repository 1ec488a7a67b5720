package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrDecryption reports an authentication failure on decrypt: wrong key,
// corrupted ciphertext, or a wrong IV. Checked with errors.Is.
var ErrDecryption = errors.New("decryption failed")

// AES-GCM helper. key must be 16/24/32 bytes. We produce keys of 32 bytes from KDF.
// The IV is returned separately so it can be stored beside the ciphertext row.
func Encrypt(key, plaintext []byte) (ciphertext, iv []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	iv = make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, fmt.Errorf("rand.Read nonce: %w", err)
	}
	return aead.Seal(nil, iv, plaintext, nil), iv, nil
}

func Decrypt(key, ciphertext, iv []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad iv length %d", ErrDecryption, len(iv))
	}
	plain, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plain, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aead, nil
}
