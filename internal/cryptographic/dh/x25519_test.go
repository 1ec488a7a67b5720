package dh

import (
	"bytes"
	"testing"
)

func TestSharedSecretSymmetry(t *testing.T) {
	alicePriv, alicePub, err := NewX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	bobPriv, bobPub, err := NewX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}

	fromAlice, err := X25519SharedSecret(alicePriv, bobPub)
	if err != nil {
		t.Fatal(err)
	}
	fromBob, err := X25519SharedSecret(bobPriv, alicePub)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(fromAlice, fromBob) {
		t.Error("shared secrets differ between the two sides")
	}
}

func TestDistinctPairsDistinctSecrets(t *testing.T) {
	alicePriv, _, _ := NewX25519KeyPair()
	_, bobPub, _ := NewX25519KeyPair()
	_, carolPub, _ := NewX25519KeyPair()

	withBob, err := X25519SharedSecret(alicePriv, bobPub)
	if err != nil {
		t.Fatal(err)
	}
	withCarol, err := X25519SharedSecret(alicePriv, carolPub)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(withBob, withCarol) {
		t.Error("different peers produced the same secret")
	}
}

func TestPublicKeyRecompute(t *testing.T) {
	priv, pub, err := NewX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if PublicKey(priv) != pub {
		t.Error("recomputed public key does not match generated one")
	}
}
